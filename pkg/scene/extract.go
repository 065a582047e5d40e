package scene

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"

	"storywoven/pkg/inference"
	"storywoven/pkg/schema"
)

const locationInstruction = `You read one page of a children's story and name the physical location the page takes place in.

Return the location only when the text states or clearly implies one ("in Grandma's kitchen", "at the park"). When the page names no place, leave every field empty. Never invent a location.`

const propsInstruction = `You read one page of a children's story and list the physical objects visible in the scene.

Rules:
- List objects, never characters, people, or animals.
- Include only objects that matter to the picture; skip things the text merely brushes past.
- Describe each object's look only from what the text says or strongly implies.`

// extractLocation asks where the page takes place. Failures degrade to no
// discovery; the render proceeds either way.
func (c *Coordinator) extractLocation(ctx context.Context, pageText string) *schema.LocationExtraction {
	raw, err := c.Adapter.ExtractStructured(ctx, inference.ExtractRequest{
		Instruction:       locationInstruction,
		Input:             pageText,
		SchemaName:        "page_location",
		SchemaDescription: "Physical location of one story page",
		Schema:            schema.LocationSchema,
	})
	if err != nil {
		log.Warn("location extraction failed", "err", err)
		return nil
	}
	var ext schema.LocationExtraction
	if err := json.Unmarshal(raw, &ext); err != nil {
		log.Warn("location extraction returned malformed JSON", "err", err)
		return nil
	}
	if ext.Location == "" {
		return nil
	}
	return &ext
}

// extractProps lists the page's visible objects. Known registry props ride
// along so the model reuses canonical names. Failures degrade to no
// discovery.
func (c *Coordinator) extractProps(ctx context.Context, pageText string, existing []string) []schema.PropExtraction {
	instruction := propsInstruction
	if len(existing) > 0 {
		instruction += "\n\nThese props are already registered; when the page shows one of them, use its exact name:\n- " + strings.Join(existing, "\n- ")
	}
	raw, err := c.Adapter.ExtractStructured(ctx, inference.ExtractRequest{
		Instruction:       instruction,
		Input:             pageText,
		SchemaName:        "page_props",
		SchemaDescription: "Physical objects visible in one story page",
		Schema:            schema.ScenePropsSchema,
	})
	if err != nil {
		log.Warn("prop extraction failed", "err", err)
		return nil
	}
	var ext schema.ScenePropsExtraction
	if err := json.Unmarshal(raw, &ext); err != nil {
		log.Warn("prop extraction returned malformed JSON", "err", err)
		return nil
	}
	return ext.Props
}
