package prompt

import (
	"fmt"
	"strings"

	"storywoven/pkg/inference"
	"storywoven/pkg/schema"
	"storywoven/pkg/utils"
)

// CharacterReference pairs a registry key with its uploaded model image.
type CharacterReference struct {
	Key  string
	Data []byte
}

type SceneInput struct {
	ChildName        string
	ChildDescription string
	PageText         string
	Plan             *schema.ScenePlan
	Registry         *schema.Registry
	References       []CharacterReference
}

// AssembleScene builds the full illustration prompt for one planned page.
// Section order is load-bearing: the image model weighs earlier text more, so
// the scene itself comes first and style boilerplate last.
func AssembleScene(in SceneInput) *Prompt {
	p := &Prompt{}
	reg := in.Registry
	protagonistKey, protagonist := reg.Protagonist()

	p.Sections = append(p.Sections, Section{
		Body: "Create exactly one illustration for the following page of a children's picture book. Respond with the image only; do not reply with text, commentary, or more than one image.",
	})

	p.Sections = append(p.Sections, Section{Title: "Page text", Body: in.PageText})

	p.Sections = append(p.Sections, environmentSection(in.Plan, reg))

	if ctxJSON := contextBlock(in.Plan, reg); ctxJSON != "" {
		p.Sections = append(p.Sections, Section{Title: "Characters in this scene (registry JSON)", Body: ctxJSON})
	}
	if envJSON := environmentBlock(in.Plan, reg); envJSON != "" {
		p.Sections = append(p.Sections, Section{Title: "Environment (registry JSON)", Body: envJSON})
	}
	if propJSON := propBlock(in.Plan, reg); propJSON != "" {
		p.Sections = append(p.Sections, Section{Title: "Props in this scene (registry JSON)", Body: propJSON})
	}

	p.Sections = append(p.Sections, visualRules(in, protagonistKey, protagonist))
	p.Sections = append(p.Sections, Section{Title: "Strict character rules", Body: strictCharacterRules})
	p.Sections = append(p.Sections, Section{Title: "Continuity rules", Body: continuityRules})
	p.Sections = append(p.Sections, Section{Title: "Prop and location continuity", Body: propLocationRules})
	p.Sections = append(p.Sections, Section{Title: "Style", Body: styleRules})

	p.Attachments = orderAttachments(in.References, protagonistKey)
	return p
}

func environmentSection(plan *schema.ScenePlan, reg *schema.Registry) Section {
	if plan.Environment != "" {
		if env, ok := reg.Environments[plan.Environment]; ok {
			body := fmt.Sprintf("This page takes place in: %s.", env.Name)
			if env.Description != "" {
				body += " " + env.Description
			}
			if env.Style != "" {
				body += " Render it " + env.Style + "."
			}
			return Section{Title: "Setting", Body: body}
		}
	}
	return Section{
		Title: "Setting",
		Body:  "No established location applies to this page. Use a simple, neutral setting that fits the page text without introducing a detailed new place.",
	}
}

func contextBlock(plan *schema.ScenePlan, reg *schema.Registry) string {
	entries := make(map[string]any)
	for _, key := range plan.Characters {
		if c, ok := reg.Characters[key]; ok {
			entries[key] = c
		} else if g, ok := reg.Groups[key]; ok {
			entries[key] = g
		}
	}
	return marshalBlock(entries)
}

func environmentBlock(plan *schema.ScenePlan, reg *schema.Registry) string {
	if plan.Environment == "" {
		return ""
	}
	env, ok := reg.Environments[plan.Environment]
	if !ok {
		return ""
	}
	return marshalBlock(map[string]any{plan.Environment: env})
}

func propBlock(plan *schema.ScenePlan, reg *schema.Registry) string {
	entries := make(map[string]any)
	for _, key := range plan.Props {
		if p, ok := reg.Props[key]; ok {
			entries[key] = p
		}
	}
	return marshalBlock(entries)
}

func marshalBlock(entries map[string]any) string {
	if len(entries) == 0 {
		return ""
	}
	return utils.PrettyJSON(entries)
}

func visualRules(in SceneInput, protagonistKey string, protagonist *schema.Character) Section {
	var rules []string
	if protagonist != nil {
		name := protagonist.Name
		if name == "" {
			name = in.ChildName
		}
		if protagonist.HasModel {
			rules = append(rules, fmt.Sprintf("%s is the child in the attached character model image. %s MUST match the uploaded character model exactly: same face, hair, skin tone, and overall look. Only clothing and pose may vary with the scene.", name, name))
		} else {
			rules = append(rules, fmt.Sprintf("%s is a young child. No reference image exists yet, so draw a neutral, generic child consistent with: %s.", name, utils.LimitStr(in.ChildDescription, 400)))
		}
	}
	for _, key := range in.Plan.Characters {
		if key == protagonistKey {
			continue
		}
		if c, ok := in.Registry.Characters[key]; ok {
			rules = append(rules, characterRule(c))
		} else if g, ok := in.Registry.Groups[key]; ok {
			rules = append(rules, groupRule(g))
		}
	}
	return Section{Title: "Character visual rules", Body: strings.Join(rules, "\n")}
}

func characterRule(c schema.Character) string {
	var parts []string
	if c.Type != "" {
		if c.Breed != "" {
			parts = append(parts, fmt.Sprintf("a %s (%s)", c.Breed, c.Type))
		} else {
			parts = append(parts, "a "+c.Type)
		}
	}
	if v := c.Visual; v != nil {
		if v.Size != "" {
			parts = append(parts, v.Size)
		}
		if len(v.Colors) > 0 {
			parts = append(parts, strings.Join(v.Colors, " and "))
		}
		if v.DistinctiveFeatures != "" {
			parts = append(parts, v.DistinctiveFeatures)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s: keep their appearance consistent with earlier pages.", c.Name)
	}
	return fmt.Sprintf("%s: %s. Keep this exact appearance on every page.", c.Name, strings.Join(parts, ", "))
}

func groupRule(g schema.Group) string {
	count := "a small group"
	if g.DetectedCount != nil {
		count = fmt.Sprintf("%d", *g.DetectedCount)
	}
	return fmt.Sprintf("%s: %s %s, drawn consistently as the same individuals whenever they appear.", g.Name, count, g.Singular)
}

const strictCharacterRules = `- Draw ONLY the characters listed above. Do not add background people, extra animals, or invented companions.
- Every listed character must be recognizably the same individual as on every other page.
- Never change a character's species, breed, size, or color scheme between pages.`

const continuityRules = `- When the page text uses a generic noun for a registered entity, draw the registry entry: "her dog" means the specific dog described above, "the house" means the established house.
- This page is one moment in a continuous story; lighting, season, and time of day should follow naturally from the page text.
- Characters' relative sizes stay constant (a small dog stays small next to the child).
- Do not show events from other pages; illustrate only this page's moment.`

const propLocationRules = `- Props listed above look the same on every page they appear: same colors, same shape, same distinctive details.
- Recurring locations keep their layout and notable features between pages.
- Do not invent prominent new props; incidental background objects are fine.`

const styleRules = `- Warm, friendly children's picture-book illustration with soft shapes and rich color.
- Clean, consistent outlines of medium weight; no sketchy or scratchy linework.
- Warm, gentle lighting unless the page text calls for night or weather.
- Square aspect ratio, full-bleed scene; keep faces and key action away from the outer edges so nothing important is lost to trim.
- No text, letters, captions, or speech bubbles anywhere in the image.`

// orderAttachments puts the protagonist's model first so the image model
// anchors identity on it.
func orderAttachments(refs []CharacterReference, protagonistKey string) []inference.Attachment {
	out := make([]inference.Attachment, 0, len(refs))
	for _, r := range refs {
		if r.Key == protagonistKey {
			out = append(out, inference.Attachment{MIMEType: "image/png", Data: r.Data})
		}
	}
	for _, r := range refs {
		if r.Key != protagonistKey {
			out = append(out, inference.Attachment{MIMEType: "image/png", Data: r.Data})
		}
	}
	return out
}
