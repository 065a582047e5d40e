// Package registry derives and evolves the story registry: the structured
// record of every character, group, prop, and environment a book's
// illustrations must keep consistent.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"storywoven/pkg/diff"
	"storywoven/pkg/inference"
	"storywoven/pkg/schema"
	"storywoven/pkg/store"
	"storywoven/pkg/utils"
)

type Service struct {
	Adapter inference.Adapter
	Store   store.Store
}

type FinalizeResult struct {
	Registry *schema.Registry  `json:"registry"`
	Diff     diff.RegistryDiff `json:"diff"`
	Locked   bool              `json:"story_locked"`
}

// FinalizeStory runs the single unified extraction over the whole story plus
// the caretaker's child description, builds the registry, merges the
// character-model catalog into it, and locks the story. Characters locked by
// an earlier model render are carried over untouched.
func (s *Service) FinalizeStory(ctx context.Context, projectID string, pages []schema.StoryPage) (*FinalizeResult, error) {
	p, err := s.Store.LoadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(pages) > 0 {
		p.Pages = pages
	}
	if len(p.Pages) == 0 {
		return nil, fmt.Errorf("%w: project has no story pages", schema.ErrInvalidInput)
	}

	input := finalizeInput(p)
	if tokens, err := utils.NumTokensFromMessages(finalizeInstruction + input); err == nil {
		log.Debug("finalizing story", "project", projectID, "pages", len(p.Pages), "tokens", tokens)
	}

	raw, err := s.Adapter.ExtractStructured(ctx, inference.ExtractRequest{
		Instruction:       finalizeInstruction,
		Input:             input,
		SchemaName:        "story_registry",
		SchemaDescription: "Characters, groups, props, and environments extracted from a children's story",
		Schema:            schema.RegistrySchema,
	})
	if err != nil {
		return nil, err
	}

	var ext schema.RegistryExtraction
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil, fmt.Errorf("%w: %v", inference.ErrMalformedOutput, err)
	}

	reg := buildRegistry(p, ext)
	mergeCatalog(reg, p)
	carryLocked(reg, p.Registry)
	ensureOneProtagonist(reg, p.ChildName)

	d := diff.Registries(p.Registry, reg)
	if p.Registry != nil {
		for key, c := range p.Registry.Characters {
			if c.Locked() && d.CharacterState(key) != diff.Unchanged {
				log.Warn("locked character drifted during finalize", "project", projectID, "character", key)
			}
		}
	}
	p.Registry = reg
	p.StoryLocked = true

	if err := s.Store.WriteProject(ctx, p); err != nil {
		return nil, err
	}

	log.Info("story finalized", "project", projectID,
		"characters", len(reg.Characters), "groups", len(reg.Groups),
		"props", len(reg.Props), "environments", len(reg.Environments))

	return &FinalizeResult{Registry: reg, Diff: d, Locked: true}, nil
}

func finalizeInput(p *schema.Project) string {
	var b strings.Builder
	b.WriteString("Child's name: ")
	b.WriteString(p.ChildName)
	b.WriteString("\n")
	if p.ChildDescription != "" {
		b.WriteString("Caretaker's description (authoritative): ")
		b.WriteString(p.ChildDescription)
		b.WriteString("\n")
	}
	if p.Interests != "" {
		b.WriteString("Interests: ")
		b.WriteString(p.Interests)
		b.WriteString("\n")
	}
	b.WriteString("\nStory:\n")
	for _, pg := range p.Pages {
		fmt.Fprintf(&b, "Page %d: %s\n", pg.Page, pg.Text)
	}
	return b.String()
}

// buildRegistry converts the wire extraction into the keyed registry,
// applying the finalization tie-breaks: duplicate character keys keep the
// first entry and union traits; props colliding with a character key are
// discarded.
func buildRegistry(p *schema.Project, ext schema.RegistryExtraction) *schema.Registry {
	reg := schema.NewRegistry()
	reg.Notes = ext.Notes

	for _, ce := range ext.Characters {
		key := schema.NormalizeKey(ce.Name)
		if key == "" {
			continue
		}
		if existing, ok := reg.Characters[key]; ok {
			existing.Traits = unionStrings(existing.Traits, ce.Traits)
			reg.Characters[key] = existing
			continue
		}
		reg.Characters[key] = schema.Character{
			Name:          ce.Name,
			Role:          schema.Role(ce.Role),
			Type:          ce.Type,
			Breed:         ce.Breed,
			Gender:        ce.Gender,
			Traits:        ce.Traits,
			Relationship:  ce.Relationship,
			Visual:        ce.Visual,
			VisualSource:  schema.VisualSourceAuto,
			FirstSeenPage: ce.FirstSeenPage,
		}
	}

	for _, ge := range ext.Groups {
		key := schema.NormalizeKey(ge.Name)
		if key == "" {
			continue
		}
		if _, ok := reg.Groups[key]; ok {
			continue
		}
		reg.Groups[key] = schema.Group{
			Key:           key,
			Name:          ge.Name,
			Singular:      ge.Singular,
			DetectedTerm:  ge.DetectedTerm,
			DetectedCount: ge.DetectedCount,
			CountSource:   countSource(ge.CountSource),
			Relationship:  ge.Relationship,
			Members:       []string{},
			FirstSeenPage: ge.FirstSeenPage,
		}
	}

	for _, pe := range ext.Props {
		key := schema.NormalizeKey(pe.Name)
		if key == "" {
			continue
		}
		if _, collides := reg.Characters[key]; collides {
			log.Warn("discarding prop that collides with a character", "key", key)
			continue
		}
		if _, ok := reg.Props[key]; ok {
			continue
		}
		reg.Props[key] = schema.Prop{
			Name:          pe.Name,
			Description:   pe.Description,
			Visual:        pe.Visual,
			FirstSeenPage: pe.FirstSeenPage,
		}
	}

	for _, ee := range ext.Environments {
		key := schema.NormalizeKey(ee.Name)
		if key == "" {
			continue
		}
		if _, ok := reg.Environments[key]; ok {
			continue
		}
		reg.Environments[key] = schema.Environment{
			Name:          ee.Name,
			Description:   ee.Description,
			Owner:         ee.Owner,
			Style:         ee.Style,
			FirstSeenPage: ee.FirstSeenPage,
		}
	}

	return reg
}

// mergeCatalog reconciles the character-model catalog with the extracted
// characters: matched characters switch to the uploaded reference, catalog
// keys the extraction missed become stub characters.
func mergeCatalog(reg *schema.Registry, p *schema.Project) {
	for _, m := range p.CharacterModels {
		if c, ok := reg.Characters[m.CharacterKey]; ok {
			c.HasModel = true
			c.VisualSource = schema.VisualSourceUser
			c.Visual = nil
			c.ModelURL = m.ModelURL
			reg.Characters[m.CharacterKey] = c
			continue
		}
		role := schema.RoleOther
		if schema.NormalizeKey(p.ChildName) == m.CharacterKey {
			role = schema.RoleProtagonist
		}
		reg.Characters[m.CharacterKey] = schema.Character{
			Name:         strings.ReplaceAll(m.CharacterKey, "_", " "),
			Role:         role,
			HasModel:     true,
			VisualSource: schema.VisualSourceUser,
			ModelURL:     m.ModelURL,
		}
	}
}

// carryLocked copies locked characters from the prior registry verbatim; the
// protagonist lock freezes them against re-extraction.
func carryLocked(reg *schema.Registry, prior *schema.Registry) {
	if prior == nil {
		return
	}
	for key, c := range prior.Characters {
		if c.Locked() {
			reg.Characters[key] = c
		}
	}
}

// ensureOneProtagonist leaves exactly one protagonist: a locked protagonist
// is frozen and always wins, then the character whose name matches the child,
// then any already-marked protagonist; extras are demoted to "other". The
// protagonist's visual source is always the user.
func ensureOneProtagonist(reg *schema.Registry, childName string) {
	childKey := schema.NormalizeKey(childName)

	chosen := ""
	for _, key := range sortedKeys(reg.Characters) {
		c := reg.Characters[key]
		if c.Locked() && c.Role == schema.RoleProtagonist {
			chosen = key
			break
		}
	}
	if chosen == "" {
		if c, ok := reg.Characters[childKey]; ok {
			chosen = childKey
			c.Role = schema.RoleProtagonist
			reg.Characters[childKey] = c
		}
	}
	if chosen == "" {
		for _, key := range sortedKeys(reg.Characters) {
			if reg.Characters[key].Role == schema.RoleProtagonist {
				chosen = key
				break
			}
		}
	}
	if chosen == "" {
		log.Warn("no protagonist extracted", "child", childName)
		return
	}
	for key, c := range reg.Characters {
		if key != chosen && c.Role == schema.RoleProtagonist && !c.Locked() {
			c.Role = schema.RoleOther
			reg.Characters[key] = c
		}
	}
	if c := reg.Characters[chosen]; !c.Locked() {
		c.VisualSource = schema.VisualSourceUser
		reg.Characters[chosen] = c
	}
}

func countSource(s string) schema.CountSource {
	switch schema.CountSource(s) {
	case schema.CountExplicit, schema.CountImplied:
		return schema.CountSource(s)
	default:
		return schema.CountUnknown
	}
}

func unionStrings(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, v := range base {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range extra {
		if _, ok := seen[strings.ToLower(v)]; ok {
			continue
		}
		seen[strings.ToLower(v)] = struct{}{}
		base = append(base, v)
	}
	return base
}

// sortedKeys gives deterministic iteration for the tie-break above.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
