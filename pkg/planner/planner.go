// Package planner decides which registry entities belong in one page's
// illustration.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"storywoven/pkg/inference"
	"storywoven/pkg/registry"
	"storywoven/pkg/schema"
	"storywoven/pkg/utils"
)

// MaxCharacterModelsPerScene caps character reference slots per page.
const MaxCharacterModelsPerScene = 4

// resolveThreshold is the minimum similarity for mapping an unknown key the
// model emitted onto a registry entry.
const resolveThreshold = 0.6

type Planner struct {
	Adapter inference.Adapter
}

type PlanInput struct {
	Page      int
	PageText  string
	Registry  *schema.Registry
	Pages     []schema.StoryPage
	ChildName string
}

// AnalyzeSceneComposition plans one page: which characters and props appear
// and in which environment. The registry is offered to the model as a closed
// set; anything it emits outside that set is resolved to the most similar
// known entry or dropped. The protagonist is always planned, and the
// character list is capped.
func (pl *Planner) AnalyzeSceneComposition(ctx context.Context, in PlanInput) (*schema.ScenePlan, error) {
	if in.Registry == nil {
		return nil, fmt.Errorf("%w: no registry for project", schema.ErrInvalidInput)
	}
	reg := in.Registry.Clone()
	reg.Props = registry.DedupeProps(reg.Props)

	raw, err := pl.Adapter.ExtractStructured(ctx, inference.ExtractRequest{
		Instruction:       planInstruction,
		Input:             planInput(in, reg),
		SchemaName:        "scene_plan",
		SchemaDescription: "Registry entities visually present in one page's illustration",
		Schema:            schema.ScenePlanSchema,
	})
	if err != nil {
		return nil, err
	}
	var ext schema.ScenePlanExtraction
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil, fmt.Errorf("%w: %v", inference.ErrMalformedOutput, err)
	}

	plan := &schema.ScenePlan{
		Characters:  resolveAll(ext.Characters, characterCandidates(reg)),
		Props:       resolveAll(ext.Props, propCandidates(reg)),
		Environment: resolveOne(ext.Environment, environmentCandidates(reg)),
	}

	ensureProtagonist(plan, reg)
	capCharacters(plan, reg, in.Page)
	return plan, nil
}

type candidate struct {
	key  string
	name string
}

func characterCandidates(reg *schema.Registry) []candidate {
	out := make([]candidate, 0, len(reg.Characters)+len(reg.Groups))
	for k, c := range reg.Characters {
		out = append(out, candidate{key: k, name: c.Name})
	}
	for k, g := range reg.Groups {
		out = append(out, candidate{key: k, name: g.Name})
	}
	return out
}

func propCandidates(reg *schema.Registry) []candidate {
	out := make([]candidate, 0, len(reg.Props))
	for k, p := range reg.Props {
		out = append(out, candidate{key: k, name: p.Name})
	}
	return out
}

func environmentCandidates(reg *schema.Registry) []candidate {
	out := make([]candidate, 0, len(reg.Environments))
	for k, e := range reg.Environments {
		out = append(out, candidate{key: k, name: e.Name})
	}
	return out
}

func resolveAll(keys []string, candidates []candidate) []string {
	var out []string
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		resolved := resolveOne(k, candidates)
		if resolved == "" {
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	}
	return out
}

// resolveOne maps a model-emitted identifier onto the registry: exact key
// match first, then the most similar key or display name above the
// threshold. The plan never contains invented entities.
func resolveOne(k string, candidates []candidate) string {
	k = schema.NormalizeKey(k)
	if k == "" {
		return ""
	}
	for _, c := range candidates {
		if c.key == k {
			return c.key
		}
	}
	best, bestScore := "", 0.0
	for _, c := range candidates {
		score := max(utils.Similarity(k, c.key), utils.Similarity(k, c.name))
		if score > bestScore {
			best, bestScore = c.key, score
		}
	}
	if bestScore >= resolveThreshold {
		return best
	}
	log.Debug("dropping unresolvable plan entity", "key", k, "best", best, "score", bestScore)
	return ""
}

func ensureProtagonist(plan *schema.ScenePlan, reg *schema.Registry) {
	key, _ := reg.Protagonist()
	if key == "" {
		return
	}
	if slices.Contains(plan.Characters, key) {
		// keep protagonist in front for attachment ordering
		plan.Characters = slices.Concat([]string{key}, slices.DeleteFunc(plan.Characters, func(k string) bool { return k == key }))
		return
	}
	plan.Characters = slices.Concat([]string{key}, plan.Characters)
}

// capCharacters enforces the per-scene model cap: protagonist first, then
// earliest first appearance, ties broken by role priority. A group occupies
// one slot regardless of its detected count.
func capCharacters(plan *schema.ScenePlan, reg *schema.Registry, page int) {
	if len(plan.Characters) <= MaxCharacterModelsPerScene {
		return
	}
	protagonist, _ := reg.Protagonist()
	rest := slices.DeleteFunc(slices.Clone(plan.Characters), func(k string) bool { return k == protagonist })

	slices.SortStableFunc(rest, func(a, b string) int {
		fa, fb := firstSeen(reg, a, page), firstSeen(reg, b, page)
		if fa != fb {
			return fa - fb
		}
		return rolePriority(reg, a) - rolePriority(reg, b)
	})

	keep := MaxCharacterModelsPerScene
	if protagonist != "" {
		keep--
	}
	if len(rest) > keep {
		rest = rest[:keep]
	}
	if protagonist != "" {
		plan.Characters = slices.Concat([]string{protagonist}, rest)
	} else {
		plan.Characters = rest
	}
}

// firstSeen returns the entity's first page, penalizing entries first seen
// after the current page so established entities win the slots.
func firstSeen(reg *schema.Registry, key string, page int) int {
	seen := 0
	if c, ok := reg.Characters[key]; ok {
		seen = c.FirstSeenPage
	} else if g, ok := reg.Groups[key]; ok {
		seen = g.FirstSeenPage
	}
	if seen > page {
		seen += 1000
	}
	return seen
}

func rolePriority(reg *schema.Registry, key string) int {
	if c, ok := reg.Characters[key]; ok {
		return c.Role.Priority()
	}
	return schema.RoleOther.Priority()
}

func planInput(in PlanInput, reg *schema.Registry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current page (%d): %s\n\n", in.Page, in.PageText)

	before, after := narrativeContext(in.Pages, in.Page)
	if before != "" {
		b.WriteString("Story so far:\n")
		b.WriteString(before)
		b.WriteString("\n")
	}
	if after != "" {
		b.WriteString("Story after this page:\n")
		b.WriteString(after)
		b.WriteString("\n")
	}

	b.WriteString("\nKnown characters and groups (key: description):\n")
	for _, c := range characterCandidates(reg) {
		role := ""
		if ch, ok := reg.Characters[c.key]; ok {
			role = fmt.Sprintf(" (%s, %s)", ch.Role, ch.Type)
		} else if g, ok := reg.Groups[c.key]; ok {
			role = fmt.Sprintf(" (group of %s)", g.Singular)
		}
		fmt.Fprintf(&b, "- %s: %s%s\n", c.key, c.name, role)
	}
	b.WriteString("\nKnown props:\n")
	for k, p := range reg.Props {
		fmt.Fprintf(&b, "- %s: %s\n", k, p.Name)
	}
	b.WriteString("\nKnown environments:\n")
	for k, e := range reg.Environments {
		fmt.Fprintf(&b, "- %s: %s\n", k, e.Name)
	}
	return b.String()
}

func narrativeContext(pages []schema.StoryPage, current int) (before, after string) {
	var b, a strings.Builder
	for _, pg := range pages {
		switch {
		case pg.Page < current:
			fmt.Fprintf(&b, "Page %d: %s\n", pg.Page, pg.Text)
		case pg.Page > current:
			fmt.Fprintf(&a, "Page %d: %s\n", pg.Page, pg.Text)
		}
	}
	return b.String(), a.String()
}
