// Package scene runs the per-page illustration pipeline: plan the scene,
// assemble the prompt, render the image, and fold page discoveries back into
// the registry.
package scene

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"

	"storywoven/pkg/inference"
	"storywoven/pkg/planner"
	"storywoven/pkg/prompt"
	"storywoven/pkg/registry"
	"storywoven/pkg/schema"
	"storywoven/pkg/storage"
	"storywoven/pkg/store"
)

type Coordinator struct {
	Adapter inference.Adapter
	Store   store.Store
	Storage storage.ObjectStorage
	Planner *planner.Planner
}

type GenerateInput struct {
	ProjectID string
	Page      int
	// Text optionally overrides the stored page text; it may carry an artist
	// revision-notes suffix on regeneration.
	Text string
	// Regenerate spends one of the page's bounded revisions and pushes the
	// prior image onto history. A plain retry leaves both untouched and
	// simply overwrites the current image.
	Regenerate bool
}

type GenerateResult struct {
	ImageURL  string `json:"image_url"`
	Revisions int    `json:"revisions"`
	// Warning is set when the image was rendered and stored but the project
	// record could not be saved afterwards.
	Warning string `json:"warning,omitempty"`
}

// GenerateScene renders one page's illustration. The image lands at a stable
// path per page; the returned URL carries a version query so regenerated
// history entries stay distinguishable.
func (c *Coordinator) GenerateScene(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	p, err := c.Store.LoadProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if !p.StoryLocked || p.Registry == nil {
		return nil, fmt.Errorf("%w: story must be finalized before illustrating", schema.ErrInvalidInput)
	}
	protagonistKey, _ := p.Registry.Protagonist()
	model, hasModel := p.ModelFor(protagonistKey)
	if protagonistKey == "" || !hasModel {
		return nil, fmt.Errorf("%w: generate the character model before illustrating", schema.ErrInvalidInput)
	}

	stored, ok := p.PageText(in.Page)
	if !ok {
		return nil, fmt.Errorf("%w: page %d", schema.ErrPageNotFound, in.Page)
	}
	text := stored
	if strings.TrimSpace(in.Text) != "" {
		text = in.Text
	}
	base, notes := schema.SplitRevisionNotes(text)
	if base != "" && base != stored {
		setPageText(p, in.Page, base)
	}

	// A regeneration request against a page that has never rendered is just
	// a first render.
	rec := p.Illustration(in.Page)
	regen := in.Regenerate && rec != nil && rec.ImageURL != ""
	if regen && rec.Revisions >= schema.MaxRevisions {
		return nil, fmt.Errorf("%w: page %d has used all %d regenerations", schema.ErrInvalidInput, in.Page, schema.MaxRevisions)
	}

	// Location and prop discovery run alongside planning; both are
	// best-effort and never block the render.
	var loc *schema.LocationExtraction
	var props []schema.PropExtraction
	knownProps := propNames(p.Registry)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loc = c.extractLocation(gctx, text)
		return nil
	})
	g.Go(func() error {
		props = c.extractProps(gctx, text, knownProps)
		return nil
	})

	plan, err := c.Planner.AnalyzeSceneComposition(ctx, planner.PlanInput{
		Page:      in.Page,
		PageText:  text,
		Registry:  p.Registry,
		Pages:     p.Pages,
		ChildName: p.ChildName,
	})
	if err != nil {
		return nil, err
	}
	_ = g.Wait()

	refs, err := c.loadReferences(ctx, p, plan, protagonistKey, model)
	if err != nil {
		return nil, err
	}

	asm := prompt.AssembleScene(prompt.SceneInput{
		ChildName:        p.ChildName,
		ChildDescription: p.ChildDescription,
		PageText:         text,
		Plan:             plan,
		Registry:         p.Registry,
		References:       refs,
	})

	img, err := c.Adapter.GenerateImage(ctx, inference.GenerateRequest{
		Instruction: asm.Render(),
		Attachments: asm.Attachments,
	})
	if err != nil {
		return nil, err
	}

	url, err := c.Storage.Put(ctx, storage.IllustrationPath(p.ID, in.Page), img, "image/png")
	if err != nil {
		return nil, err
	}
	url += "?v=" + ksuid.New().String()

	registry.ApplyPageDiscoveries(p.Registry, loc, props, in.Page)
	rec = applyIllustration(p, in.Page, url, notes, regen)

	result := &GenerateResult{ImageURL: url, Revisions: rec.Revisions}
	if err := c.Store.WriteProject(ctx, p); err != nil {
		log.Error("illustration stored but project save failed", "project", p.ID, "page", in.Page, "err", err)
		result.Warning = "illustration was generated but the project record could not be saved; regenerate metadata may be stale"
	}

	log.Info("scene generated", "project", p.ID, "page", in.Page,
		"characters", len(plan.Characters), "revisions", rec.Revisions, "regen", regen)
	return result, nil
}

// loadReferences fetches model images for planned characters. The
// protagonist's model is mandatory; other missing references degrade to
// text-only rules.
func (c *Coordinator) loadReferences(ctx context.Context, p *schema.Project, plan *schema.ScenePlan, protagonistKey string, protagonistModel schema.CharacterModel) ([]prompt.CharacterReference, error) {
	var refs []prompt.CharacterReference
	for _, key := range plan.Characters {
		m := protagonistModel
		if key != protagonistKey {
			var ok bool
			if m, ok = p.ModelFor(key); !ok {
				continue
			}
		}
		if m.ModelPath == "" {
			continue
		}
		data, err := c.Storage.Get(ctx, m.ModelPath)
		if err != nil {
			if key == protagonistKey {
				return nil, fmt.Errorf("reading character model for %s: %w", key, err)
			}
			log.Warn("skipping unreadable character reference", "project", p.ID, "character", key, "err", err)
			continue
		}
		refs = append(refs, prompt.CharacterReference{Key: key, Data: data})
	}
	return refs, nil
}

func propNames(reg *schema.Registry) []string {
	names := make([]string, 0, len(reg.Props))
	for _, prop := range reg.Props {
		names = append(names, prop.Name)
	}
	slices.Sort(names)
	return names
}

func setPageText(p *schema.Project, page int, text string) {
	for i := range p.Pages {
		if p.Pages[i].Page == page {
			p.Pages[i].Text = text
			return
		}
	}
}
