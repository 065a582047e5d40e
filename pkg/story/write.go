package story

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"storywoven/pkg/inference"
	"storywoven/pkg/schema"
)

type WriteInput struct {
	ProjectID string `json:"project_id"`
	// Idea selects one of the project's proposed ideas by title; a custom
	// idea may be passed instead.
	Idea      string            `json:"idea,omitempty"`
	Custom    *schema.StoryIdea `json:"custom,omitempty"`
	PageCount int               `json:"page_count,omitempty"`
}

const defaultPageCount = 10

// WriteStory generates the full manuscript from a chosen idea. A finalized
// story never changes; callers must start a new project instead.
func (s *Service) WriteStory(ctx context.Context, in WriteInput) (*schema.Project, error) {
	p, err := s.Store.LoadProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if p.StoryLocked {
		return nil, fmt.Errorf("%w: the story has been finalized", schema.ErrLocked)
	}

	idea, err := chooseIdea(p, in)
	if err != nil {
		return nil, err
	}
	pages := in.PageCount
	if pages <= 0 {
		pages = defaultPageCount
	}

	raw, err := s.Adapter.ExtractStructured(ctx, inference.ExtractRequest{
		Instruction:       storyInstruction,
		Input:             storyInput(p, idea, pages),
		SchemaName:        "story_manuscript",
		SchemaDescription: "A complete children's picture-book manuscript",
		Schema:            schema.StorySchema,
		MaxTokens:         4096,
	})
	if err != nil {
		return nil, err
	}
	var ext schema.StoryExtraction
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil, fmt.Errorf("%w: %v", inference.ErrMalformedOutput, err)
	}
	if len(ext.Pages) == 0 {
		return nil, fmt.Errorf("%w: model produced no pages", inference.ErrMalformedOutput)
	}

	p.ChosenIdea = &idea
	p.Title = ext.Title
	p.Pages = renumber(ext.Pages)

	if err := s.Store.WriteProject(ctx, p); err != nil {
		return nil, err
	}
	log.Info("story written", "project", p.ID, "title", p.Title, "pages", len(p.Pages))
	return p, nil
}

func chooseIdea(p *schema.Project, in WriteInput) (schema.StoryIdea, error) {
	if in.Custom != nil && strings.TrimSpace(in.Custom.Title) != "" {
		return *in.Custom, nil
	}
	want := strings.ToLower(strings.TrimSpace(in.Idea))
	if want == "" {
		return schema.StoryIdea{}, fmt.Errorf("%w: an idea title or a custom idea is required", schema.ErrInvalidInput)
	}
	for _, idea := range p.Ideas {
		if strings.ToLower(strings.TrimSpace(idea.Title)) == want {
			return idea, nil
		}
	}
	return schema.StoryIdea{}, fmt.Errorf("%w: idea %q is not among the project's proposals", schema.ErrInvalidInput, in.Idea)
}

// renumber forces contiguous 1-based page numbers regardless of what the
// model emitted.
func renumber(pages []schema.StoryPage) []schema.StoryPage {
	for i := range pages {
		pages[i].Page = i + 1
	}
	return pages
}

func storyInput(p *schema.Project, idea schema.StoryIdea, pages int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Child's name: %s\n", p.ChildName)
	if p.ChildDescription != "" {
		fmt.Fprintf(&b, "About the child (written by their caretaker): %s\n", p.ChildDescription)
	}
	if p.Interests != "" {
		fmt.Fprintf(&b, "Interests: %s\n", p.Interests)
	}
	fmt.Fprintf(&b, "\nChosen idea: %s\n%s\n", idea.Title, idea.Blurb)
	fmt.Fprintf(&b, "\nWrite exactly %d pages.\n", pages)
	return b.String()
}
