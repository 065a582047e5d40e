package story

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/ksuid"

	"storywoven/pkg/inference"
	"storywoven/pkg/schema"
)

type IdeasInput struct {
	ProjectID        string `json:"project_id,omitempty"`
	ChildName        string `json:"child_name"`
	ChildDescription string `json:"child_description,omitempty"`
	Interests        string `json:"interests,omitempty"`
	OwnerID          string `json:"-"`
}

// GenerateStoryIdeas proposes personalized book ideas for a child. Without a
// project ID it creates the project; with one it refreshes the idea list in
// place.
func (s *Service) GenerateStoryIdeas(ctx context.Context, in IdeasInput) (*schema.Project, error) {
	if strings.TrimSpace(in.ChildName) == "" {
		return nil, fmt.Errorf("%w: child name is required", schema.ErrInvalidInput)
	}

	var p *schema.Project
	if in.ProjectID == "" {
		p = &schema.Project{
			ID:        ksuid.New().String(),
			OwnerID:   in.OwnerID,
			CreatedAt: time.Now(),
		}
	} else {
		var err error
		if p, err = s.Store.LoadProject(ctx, in.ProjectID); err != nil {
			return nil, err
		}
	}
	p.ChildName = in.ChildName
	if in.ChildDescription != "" {
		p.ChildDescription = in.ChildDescription
	}
	if in.Interests != "" {
		p.Interests = in.Interests
	}

	raw, err := s.Adapter.ExtractStructured(ctx, inference.ExtractRequest{
		Instruction:       ideasInstruction,
		Input:             ideasInput(p),
		SchemaName:        "story_ideas",
		SchemaDescription: "Personalized picture-book ideas for one child",
		Schema:            schema.IdeasSchema,
	})
	if err != nil {
		return nil, err
	}
	var ext schema.IdeasExtraction
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil, fmt.Errorf("%w: %v", inference.ErrMalformedOutput, err)
	}
	if len(ext.Ideas) == 0 {
		return nil, fmt.Errorf("%w: model proposed no ideas", inference.ErrMalformedOutput)
	}
	p.Ideas = ext.Ideas

	if err := s.Store.WriteProject(ctx, p); err != nil {
		return nil, err
	}
	log.Info("story ideas generated", "project", p.ID, "child", p.ChildName, "ideas", len(p.Ideas))
	return p, nil
}

// LoadProject is a thin read-through for the HTTP layer.
func (s *Service) LoadProject(ctx context.Context, id string) (*schema.Project, error) {
	return s.Store.LoadProject(ctx, id)
}

func ideasInput(p *schema.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Child's name: %s\n", p.ChildName)
	if p.ChildDescription != "" {
		fmt.Fprintf(&b, "About the child (written by their caretaker): %s\n", p.ChildDescription)
	}
	if p.Interests != "" {
		fmt.Fprintf(&b, "Interests: %s\n", p.Interests)
	}
	return b.String()
}
