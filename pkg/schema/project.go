package schema

import (
	"errors"
	"strings"
	"time"
)

// Domain errors shared across the pipeline; HTTP bindings map these onto
// response codes.
var (
	ErrLocked       = errors.New("story is finalized and locked")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("caller does not own this project")
	ErrPageNotFound = errors.New("page not found in story")
)

// Project is the single root of ownership for one book in progress. The whole
// document is persisted and replaced as a unit.
type Project struct {
	ID               string               `json:"id"`
	OwnerID          string               `json:"owner_id,omitempty"`
	ChildName        string               `json:"child_name"`
	ChildDescription string               `json:"child_description,omitempty"`
	Interests        string               `json:"interests,omitempty"`
	Ideas            []StoryIdea          `json:"ideas,omitempty"`
	ChosenIdea       *StoryIdea           `json:"chosen_idea,omitempty"`
	Title            string               `json:"title,omitempty"`
	Pages            []StoryPage          `json:"pages,omitempty"`
	StoryLocked      bool                 `json:"story_locked"`
	Registry         *Registry            `json:"registry,omitempty"`
	CharacterModels  []CharacterModel     `json:"character_models,omitempty"`
	Illustrations    []IllustrationRecord `json:"illustrations,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type StoryIdea struct {
	Title string `json:"title"`
	Blurb string `json:"blurb"`
}

type StoryPage struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// PageText returns the text for page n and whether the page exists.
func (p *Project) PageText(n int) (string, bool) {
	for _, pg := range p.Pages {
		if pg.Page == n {
			return pg.Text, true
		}
	}
	return "", false
}

// CharacterModel pairs a character key with its rendered cartoon reference.
// The catalog lives beside the registry so models survive re-finalization.
type CharacterModel struct {
	CharacterKey string    `json:"character_key"`
	ModelURL     string    `json:"model_url"`
	ModelPath    string    `json:"model_path,omitempty"`
	PreviewURL   string    `json:"preview_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ModelFor returns the catalog entry for a character key, if present.
func (p *Project) ModelFor(key string) (CharacterModel, bool) {
	for _, m := range p.CharacterModels {
		if m.CharacterKey == key {
			return m, true
		}
	}
	return CharacterModel{}, false
}

// UpsertModel replaces or appends the catalog entry for the model's key.
func (p *Project) UpsertModel(m CharacterModel) {
	for i := range p.CharacterModels {
		if p.CharacterModels[i].CharacterKey == m.CharacterKey {
			p.CharacterModels[i] = m
			return
		}
	}
	p.CharacterModels = append(p.CharacterModels, m)
}

const (
	// MaxRevisions bounds regenerations per page.
	MaxRevisions = 2
	// MaxRevisionHistory bounds retained prior images per page.
	MaxRevisionHistory = 2
)

type IllustrationRecord struct {
	Page        int                    `json:"page"`
	ImageURL    string                 `json:"image_url"`
	Revisions   int                    `json:"revisions"`
	Notes       string                 `json:"notes,omitempty"`
	LastUpdated time.Time              `json:"last_updated"`
	History     []IllustrationRevision `json:"history,omitempty"`
}

type IllustrationRevision struct {
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	Notes     string    `json:"notes,omitempty"`
}

// Illustration returns the active record for a page, if any. At most one
// record exists per page.
func (p *Project) Illustration(page int) *IllustrationRecord {
	for i := range p.Illustrations {
		if p.Illustrations[i].Page == page {
			return &p.Illustrations[i]
		}
	}
	return nil
}

// RevisionNotesMarker separates page text from artist revision notes in a
// regeneration request; everything after it passes to the model verbatim.
const RevisionNotesMarker = "Artist revision notes:"

// SplitRevisionNotes splits page text into the base text and any revision
// notes suffix.
func SplitRevisionNotes(text string) (base, notes string) {
	idx := strings.LastIndex(text, RevisionNotesMarker)
	if idx < 0 {
		return text, ""
	}
	return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+len(RevisionNotesMarker):])
}
