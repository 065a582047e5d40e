package schema

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleProtagonist Role = "protagonist"
	RoleSibling     Role = "sibling"
	RoleFriend      Role = "friend"
	RoleParent      Role = "parent"
	RolePet         Role = "pet"
	RoleOther       Role = "other"
)

// Priority orders roles for scene-plan tie-breaking; lower wins.
func (r Role) Priority() int {
	switch r {
	case RoleProtagonist:
		return 0
	case RolePet:
		return 1
	case RoleSibling:
		return 2
	case RoleFriend:
		return 3
	case RoleParent:
		return 4
	default:
		return 5
	}
}

type VisualSource string

const (
	VisualSourceUser VisualSource = "user"
	VisualSourceAuto VisualSource = "auto"
)

type CountSource string

const (
	CountExplicit CountSource = "explicit"
	CountImplied  CountSource = "implied"
	CountUnknown  CountSource = "unknown"
)

// Registry describes every entity a story implies, keyed by normalized
// identifiers. It is created once by story finalization and grows per page
// afterwards; the character set is frozen at finalization.
type Registry struct {
	Characters   map[string]Character   `json:"characters"`
	Groups       map[string]Group       `json:"groups,omitempty"`
	Props        map[string]Prop        `json:"props,omitempty"`
	Environments map[string]Environment `json:"environments,omitempty"`
	Notes        string                 `json:"notes,omitempty"`
}

// registryWire tolerates the legacy document shape where props was stored as
// a single-element array instead of an object.
type registryWire struct {
	Characters   map[string]Character   `json:"characters"`
	Groups       map[string]Group       `json:"groups"`
	Props        json.RawMessage        `json:"props"`
	Environments map[string]Environment `json:"environments"`
	Notes        string                 `json:"notes"`
}

func (r *Registry) UnmarshalJSON(data []byte) error {
	var w registryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Characters = w.Characters
	r.Groups = w.Groups
	r.Environments = w.Environments
	r.Notes = w.Notes
	r.Props = nil
	if len(w.Props) == 0 {
		return nil
	}
	switch w.Props[0] {
	case '[':
		var list []map[string]Prop
		if err := json.Unmarshal(w.Props, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			r.Props = list[0]
		}
	case '{':
		return json.Unmarshal(w.Props, &r.Props)
	}
	return nil
}

func NewRegistry() *Registry {
	return &Registry{
		Characters:   make(map[string]Character),
		Groups:       make(map[string]Group),
		Props:        make(map[string]Prop),
		Environments: make(map[string]Environment),
	}
}

// Clone returns a deep copy; callers mutate snapshots freely without touching
// the persisted document.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	out := NewRegistry()
	out.Notes = r.Notes
	for k, v := range r.Characters {
		out.Characters[k] = v
	}
	for k, v := range r.Groups {
		g := v
		g.Members = append([]string(nil), v.Members...)
		out.Groups[k] = g
	}
	for k, v := range r.Props {
		out.Props[k] = v
	}
	for k, v := range r.Environments {
		out.Environments[k] = v
	}
	return out
}

// Protagonist returns the key and character with role protagonist, if any.
func (r *Registry) Protagonist() (string, *Character) {
	if r == nil {
		return "", nil
	}
	for k, c := range r.Characters {
		if c.Role == RoleProtagonist {
			ch := c
			return k, &ch
		}
	}
	return "", nil
}

type Character struct {
	Name          string       `json:"name"`
	Role          Role         `json:"role"`
	Type          string       `json:"type,omitempty"`
	Breed         string       `json:"breed,omitempty"`
	Gender        string       `json:"gender,omitempty"`
	Traits        []string     `json:"traits,omitempty"`
	Relationship  string       `json:"relationship_to_protagonist,omitempty"`
	Visual        *Visual      `json:"visual,omitempty"`
	HasModel      bool         `json:"has_model"`
	VisualSource  VisualSource `json:"visual_source"`
	ModelURL      string       `json:"model_url,omitempty"`
	LockedAt      *time.Time   `json:"locked_at,omitempty"`
	FirstSeenPage int          `json:"first_seen_page,omitempty"`
}

// Locked reports whether the character's visuals are frozen behind an
// uploaded reference.
func (c Character) Locked() bool { return c.LockedAt != nil }

type Visual struct {
	AgeRange            string   `json:"age_range,omitempty"`
	Hair                string   `json:"hair,omitempty"`
	SkinTone            string   `json:"skin_tone,omitempty"`
	Build               string   `json:"build,omitempty"`
	Size                string   `json:"size,omitempty"`
	Colors              []string `json:"colors,omitempty"`
	DistinctiveFeatures string   `json:"distinctive_features,omitempty"`
	TypicalClothing     string   `json:"typical_clothing,omitempty"`
}

// Group captures unnamed plural people ("the grandkids"); individually named
// people always become Characters instead.
type Group struct {
	Key           string      `json:"key"`
	Name          string      `json:"name"`
	Singular      string      `json:"singular,omitempty"`
	DetectedTerm  string      `json:"detected_term,omitempty"`
	DetectedCount *int        `json:"detected_count,omitempty"`
	CountSource   CountSource `json:"count_source,omitempty"`
	Relationship  string      `json:"relationship_to_protagonist,omitempty"`
	Members       []string    `json:"members"`
	FirstSeenPage int         `json:"first_seen_page,omitempty"`
}

type Prop struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Visual        string `json:"visual,omitempty"`
	FirstSeenPage int    `json:"first_seen_page,omitempty"`
	RefImageURL   string `json:"ref_image_url,omitempty"`
}

type Environment struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Owner         string `json:"owner,omitempty"`
	Style         string `json:"style,omitempty"`
	FirstSeenPage int    `json:"first_seen_page,omitempty"`
}

// ScenePlan is the Composition Planner's output for one page.
type ScenePlan struct {
	Characters  []string `json:"characters"`
	Props       []string `json:"props"`
	Environment string   `json:"environment,omitempty"`
}
