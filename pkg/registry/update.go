package registry

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"storywoven/pkg/schema"
)

const defaultEnvironmentStyle = "soft, warm, child-friendly rendering consistent with the rest of the book"

// ApplyPageDiscoveries merges a page's extracted location and props into the
// registry. Existing entries are never modified or removed, and characters
// are never touched here; character mutation belongs to finalization and the
// protagonist lock.
func ApplyPageDiscoveries(reg *schema.Registry, loc *schema.LocationExtraction, props []schema.PropExtraction, page int) {
	if reg == nil {
		return
	}
	if reg.Environments == nil {
		reg.Environments = make(map[string]schema.Environment)
	}
	if reg.Props == nil {
		reg.Props = make(map[string]schema.Prop)
	}

	if loc != nil && loc.Location != "" {
		key := schema.NormalizeKey(loc.Location)
		if _, ok := reg.Environments[key]; !ok && key != "" {
			reg.Environments[key] = schema.Environment{
				Name:          loc.Location,
				Description:   loc.Description,
				Owner:         loc.Owner,
				Style:         defaultEnvironmentStyle,
				FirstSeenPage: page,
			}
			log.Debug("registered environment", "key", key, "page", page)
		}
	}

	for _, pe := range props {
		key := schema.NormalizeKey(pe.Name)
		if key == "" {
			continue
		}
		if _, isCharacter := reg.Characters[key]; isCharacter {
			continue
		}
		if _, exists := reg.Props[key]; exists {
			continue
		}
		duplicate := false
		for _, existing := range reg.Props {
			if EquivalentPropNames(existing.Name, pe.Name) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		reg.Props[key] = schema.Prop{
			Name:          pe.Name,
			Description:   pe.Description,
			Visual:        pe.Visual,
			FirstSeenPage: page,
		}
		log.Debug("registered prop", "key", key, "page", page)
	}
}

// LockProtagonist marks the protagonist's visuals as frozen behind the
// rendered character model. Returns false (without error) when the registry
// has no protagonist to lock.
func (s *Service) LockProtagonist(ctx context.Context, projectID, modelURL string) (bool, error) {
	p, err := s.Store.LoadProject(ctx, projectID)
	if err != nil {
		return false, err
	}
	if p.Registry == nil {
		log.Warn("protagonist lock skipped: no registry yet", "project", projectID)
		return false, nil
	}

	key, _ := p.Registry.Protagonist()
	if key == "" {
		childKey := schema.NormalizeKey(p.ChildName)
		if _, ok := p.Registry.Characters[childKey]; ok {
			key = childKey
		}
	}
	if key == "" {
		log.Warn("protagonist lock skipped: no protagonist found", "project", projectID, "child", p.ChildName)
		return false, nil
	}

	now := time.Now().UTC()
	c := p.Registry.Characters[key]
	c.VisualSource = schema.VisualSourceUser
	c.Visual = nil
	c.HasModel = true
	c.ModelURL = modelURL
	c.LockedAt = &now
	p.Registry.Characters[key] = c

	if err := s.Store.WriteProject(ctx, p); err != nil {
		return false, err
	}
	log.Info("protagonist locked", "project", projectID, "character", key)
	return true, nil
}
