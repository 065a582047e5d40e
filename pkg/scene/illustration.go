package scene

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"storywoven/pkg/schema"
)

// applyIllustration records a freshly rendered image on the project and
// returns the page's record. A regeneration pushes the prior image onto the
// bounded history and spends one revision; a first render spends none.
func applyIllustration(p *schema.Project, page int, url, notes string, regen bool) *schema.IllustrationRecord {
	now := time.Now()
	rec := p.Illustration(page)
	if rec == nil {
		p.Illustrations = append(p.Illustrations, schema.IllustrationRecord{Page: page})
		rec = &p.Illustrations[len(p.Illustrations)-1]
	}

	if regen {
		rec.History = append([]schema.IllustrationRevision{{
			URL:       rec.ImageURL,
			CreatedAt: rec.LastUpdated,
			Notes:     rec.Notes,
		}}, rec.History...)
		if len(rec.History) > schema.MaxRevisionHistory {
			rec.History = rec.History[:schema.MaxRevisionHistory]
		}
		rec.Revisions++
	}

	rec.ImageURL = url
	rec.Notes = notes
	rec.LastUpdated = now
	return rec
}

// SetIllustration pins a previously generated image as the page's active
// illustration. The chosen URL must come from the page's history; pinning
// spends no revisions.
func (c *Coordinator) SetIllustration(ctx context.Context, projectID string, page int, imageURL string) (*schema.IllustrationRecord, error) {
	p, err := c.Store.LoadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	rec := p.Illustration(page)
	if rec == nil {
		return nil, fmt.Errorf("%w: page %d has no illustration", schema.ErrPageNotFound, page)
	}

	// Every render at a page's stable path carries a distinct version query,
	// so URLs compare whole.
	if imageURL == rec.ImageURL {
		return rec, nil
	}

	for i := range rec.History {
		if rec.History[i].URL != imageURL {
			continue
		}
		chosen := rec.History[i]
		rec.History[i] = schema.IllustrationRevision{
			URL:       rec.ImageURL,
			CreatedAt: rec.LastUpdated,
			Notes:     rec.Notes,
		}
		rec.ImageURL = chosen.URL
		rec.Notes = chosen.Notes
		rec.LastUpdated = time.Now()

		if err := c.Store.WriteProject(ctx, p); err != nil {
			return nil, err
		}
		log.Info("illustration pinned", "project", projectID, "page", page)
		return rec, nil
	}
	// A stale or cache-busted reference to the current image still means
	// "keep what is shown": same stable path, no history entry to restore.
	if stripVersion(imageURL) == stripVersion(rec.ImageURL) {
		return rec, nil
	}
	return nil, fmt.Errorf("%w: image is not in page %d's revision history", schema.ErrInvalidInput, page)
}

func stripVersion(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
