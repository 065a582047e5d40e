// Package store persists per-project documents. Writes replace the whole
// document; the last writer wins and nothing spans two projects.
package store

import (
	"context"
	"errors"

	"storywoven/pkg/schema"
)

var ErrProjectNotFound = errors.New("store: project not found")

type Store interface {
	LoadProject(ctx context.Context, id string) (*schema.Project, error)
	WriteProject(ctx context.Context, p *schema.Project) error
}
