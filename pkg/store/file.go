package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"storywoven/pkg/schema"
	"storywoven/pkg/utils"
)

// FileStore keeps one JSON document per project under a data directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, utils.SanitizeFilename(id)+".json")
}

func (s *FileStore) LoadProject(_ context.Context, id string) (*schema.Project, error) {
	p, err := utils.Load[schema.Project](s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("loading project %s: %w", id, err)
	}
	return &p, nil
}

func (s *FileStore) WriteProject(_ context.Context, p *schema.Project) error {
	p.UpdatedAt = time.Now().UTC()
	if err := utils.Save(s.path(p.ID), p); err != nil {
		return fmt.Errorf("writing project %s: %w", p.ID, err)
	}
	return nil
}
