// Package storage is the object-storage collaborator: stable paths,
// idempotent overwrite.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/webp"
)

// ErrStorageFailure wraps every failed object write or read so callers can
// classify storage trouble without knowing the backend.
var ErrStorageFailure = errors.New("object storage failure")

type ObjectStorage interface {
	// Put stores data at path and returns a public URL. Writing the same
	// path twice overwrites.
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	// Get reads back a previously stored object.
	Get(ctx context.Context, path string) ([]byte, error)
}

// LocalStorage writes under a public directory served by the HTTP layer.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStorage) fullPath(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	return filepath.Join(s.dir, clean), nil
}

func (s *LocalStorage) Put(_ context.Context, path string, data []byte, _ string) (string, error) {
	full, err := s.fullPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating object dir: %w: %w", ErrStorageFailure, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("writing object %s: %w: %w", path, ErrStorageFailure, err)
	}
	return s.baseURL + "/" + strings.TrimLeft(path, "/"), nil
}

func (s *LocalStorage) Get(_ context.Context, path string) ([]byte, error) {
	full, err := s.fullPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w: %w", path, ErrStorageFailure, err)
	}
	return data, nil
}

// Dir exposes the root for static file serving.
func (s *LocalStorage) Dir() string { return s.dir }

// EncodeWebP re-encodes PNG (or any decodable image) bytes as a high-quality
// WebP preview.
func EncodeWebP(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		var err2 error
		img, _, err2 = image.Decode(bytes.NewReader(data))
		if err2 != nil {
			return nil, fmt.Errorf("failed to decode image (png: %v, generic: %v)", err, err2)
		}
	}
	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, webp.Options{Lossless: false, Quality: 100}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// Stable object paths shared by the pipeline.

func IllustrationPath(projectID string, page int) string {
	return fmt.Sprintf("illustrations/%s-page-%d.png", projectID, page)
}

func CharacterModelPath(projectID string) string {
	return fmt.Sprintf("character_models/%s.png", projectID)
}

func CharacterModelPreviewPath(projectID string) string {
	return fmt.Sprintf("character_models/%s.webp", projectID)
}

func SourcePhotoPath(projectID, characterKey, ext string) string {
	return fmt.Sprintf("source_photos/%s/%s.%s", projectID, characterKey, ext)
}
