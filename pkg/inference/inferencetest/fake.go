// Package inferencetest provides a scriptable Adapter for tests.
package inferencetest

import (
	"context"
	"encoding/json"
	"sync"

	"storywoven/pkg/inference"
)

// Fake records calls and returns whatever the configured funcs produce. Nil
// funcs return empty successes so tests only script what they care about.
// Callers may issue requests concurrently.
type Fake struct {
	ExtractFunc  func(req inference.ExtractRequest) (json.RawMessage, error)
	GenerateFunc func(req inference.GenerateRequest) ([]byte, error)

	mu            sync.Mutex
	ExtractCalls  []inference.ExtractRequest
	GenerateCalls []inference.GenerateRequest
}

func (f *Fake) ExtractStructured(_ context.Context, req inference.ExtractRequest) (json.RawMessage, error) {
	f.mu.Lock()
	f.ExtractCalls = append(f.ExtractCalls, req)
	f.mu.Unlock()
	if f.ExtractFunc == nil {
		return json.RawMessage(`{}`), nil
	}
	return f.ExtractFunc(req)
}

func (f *Fake) GenerateImage(_ context.Context, req inference.GenerateRequest) ([]byte, error) {
	f.mu.Lock()
	f.GenerateCalls = append(f.GenerateCalls, req)
	f.mu.Unlock()
	if f.GenerateFunc == nil {
		return []byte("png-bytes"), nil
	}
	return f.GenerateFunc(req)
}

// BySchema routes extraction responses on req.SchemaName; handy when one
// operation issues several different extractions.
func BySchema(responses map[string]string) func(inference.ExtractRequest) (json.RawMessage, error) {
	return func(req inference.ExtractRequest) (json.RawMessage, error) {
		if body, ok := responses[req.SchemaName]; ok {
			return json.RawMessage(body), nil
		}
		return json.RawMessage(`{}`), nil
	}
}
