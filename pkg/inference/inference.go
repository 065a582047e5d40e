package inference

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Sentinel failures of the adapter boundary. The adapter never retries on
// its own; callers decide.
var (
	ErrMalformedOutput = errors.New("inference: no balanced JSON object in model output")
	ErrNoImage         = errors.New("inference: model returned no image")
)

// Attachment is a reference image sent alongside an instruction.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// ExtractRequest asks the model for a single JSON object. Instruction plays
// the system role, Input the user role. When Schema is set, providers that
// support structured outputs enforce it; the instruction should still embed
// the expected shape in prose for providers that do not.
type ExtractRequest struct {
	Instruction string
	Input       string
	Attachments []Attachment

	SchemaName        string
	SchemaDescription string
	Schema            any

	MaxTokens int64
}

// GenerateRequest asks the model to produce one image. Attachments are
// character reference images the output must match.
type GenerateRequest struct {
	Instruction string
	Attachments []Attachment
}

// Adapter is the narrow, stateless large-model capability. It knows nothing
// about projects, registries, or pages.
type Adapter interface {
	ExtractStructured(ctx context.Context, req ExtractRequest) (json.RawMessage, error)
	GenerateImage(ctx context.Context, req GenerateRequest) ([]byte, error)
}

// Timeouts bound the two operations; cancellation propagates to the
// underlying request either way.
type Timeouts struct {
	Extract  time.Duration
	Generate time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Extract:  30 * time.Second,
		Generate: 120 * time.Second,
	}
}

func (t Timeouts) orDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Extract <= 0 {
		t.Extract = d.Extract
	}
	if t.Generate <= 0 {
		t.Generate = d.Generate
	}
	return t
}
