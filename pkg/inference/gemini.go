package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiAdapter implements Adapter using the Gemini SDK. Image generation
// uses the image-response modality; the first inline image part is the
// result.
type GeminiAdapter struct {
	client     *genai.Client
	model      string
	imageModel string
	timeouts   Timeouts
}

func NewGeminiAdapter(ctx context.Context, apiKey, model, imageModel string, timeouts Timeouts) (*GeminiAdapter, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if imageModel == "" {
		imageModel = "gemini-2.5-flash-image"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{
		client:     client,
		model:      model,
		imageModel: imageModel,
		timeouts:   timeouts.orDefaults(),
	}, nil
}

func (g *GeminiAdapter) ExtractStructured(ctx context.Context, req ExtractRequest) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeouts.Extract)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096 * 4
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(withSchemaHint(req.Instruction, req.Schema), genai.RoleModel),
		ResponseMIMEType:  "application/json",
		MaxOutputTokens:   int32(maxTokens),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents(req.Input, req.Attachments), config)
	if err != nil {
		return nil, fmt.Errorf("gemini extraction error: %w", err)
	}
	return clampObject(result.Text())
}

func (g *GeminiAdapter) GenerateImage(ctx context.Context, req GenerateRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeouts.Generate)
	defer cancel()

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	result, err := g.client.Models.GenerateContent(ctx, g.imageModel, contents(req.Instruction, req.Attachments), config)
	if err != nil {
		return nil, fmt.Errorf("gemini image generation error: %w", err)
	}
	for _, cand := range result.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, ErrNoImage
}

// withSchemaHint appends the reflected JSON schema to the instruction. The
// Gemini JSON response mode constrains syntax only, so the expected shape
// rides along in the prompt.
func withSchemaHint(instruction string, schema any) string {
	if schema == nil {
		return instruction
	}
	js, err := json.Marshal(schema)
	if err != nil {
		return instruction
	}
	return instruction + "\n\nRespond with a single JSON object conforming to this JSON schema:\n" + string(js)
}

func contents(text string, attachments []Attachment) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(text)}
	for _, att := range attachments {
		parts = append(parts, genai.NewPartFromBytes(att.Data, att.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}
