package inference

import (
	"bytes"
	"cmp"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"storywoven/pkg/utils"
)

// OpenAIAdapter implements Adapter against any OpenAI-compatible endpoint.
type OpenAIAdapter struct {
	client     *openai.Client
	apiKey     string
	model      string
	imageModel string
	timeouts   Timeouts
}

func NewOpenAIAdapter(apiKey, model, imageModel string, timeouts Timeouts) *OpenAIAdapter {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = "gpt-4o-mini"
	}
	if imageModel == "" {
		imageModel = "gpt-image-1"
	}
	return &OpenAIAdapter{
		client:     &client,
		apiKey:     apiKey,
		model:      model,
		imageModel: imageModel,
		timeouts:   timeouts.orDefaults(),
	}
}

func (o *OpenAIAdapter) ChangeBaseURL(baseURL string) {
	client := openai.NewClient(
		option.WithAPIKey(o.apiKey),
		option.WithBaseURL(baseURL),
	)
	o.client = &client
}

func (o *OpenAIAdapter) ExtractStructured(ctx context.Context, req ExtractRequest) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Extract)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Role: "system",
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: param.Opt[string]{Value: req.Instruction},
					},
				},
			},
			userMessage(req),
		},
		MaxCompletionTokens: openai.Int(cmp.Or(req.MaxTokens, 4096*4)),
		Temperature:         openai.Float(0.3),
		TopP:                openai.Float(1.0),
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        cmp.Or(req.SchemaName, "extraction"),
					Description: openai.String(req.SchemaDescription),
					Schema:      req.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai extraction error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned")
	}
	return clampObject(resp.Choices[0].Message.Content)
}

func userMessage(req ExtractRequest) openai.ChatCompletionMessageParamUnion {
	if len(req.Attachments) == 0 {
		return openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Role: "user",
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: param.Opt[string]{Value: req.Input},
				},
			},
		}
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.Attachments)+1)
	parts = append(parts, openai.ChatCompletionContentPartUnionParam{
		OfText: &openai.ChatCompletionContentPartTextParam{Text: req.Input},
	})
	for _, att := range req.Attachments {
		uri := fmt.Sprintf("data:%s;base64,%s", att.MIMEType, base64.StdEncoding.EncodeToString(att.Data))
		parts = append(parts, openai.ChatCompletionContentPartUnionParam{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: uri},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Role: "user",
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: parts,
			},
		},
	}
}

// GenerateImage renders through the images endpoint; reference attachments
// switch the call to an edit so the model can match them.
func (o *OpenAIAdapter) GenerateImage(ctx context.Context, req GenerateRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Generate)
	defer cancel()

	var b64 string
	if len(req.Attachments) > 0 {
		refs := make([]io.Reader, 0, len(req.Attachments))
		for i, att := range req.Attachments {
			refs = append(refs, openai.File(bytes.NewReader(att.Data), fmt.Sprintf("reference-%d.png", i), att.MIMEType))
		}
		resp, err := o.client.Images.Edit(ctx, openai.ImageEditParams{
			Model:  openai.ImageModel(o.imageModel),
			Image:  openai.ImageEditParamsImageUnion{OfFileArray: refs},
			Prompt: req.Instruction,
			N:      openai.Int(1),
		})
		if err != nil {
			return nil, fmt.Errorf("openai image edit error: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, ErrNoImage
		}
		b64 = resp.Data[0].B64JSON
	} else {
		resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
			Model:  openai.ImageModel(o.imageModel),
			Prompt: req.Instruction,
			N:      openai.Int(1),
			Size:   openai.ImageGenerateParamsSize1024x1024,
		})
		if err != nil {
			return nil, fmt.Errorf("openai image generation error: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, ErrNoImage
		}
		b64 = resp.Data[0].B64JSON
	}
	if b64 == "" {
		return nil, ErrNoImage
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decoding image payload: %w", err)
	}
	return data, nil
}

// clampObject strips code fences and clamps raw model output to the balanced
// top-level object.
func clampObject(out string) (json.RawMessage, error) {
	out = utils.CleanJSON(out)
	obj, ok := utils.BalancedObject(out)
	if !ok {
		return nil, ErrMalformedOutput
	}
	return json.RawMessage(obj), nil
}
