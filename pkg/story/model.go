package story

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"storywoven/pkg/inference"
	"storywoven/pkg/schema"
	"storywoven/pkg/storage"
)

type ModelInput struct {
	ProjectID string
	// Photo is an optional caretaker-supplied reference photo of the child.
	Photo     []byte
	PhotoMIME string
	Force     bool
}

// GenerateCharacterModel renders the protagonist's cartoon reference model and
// locks the protagonist behind it. Concurrent requests for the same project
// coalesce onto one render.
func (s *Service) GenerateCharacterModel(in ModelInput) (schema.CharacterModel, error) {
	s.modelParams.Store(in.ProjectID, in)
	if in.Force {
		return s.modelFlight.Force(in.ProjectID)
	}
	return s.modelFlight.Get(in.ProjectID)
}

func (s *Service) renderModel(projectID string) (schema.CharacterModel, error) {
	in, ok := s.modelParams.Load(projectID)
	if !ok {
		in = ModelInput{ProjectID: projectID}
	}
	ctx := s.Ctx

	p, err := s.Store.LoadProject(ctx, projectID)
	if err != nil {
		return schema.CharacterModel{}, err
	}

	key := schema.NormalizeKey(p.ChildName)
	if key == "" {
		return schema.CharacterModel{}, fmt.Errorf("%w: project has no child name", schema.ErrInvalidInput)
	}

	if len(in.Photo) > 0 {
		ext := photoExt(in.PhotoMIME)
		if _, err := s.Storage.Put(ctx, storage.SourcePhotoPath(projectID, key, ext), in.Photo, in.PhotoMIME); err != nil {
			log.Warn("keeping going without archiving source photo", "project", projectID, "err", err)
		}
	}

	var img []byte
	if s.Placeholder {
		img, err = placeholderModel(p.ChildName)
	} else {
		img, err = s.Adapter.GenerateImage(ctx, inference.GenerateRequest{
			Instruction: modelInput(p, len(in.Photo) > 0),
			Attachments: photoAttachment(in),
		})
	}
	if err != nil {
		return schema.CharacterModel{}, err
	}

	modelPath := storage.CharacterModelPath(projectID)
	modelURL, err := s.Storage.Put(ctx, modelPath, img, "image/png")
	if err != nil {
		return schema.CharacterModel{}, err
	}

	previewURL := ""
	if preview, err := storage.EncodeWebP(img); err != nil {
		log.Warn("model preview encoding failed", "project", projectID, "err", err)
	} else if previewURL, err = s.Storage.Put(ctx, storage.CharacterModelPreviewPath(projectID), preview, "image/webp"); err != nil {
		log.Warn("model preview upload failed", "project", projectID, "err", err)
		previewURL = ""
	}

	model := schema.CharacterModel{
		CharacterKey: key,
		ModelURL:     modelURL,
		ModelPath:    modelPath,
		PreviewURL:   previewURL,
		CreatedAt:    time.Now(),
	}
	p.UpsertModel(model)
	if err := s.Store.WriteProject(ctx, p); err != nil {
		return schema.CharacterModel{}, err
	}

	if locked, err := s.Registry.LockProtagonist(ctx, projectID, modelURL); err != nil {
		log.Warn("model saved but protagonist lock failed", "project", projectID, "err", err)
	} else if locked {
		log.Info("protagonist locked behind model", "project", projectID, "character", key)
	}

	return model, nil
}

func photoAttachment(in ModelInput) []inference.Attachment {
	if len(in.Photo) == 0 {
		return nil
	}
	mime := in.PhotoMIME
	if mime == "" {
		mime = "image/jpeg"
	}
	return []inference.Attachment{{MIMEType: mime, Data: in.Photo}}
}

func photoExt(mime string) string {
	switch {
	case strings.Contains(mime, "png"):
		return "png"
	case strings.Contains(mime, "webp"):
		return "webp"
	default:
		return "jpg"
	}
}

func modelInput(p *schema.Project, hasPhoto bool) string {
	var b strings.Builder
	b.WriteString(modelInstruction)
	fmt.Fprintf(&b, "\n\nChild's name: %s\n", p.ChildName)
	if p.ChildDescription != "" {
		fmt.Fprintf(&b, "Caretaker's description (authoritative): %s\n", p.ChildDescription)
	}
	if hasPhoto {
		b.WriteString("\nA photo of the child is attached; match their likeness in the cartoon style.\n")
	}
	return b.String()
}

// placeholderModel renders a deterministic solid tile from the child's name
// so the pipeline runs end to end without an image model.
func placeholderModel(childName string) ([]byte, error) {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(childName))))
	img := image.NewRGBA(image.Rect(0, 0, 512, 512))
	fill := color.RGBA{R: sum[0], G: sum[1], B: sum[2], A: 255}
	for y := 0; y < 512; y++ {
		for x := 0; x < 512; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding placeholder model: %w", err)
	}
	return buf.Bytes(), nil
}
