package artifact

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/harun/iattom/internal/observability"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

const defaultImageModel = "dall-e-3"

// ImageOptions configures an ImageGenerator
type ImageOptions struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ImageGenerator creates images with the OpenAI Images API
type ImageGenerator struct {
	client openai.Client
	model  string
	store  *DocumentStore
	logger zerolog.Logger
}

// NewImageGenerator returns nil when no API key is configured. store is used
// for models that answer with inline image data instead of a URL; it may be nil.
func NewImageGenerator(opts ImageOptions, store *DocumentStore, logger zerolog.Logger) *ImageGenerator {
	if opts.APIKey == "" {
		return nil
	}
	observability.EnsureRegistered()

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey), option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	model := opts.Model
	if model == "" {
		model = defaultImageModel
	}
	return &ImageGenerator{
		client: openai.NewClient(reqOpts...),
		model:  model,
		store:  store,
		logger: logger,
	}
}

// Generate returns a public URL for an image of prompt, or "" when the API
// produced nothing usable.
func (g *ImageGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(g.model),
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		observability.RecordArtifact("image", false)
		return "", fmt.Errorf("failed to generate image: %w", err)
	}
	if len(resp.Data) == 0 {
		observability.RecordArtifact("image", false)
		return "", nil
	}

	img := resp.Data[0]
	if img.URL != "" {
		observability.RecordArtifact("image", true)
		return img.URL, nil
	}
	if img.B64JSON == "" {
		observability.RecordArtifact("image", false)
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(img.B64JSON)
	if err != nil {
		observability.RecordArtifact("image", false)
		return "", fmt.Errorf("failed to decode image data: %w", err)
	}
	doc, err := g.store.Save(ctx, FormatPNG, data)
	if err != nil {
		observability.RecordArtifact("image", false)
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	observability.RecordArtifact("image", true)
	return doc.URL, nil
}
