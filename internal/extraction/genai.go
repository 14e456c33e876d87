package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/andresuchdata/fleetdocs/internal/config"
	"github.com/andresuchdata/fleetdocs/internal/domain"
)

const defaultModel = "gemini-2.5-flash"

var supportedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
}

// GenAIExtractor asks a Gemini model to read certificate scans.
type GenAIExtractor struct {
	client *genai.Client
	model  string
}

// New returns the configured extractor, or a no-op one when no API key is
// set.
func New(ctx context.Context, cfg *config.Config) (Extractor, error) {
	if cfg.GenAI.APIKey == "" {
		log.Info().Msg("GenAI API key not set, certificate extraction disabled")
		return NewNoopExtractor(), nil
	}
	return NewGenAIExtractor(ctx, cfg.GenAI.APIKey, cfg.GenAI.Model)
}

func NewGenAIExtractor(ctx context.Context, apiKey, model string) (*GenAIExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIExtractor{client: client, model: model}, nil
}

func (e *GenAIExtractor) Extract(ctx context.Context, file domain.UploadedFile) (*Result, error) {
	mimeType := normalizeMimeType(file.ContentType)
	if !supportedMimeTypes[mimeType] {
		return nil, fmt.Errorf("unsupported file type for extraction: %q", file.ContentType)
	}
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("file %s is empty", file.Filename)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(file.Data, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}

	result, err := ParseResponse(resp.Text())
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("file", file.Filename).
		Str("model", e.model).
		Int("warnings", len(result.Warnings)).
		Msg("Certificate fields extracted")

	return result, nil
}

func normalizeMimeType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "image/jpg" {
		return "image/jpeg"
	}
	return ct
}
