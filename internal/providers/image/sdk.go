package image

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// SDKOptions configures the Google GenAI SDK backed generator.
type SDKOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// SDKGenerator talks to Gemini through the official google.golang.org/genai
// client instead of the hand-rolled REST client.
type SDKGenerator struct {
	client *genai.Client
	model  string
}

func NewSDKGenerator(ctx context.Context, opts SDKOptions) (*SDKGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("image: genai sdk requires an api key")
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("image: create genai client: %w", err)
	}
	return &SDKGenerator{client: client, model: model}, nil
}

func (g *SDKGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		if len(img.Data) == 0 {
			continue
		}
		mime := img.MIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromBytes(img.Data, mime))
	}
	parts = append(parts, genai.NewPartFromText(strings.TrimSpace(req.Prompt)))

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	if req.AspectRatio != "" {
		config.ImageConfig = &genai.ImageConfig{AspectRatio: req.AspectRatio}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		config,
	)
	if err != nil {
		return nil, fmt.Errorf("image: genai generate: %w", err)
	}

	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			format := part.InlineData.MIMEType
			if format == "" {
				format = "image/png"
			}
			return &Asset{Format: format, Data: part.InlineData.Data}, nil
		}
	}
	return nil, ErrNoImage
}

var _ Generator = (*SDKGenerator)(nil)
