package image

import (
	"context"
	"errors"

	"partykit/internal/providers/genai"
)

// GeminiGenerator adapts the REST Gemini client to the Generator contract.
type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	images := make([]genai.InlineImage, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, genai.InlineImage{Data: img.Data, MIMEType: img.MIME})
	}
	asset, err := g.client.GenerateImage(ctx, genai.ImageRequest{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Images:      images,
		RequestID:   req.RequestID,
	})
	if err != nil {
		if errors.Is(err, genai.ErrNoImage) {
			return nil, errors.Join(ErrNoImage, err)
		}
		return nil, err
	}
	return &Asset{
		URL:    asset.URL,
		Format: asset.Format,
		Width:  asset.Width,
		Height: asset.Height,
		Data:   asset.Data,
	}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
