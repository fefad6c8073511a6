package image

import (
	"context"
	"errors"

	"partykit/internal/domain"
)

// ErrNoImage is returned by providers that answered but produced no picture.
var ErrNoImage = errors.New("image: provider returned no image")

// Provider names accepted by NewGenerator.
const (
	ProviderGemini    = domain.ProviderGemini
	ProviderGenAISDK  = domain.ProviderGenAISDK
	ProviderSynthetic = domain.ProviderSynthetic
)

// SourceImage is a conditioning picture sent inline with the prompt.
type SourceImage struct {
	MIME string
	Data []byte
}

// GenerateRequest is one model call: a prompt, the framing and the reference
// images in the order the prompt refers to them.
type GenerateRequest struct {
	Prompt      string
	AspectRatio string
	RequestID   string
	Images      []SourceImage
}

// Asset represents a generated image.
type Asset struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
}

// Generator is the contract implemented by all image providers. Exactly one
// model request is issued per call.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
