package image

import (
	"context"
	"net/http"

	"partykit/internal/domain"
	"partykit/internal/infra"
	"partykit/internal/providers/genai"
)

// GeneratorOptions carries the settings shared by every provider.
type GeneratorOptions struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// NewGenerator builds the provider named in opts. The REST provider without
// an API key, and the synthetic provider, render placeholder images locally.
func NewGenerator(ctx context.Context, opts GeneratorOptions) (Generator, string, error) {
	name, err := domain.NormalizeProvider(opts.Provider)
	if err != nil {
		return nil, "", err
	}

	switch name {
	case ProviderGenAISDK:
		if opts.APIKey != "" {
			gen, err := NewSDKGenerator(ctx, SDKOptions{
				APIKey:     opts.APIKey,
				Model:      opts.Model,
				BaseURL:    opts.BaseURL,
				HTTPClient: opts.HTTPClient,
			})
			if err != nil {
				return nil, "", err
			}
			return gen, name, nil
		}
		name = ProviderSynthetic
	case ProviderGemini:
		if opts.APIKey == "" {
			name = ProviderSynthetic
		}
	}

	apiKey := opts.APIKey
	if name == ProviderSynthetic {
		apiKey = ""
	}
	client, err := genai.NewClient(genai.Options{
		APIKey:     apiKey,
		BaseURL:    opts.BaseURL,
		Model:      opts.Model,
		HTTPClient: opts.HTTPClient,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, "", err
	}
	return NewGeminiGenerator(client), name, nil
}
