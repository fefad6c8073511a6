package domain

import (
	"fmt"
	"strings"
)

// Image provider names.
const (
	ProviderGemini    = "gemini"
	ProviderGenAISDK  = "genai-sdk"
	ProviderSynthetic = "synthetic"
)

// NormalizeProvider maps free-form configuration onto a provider name.
func NormalizeProvider(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderGemini, "rest":
		return ProviderGemini, nil
	case ProviderGenAISDK, "sdk":
		return ProviderGenAISDK, nil
	case ProviderSynthetic, "offline":
		return ProviderSynthetic, nil
	default:
		return "", fmt.Errorf("unknown image provider %q", name)
	}
}
