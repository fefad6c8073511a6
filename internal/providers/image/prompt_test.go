package image

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"partykit/internal/domain"
)

func baseConfig() domain.GenerationConfig {
	return domain.GenerationConfig{
		Age:         "5",
		Features:    "curly blonde hair",
		Style:       domain.StylePixar,
		Tone:        domain.ToneMagical,
		SourceImage: domain.Image{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"},
	}
}

func TestBuildKitPromptIsPure(t *testing.T) {
	cfg := baseConfig()
	for _, item := range domain.ItemTypes() {
		first, ar1, err := BuildKitPrompt(item, cfg)
		if err != nil {
			t.Fatalf("BuildKitPrompt(%s) error = %v", item, err)
		}
		second, ar2, err := BuildKitPrompt(item, cfg)
		if err != nil {
			t.Fatalf("BuildKitPrompt(%s) error = %v", item, err)
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("BuildKitPrompt(%s) not deterministic (-first +second):\n%s", item, diff)
		}
		if ar1 != ar2 {
			t.Fatalf("aspect ratio changed between calls: %s vs %s", ar1, ar2)
		}
	}
}

func TestBuildKitPromptContent(t *testing.T) {
	prompt, _, err := BuildKitPrompt(domain.ItemCharacter, baseConfig())
	if err != nil {
		t.Fatalf("BuildKitPrompt() error = %v", err)
	}
	for _, want := range []string{
		"HIGH-FIDELITY FACIAL REPLICATION",
		"CHILD TRAITS (ADDITIONAL): curly blonde hair.",
		"ESTIMATED AGE: 5.",
		styleDescriptions[domain.StylePixar],
		toneDescriptions[domain.ToneMagical],
		"Full body standing mascot character",
		"NO TEXT (except for age_number)",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "THEME REFERENCE") {
		t.Fatalf("prompt mentions a theme image that was not supplied")
	}
}

func TestBuildKitPromptPlaceholders(t *testing.T) {
	cfg := baseConfig()
	cfg.Age = ""
	cfg.Features = "  "

	prompt, _, err := BuildKitPrompt(domain.ItemAgeNumber, cfg)
	if err != nil {
		t.Fatalf("BuildKitPrompt() error = %v", err)
	}
	if !strings.Contains(prompt, "No extra features provided by user.") {
		t.Fatalf("missing features placeholder")
	}
	if !strings.Contains(prompt, "ESTIMATED AGE: child age.") {
		t.Fatalf("missing age placeholder")
	}
	if !strings.Contains(prompt, `giant decorative 3D number "1"`) {
		t.Fatalf("age number should default to 1")
	}
}

func TestBuildKitPromptAgeNumber(t *testing.T) {
	prompt, _, err := BuildKitPrompt(domain.ItemAgeNumber, baseConfig())
	if err != nil {
		t.Fatalf("BuildKitPrompt() error = %v", err)
	}
	if !strings.Contains(prompt, `giant decorative 3D number "5"`) {
		t.Fatalf("prompt does not embed the age number")
	}
}

func TestBuildKitPromptTheme(t *testing.T) {
	cfg := baseConfig()
	cfg.ThemeName = "Dino Baby"
	cfg.ThemePrompt = "wearing a cute dinosaur hoodie"
	cfg.ThemeImage = &domain.Image{Data: []byte{1}, MIMEType: "image/png"}

	prompt, _, err := BuildKitPrompt(domain.ItemTopper, cfg)
	if err != nil {
		t.Fatalf("BuildKitPrompt() error = %v", err)
	}
	for _, want := range []string{
		`THEME: The party theme is "Dino Baby". The character is wearing a cute dinosaur hoodie.`,
		"THEME REFERENCE",
		"MUST match the 'theme reference image'",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestAspectRatioFor(t *testing.T) {
	want := map[domain.ItemType]domain.AspectRatio{
		domain.ItemCharacter:   domain.AspectSquare,
		domain.ItemExpressions: domain.AspectSquare,
		domain.ItemTopper:      domain.AspectSquare,
		domain.ItemTags:        domain.AspectSquare,
		domain.ItemStickers:    domain.AspectSquare,
		domain.ItemInvitation:  domain.AspectWide,
		domain.ItemAgeNumber:   domain.AspectSquare,
		domain.ItemPanel:       domain.AspectWide,
	}
	for _, item := range domain.ItemTypes() {
		_, got, err := BuildKitPrompt(item, baseConfig())
		if err != nil {
			t.Fatalf("BuildKitPrompt(%s) error = %v", item, err)
		}
		if got != want[item] {
			t.Fatalf("aspect ratio for %s = %s, want %s", item, got, want[item])
		}
	}
}

func TestBuildKitPromptRejectsInvalidInput(t *testing.T) {
	if _, _, err := BuildKitPrompt("banner", baseConfig()); !errors.Is(err, domain.ErrUnknownItemType) {
		t.Fatalf("unknown item error = %v, want ErrUnknownItemType", err)
	}
	cfg := baseConfig()
	cfg.Style = "watercolor"
	if _, _, err := BuildKitPrompt(domain.ItemPanel, cfg); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("bad style error = %v, want ErrInvalidConfig", err)
	}
	cfg = baseConfig()
	cfg.Tone = ""
	if _, _, err := BuildKitPrompt(domain.ItemPanel, cfg); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("bad tone error = %v, want ErrInvalidConfig", err)
	}
}
