package domain

import (
	"strings"
	"time"
)

// KitState enumerates the lifecycle of a kit run.
type KitState string

const (
	KitStateIdle      KitState = "idle"
	KitStateRunning   KitState = "running"
	KitStateCompleted KitState = "completed"
)

// Image is an uploaded picture passed to the model as inline data.
type Image struct {
	Data     []byte
	MIMEType string
}

// IsZero reports whether the image carries no bytes.
func (i Image) IsZero() bool {
	return len(i.Data) == 0
}

// GenerationConfig holds everything one run needs. It is copied on run entry
// and never mutated afterwards.
type GenerationConfig struct {
	Age         string
	Features    string
	Style       Style
	Tone        Tone
	SourceImage Image
	ThemeImage  *Image
	ThemeName   string
	ThemePrompt string
	Locale      string
}

// HasThemeImage reports whether a theme reference image was supplied.
func (c GenerationConfig) HasThemeImage() bool {
	return c.ThemeImage != nil && !c.ThemeImage.IsZero()
}

// Clone returns a deep copy so callers cannot mutate image bytes mid-run.
func (c GenerationConfig) Clone() GenerationConfig {
	out := c
	out.SourceImage = Image{
		Data:     append([]byte(nil), c.SourceImage.Data...),
		MIMEType: c.SourceImage.MIMEType,
	}
	if c.ThemeImage != nil {
		theme := Image{
			Data:     append([]byte(nil), c.ThemeImage.Data...),
			MIMEType: c.ThemeImage.MIMEType,
		}
		out.ThemeImage = &theme
	}
	out.Age = strings.TrimSpace(c.Age)
	out.Features = strings.TrimSpace(c.Features)
	out.ThemePrompt = strings.TrimSpace(c.ThemePrompt)
	return out
}

// GeneratedImage is one successfully produced kit item.
type GeneratedImage struct {
	ID        string
	Type      ItemType
	Label     string
	DataURI   string
	Data      []byte
	MIMEType  string
	CreatedAt time.Time
}

// GenerationProgress is the observable state of a run.
type GenerationProgress struct {
	IsRunning bool
	Step      string
	Percent   int
	Err       string
}

// RunReport summarizes a finished run.
type RunReport struct {
	Attempted int
	Generated int
	Skipped   []ItemType
	Aborted   bool
	Duration  time.Duration
}

// Kit is the session object owned by the API layer: the config of the latest
// run plus its progress and results.
type Kit struct {
	ID        string
	State     KitState
	Config    GenerationConfig
	Progress  GenerationProgress
	Results   []GeneratedImage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot returns a copy whose slices are detached from k.
func (k *Kit) Snapshot() Kit {
	out := *k
	out.Results = append([]GeneratedImage(nil), k.Results...)
	return out
}

// Result returns the generated image for t, if any.
func (k *Kit) Result(t ItemType) (GeneratedImage, bool) {
	for _, img := range k.Results {
		if img.Type == t {
			return img, true
		}
	}
	return GeneratedImage{}, false
}
