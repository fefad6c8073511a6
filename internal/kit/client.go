// Package kit turns one generation config into the eight illustrations of a
// party kit.
package kit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"partykit/internal/domain"
	"partykit/internal/infra"
	"partykit/internal/metrics"
	"partykit/internal/providers/image"
)

// DataURIPrefix is prepended to every generated payload.
const DataURIPrefix = "data:image/png;base64,"

// ItemImage is the image produced for one kit item.
type ItemImage struct {
	Data     []byte
	MIMEType string
	DataURI  string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Admission *Admission
	Logger    *infra.Logger
}

// Client issues one model request per kit item.
type Client struct {
	gen       image.Generator
	admission *Admission
	logger    *infra.Logger
}

func NewClient(gen image.Generator, opts ClientOptions) *Client {
	admission := opts.Admission
	if admission == nil {
		admission = NewAdmission(DefaultMaxInFlight)
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{gen: gen, admission: admission, logger: logger}
}

// GenerateItem produces the image for item. A nil image with a nil error is
// a soft failure: the item is skipped and the run carries on. A non-nil error
// means the run cannot continue (bad configuration or a cancelled context).
func (c *Client) GenerateItem(ctx context.Context, item domain.ItemType, cfg domain.GenerationConfig) (*ItemImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prompt, aspect, err := image.BuildKitPrompt(item, cfg)
	if err != nil {
		return nil, fmt.Errorf("build prompt for %s: %w", item, err)
	}

	release, err := c.admission.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	images := []image.SourceImage{{MIME: cfg.SourceImage.MIMEType, Data: cfg.SourceImage.Data}}
	if cfg.HasThemeImage() {
		images = append(images, image.SourceImage{MIME: cfg.ThemeImage.MIMEType, Data: cfg.ThemeImage.Data})
	}

	started := time.Now()
	asset, err := c.gen.Generate(ctx, image.GenerateRequest{
		Prompt:      prompt,
		AspectRatio: string(aspect),
		RequestID:   requestID(ctx, item),
		Images:      images,
	})
	metrics.ItemDuration.WithLabelValues(string(item)).Observe(time.Since(started).Seconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		skipEvent(c.logger, err).Err(err).Str("item_type", string(item)).Msg("kit: image generation failed, skipping item")
		return nil, nil
	}
	if asset == nil || len(asset.Data) == 0 {
		c.logger.Warn().Str("item_type", string(item)).Msg("kit: provider returned no image, skipping item")
		return nil, nil
	}

	return &ItemImage{
		Data:     asset.Data,
		MIMEType: asset.Format,
		DataURI:  DataURIPrefix + base64.StdEncoding.EncodeToString(asset.Data),
	}, nil
}

// skipEvent logs provider throttling and outages at warn level. Any other
// failure, such as a rejected request, is logged as an error.
func skipEvent(logger *infra.Logger, err error) *zerolog.Event {
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) && temp.Temporary() {
		return logger.Warn()
	}
	return logger.Error()
}

type requestIDKey struct{}

// WithRequestID tags outgoing model requests with id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context, item domain.ItemType) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id + "/" + string(item)
	}
	return string(item)
}
