package kit

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"

	"partykit/internal/domain"
	"partykit/internal/domain/catalog"
	"partykit/internal/infra"
	"partykit/internal/metrics"
)

// ItemGenerator is the per-item contract the orchestrator drives.
type ItemGenerator interface {
	GenerateItem(ctx context.Context, item domain.ItemType, cfg domain.GenerationConfig) (*ItemImage, error)
}

// Snapshot is a value copy of a run's observable state.
type Snapshot struct {
	Progress domain.GenerationProgress
	Results  []domain.GeneratedImage
}

// Observer receives a snapshot every time progress or results change. It is
// called synchronously from the run goroutine.
type Observer func(Snapshot)

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Catalog *catalog.Catalog
	Logger  *infra.Logger
	Now     func() time.Time
}

// Orchestrator walks the eight kit items strictly in order.
type Orchestrator struct {
	gen     ItemGenerator
	catalog *catalog.Catalog
	logger  *infra.Logger
	now     func() time.Time
}

func NewOrchestrator(gen ItemGenerator, opts OrchestratorOptions) *Orchestrator {
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{gen: gen, catalog: cat, logger: logger, now: now}
}

// Percent returns the progress shown before attempting item index (0-based)
// out of total.
func Percent(index, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(index) * 100 / float64(total)))
}

// Run generates every item of the kit for cfg. Item failures are skipped;
// an error from the generator stops the run early, keeps the results so far
// and is returned wrapped. The final snapshot is returned in both cases.
func (o *Orchestrator) Run(ctx context.Context, cfg domain.GenerationConfig, observe Observer) (Snapshot, domain.RunReport, error) {
	cfg = cfg.Clone()
	if observe == nil {
		observe = func(Snapshot) {}
	}

	locale := o.catalog.MatchLocale(cfg.Locale)
	msgs := o.catalog.Messages(locale)
	items := o.catalog.Items(locale)

	started := o.now()
	report := domain.RunReport{}
	state := Snapshot{
		Progress: domain.GenerationProgress{IsRunning: true, Step: msgs.Preparing, Percent: 0},
	}
	publish := func() {
		observe(Snapshot{
			Progress: state.Progress,
			Results:  append([]domain.GeneratedImage(nil), state.Results...),
		})
	}

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	o.logger.Info().Str("locale", locale).Int("items", len(items)).Msg("kit: run started")
	publish()

	for i, spec := range items {
		state.Progress.Step = msgs.CreatingStep(spec.Label)
		state.Progress.Percent = Percent(i, len(items))
		publish()

		report.Attempted++
		img, err := o.gen.GenerateItem(ctx, spec.Type, cfg)
		if err != nil {
			metrics.ItemsTotal.WithLabelValues(string(spec.Type), metrics.ResultAborted).Inc()
			metrics.RunsTotal.WithLabelValues(metrics.OutcomeAborted).Inc()

			state.Progress.IsRunning = false
			state.Progress.Err = msgs.RunFailed
			publish()

			report.Aborted = true
			report.Duration = o.now().Sub(started)
			o.logger.Error().Err(err).Str("item_type", string(spec.Type)).Int("generated", report.Generated).Msg("kit: run aborted")
			return state, report, fmt.Errorf("generate %s: %w", spec.Type, err)
		}
		if img == nil {
			metrics.ItemsTotal.WithLabelValues(string(spec.Type), metrics.ResultSkipped).Inc()
			report.Skipped = append(report.Skipped, spec.Type)
			continue
		}

		metrics.ItemsTotal.WithLabelValues(string(spec.Type), metrics.ResultGenerated).Inc()
		created := o.now()
		state.Results = append(state.Results, domain.GeneratedImage{
			ID:        fmt.Sprintf("%s-%d", spec.Type, created.UnixMilli()),
			Type:      spec.Type,
			Label:     spec.Label,
			DataURI:   img.DataURI,
			Data:      img.Data,
			MIMEType:  "image/png",
			CreatedAt: created,
		})
		report.Generated++
		publish()
	}

	state.Progress = domain.GenerationProgress{IsRunning: false, Step: msgs.Complete, Percent: 100}
	publish()

	report.Duration = o.now().Sub(started)
	metrics.RunsTotal.WithLabelValues(metrics.OutcomeCompleted).Inc()
	o.logger.Info().
		Int("generated", report.Generated).
		Int("skipped", len(report.Skipped)).
		Dur("duration", report.Duration).
		Msg("kit: run completed")

	return state, report, nil
}
