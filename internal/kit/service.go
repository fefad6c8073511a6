package kit

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"partykit/internal/domain"
	"partykit/internal/infra"
)

// Service owns kit sessions: it stores them, starts runs in the background
// and mirrors every run snapshot into the repository.
type Service struct {
	repo   domain.KitRepository
	orch   *Orchestrator
	logger *infra.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService wires a repository to an orchestrator.
func NewService(repo domain.KitRepository, orch *Orchestrator, logger *infra.Logger) *Service {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{repo: repo, orch: orch, logger: logger, baseCtx: ctx, cancel: cancel}
}

// Create stores a kit for cfg and starts its first run.
func (s *Service) Create(ctx context.Context, cfg domain.GenerationConfig) (*domain.Kit, error) {
	if cfg.SourceImage.IsZero() {
		return nil, domain.ErrMissingPhoto
	}
	kit := &domain.Kit{
		ID:     uuid.NewString(),
		State:  domain.KitStateIdle,
		Config: cfg.Clone(),
	}
	if err := s.repo.Create(ctx, kit); err != nil {
		return nil, err
	}
	return s.Start(ctx, kit.ID)
}

// Start launches a run of the stored config. It fails with
// domain.ErrRunInProgress while a run of the same kit is active.
func (s *Service) Start(ctx context.Context, id string) (*domain.Kit, error) {
	if err := s.baseCtx.Err(); err != nil {
		return nil, err
	}
	kit, err := s.repo.Update(ctx, id, func(k *domain.Kit) error {
		if k.State == domain.KitStateRunning {
			return domain.ErrRunInProgress
		}
		k.State = domain.KitStateRunning
		k.Results = nil
		k.Progress = domain.GenerationProgress{IsRunning: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cfg := kit.Config.Clone()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(id, cfg)
	}()
	return kit, nil
}

func (s *Service) run(id string, cfg domain.GenerationConfig) {
	ctx := WithRequestID(s.baseCtx, id)
	logger := s.logger.With().Str("kit_id", id).Logger()

	final, _, err := s.orch.Run(ctx, cfg, func(snap Snapshot) {
		s.store(id, snap, domain.KitStateRunning)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("kit: run ended early")
	}
	s.store(id, final, domain.KitStateCompleted)
}

func (s *Service) store(id string, snap Snapshot, state domain.KitState) {
	// Writes outlive the service context so a cancelled run still records
	// its final state.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.repo.Update(ctx, id, func(k *domain.Kit) error {
		k.State = state
		k.Progress = snap.Progress
		k.Results = snap.Results
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error().Err(err).Str("kit_id", id).Msg("kit: store snapshot failed")
	}
}

// Get returns the current snapshot of a kit.
func (s *Service) Get(ctx context.Context, id string) (*domain.Kit, error) {
	return s.repo.Get(ctx, id)
}

// Wait blocks until every run started so far has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels active runs and waits for them, or for ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
