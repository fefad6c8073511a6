package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"partykit/internal/domain"
)

// KitRepositoryMemory implements domain.KitRepository for the lifetime of
// the process. Kits idle for longer than the TTL are evicted by Sweep.
type KitRepositoryMemory struct {
	mu   sync.Mutex
	kits map[string]*domain.Kit
	ttl  time.Duration
	now  func() time.Time
}

// NewKitRepository creates an empty in-memory kit repository. A ttl of zero
// disables eviction.
func NewKitRepository(ttl time.Duration) *KitRepositoryMemory {
	return &KitRepositoryMemory{
		kits: make(map[string]*domain.Kit),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Create stores a new kit.
func (r *KitRepositoryMemory) Create(ctx context.Context, kit *domain.Kit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kits[kit.ID]; exists {
		return fmt.Errorf("kit %s already exists", kit.ID)
	}
	now := r.now()
	stored := kit.Snapshot()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.kits[kit.ID] = &stored
	return nil
}

// Get returns a copy of the kit with id.
func (r *KitRepositoryMemory) Get(ctx context.Context, id string) (*domain.Kit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	kit, ok := r.kits[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := kit.Snapshot()
	return &out, nil
}

// Update applies fn to the stored kit. If fn fails nothing is written.
func (r *KitRepositoryMemory) Update(ctx context.Context, id string, fn func(*domain.Kit) error) (*domain.Kit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	kit, ok := r.kits[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	draft := kit.Snapshot()
	if err := fn(&draft); err != nil {
		return nil, err
	}
	draft.ID = id
	draft.UpdatedAt = r.now()
	r.kits[id] = &draft

	out := draft.Snapshot()
	return &out, nil
}

// Delete removes the kit with id.
func (r *KitRepositoryMemory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.kits[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.kits, id)
	return nil
}

// Sweep evicts kits that have not been touched within the TTL. Running kits
// are kept. It returns the number of evicted kits.
func (r *KitRepositoryMemory) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	evicted := 0
	for id, kit := range r.kits {
		if kit.State == domain.KitStateRunning {
			continue
		}
		if kit.UpdatedAt.Before(cutoff) {
			delete(r.kits, id)
			evicted++
		}
	}
	return evicted
}

// RunJanitor calls Sweep every interval until ctx is done.
func (r *KitRepositoryMemory) RunJanitor(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

var _ domain.KitRepository = (*KitRepositoryMemory)(nil)
