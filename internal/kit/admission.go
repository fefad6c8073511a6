package kit

import (
	"context"

	"golang.org/x/sync/semaphore"

	"partykit/internal/metrics"
)

// DefaultMaxInFlight keeps at most one model request outstanding.
const DefaultMaxInFlight = 1

// Admission bounds the number of outstanding model requests across every run
// in the process.
type Admission struct {
	sem   *semaphore.Weighted
	limit int
}

// NewAdmission returns an admission policy allowing limit concurrent
// requests. Values below one are coerced to one.
func NewAdmission(limit int) *Admission {
	if limit < 1 {
		limit = DefaultMaxInFlight
	}
	return &Admission{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

// Limit reports the configured maximum.
func (a *Admission) Limit() int {
	return a.limit
}

// Acquire blocks until a slot is free or ctx is done. The returned func
// releases the slot and must be called exactly once.
func (a *Admission) Acquire(ctx context.Context) (func(), error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	metrics.RequestsInFlight.Inc()
	return func() {
		metrics.RequestsInFlight.Dec()
		a.sem.Release(1)
	}, nil
}
