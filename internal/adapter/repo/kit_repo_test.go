package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"partykit/internal/domain"
)

func TestKitRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewKitRepository(time.Hour)

	kit := &domain.Kit{ID: "k1", State: domain.KitStateIdle}
	if err := r.Create(ctx, kit); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := r.Create(ctx, kit); err == nil {
		t.Fatalf("Create() duplicate expected error")
	}

	got, err := r.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", got)
	}

	updated, err := r.Update(ctx, "k1", func(k *domain.Kit) error {
		k.State = domain.KitStateRunning
		k.Results = append(k.Results, domain.GeneratedImage{ID: "character-1", Type: domain.ItemCharacter})
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.State != domain.KitStateRunning || len(updated.Results) != 1 {
		t.Fatalf("Update() = %+v", updated)
	}

	// Mutating a returned copy must not leak into the store.
	updated.Results[0].ID = "tampered"
	again, _ := r.Get(ctx, "k1")
	if again.Results[0].ID != "character-1" {
		t.Fatalf("stored kit mutated through snapshot: %q", again.Results[0].ID)
	}
}

func TestKitRepositoryUpdateErrorLeavesKit(t *testing.T) {
	ctx := context.Background()
	r := NewKitRepository(0)
	_ = r.Create(ctx, &domain.Kit{ID: "k1", State: domain.KitStateIdle})

	sentinel := errors.New("nope")
	_, err := r.Update(ctx, "k1", func(k *domain.Kit) error {
		k.State = domain.KitStateRunning
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Update() error = %v, want sentinel", err)
	}
	got, _ := r.Get(ctx, "k1")
	if got.State != domain.KitStateIdle {
		t.Fatalf("State = %s, want idle", got.State)
	}
}

func TestKitRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	r := NewKitRepository(0)
	if _, err := r.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := r.Update(ctx, "missing", func(*domain.Kit) error { return nil }); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update() error = %v", err)
	}
	if err := r.Delete(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestKitRepositorySweep(t *testing.T) {
	ctx := context.Background()
	r := NewKitRepository(10 * time.Minute)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	_ = r.Create(ctx, &domain.Kit{ID: "idle", State: domain.KitStateCompleted})
	_ = r.Create(ctx, &domain.Kit{ID: "busy", State: domain.KitStateRunning})

	clock = clock.Add(5 * time.Minute)
	if n := r.Sweep(); n != 0 {
		t.Fatalf("Sweep() evicted %d before ttl", n)
	}

	clock = clock.Add(6 * time.Minute)
	if n := r.Sweep(); n != 1 {
		t.Fatalf("Sweep() evicted %d, want 1", n)
	}
	if _, err := r.Get(ctx, "idle"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("idle kit should be evicted, err = %v", err)
	}
	if _, err := r.Get(ctx, "busy"); err != nil {
		t.Fatalf("running kit should survive, err = %v", err)
	}
}
