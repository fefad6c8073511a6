package domain

import "context"

// KitRepository keeps kits for the lifetime of a session.
type KitRepository interface {
	Create(ctx context.Context, kit *Kit) error
	Get(ctx context.Context, id string) (*Kit, error)
	// Update applies fn to the stored kit under the repository lock and
	// returns the resulting snapshot.
	Update(ctx context.Context, id string, fn func(*Kit) error) (*Kit, error)
	Delete(ctx context.Context, id string) error
}
