package order

import "context"

// Repository is the order store port. Update must compare the entity's
// Version against the stored one and fail with ErrVersionConflict when a
// concurrent writer got there first; this is what keeps two simultaneous
// transition attempts from both succeeding.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)
}
