package shipment

import (
	"context"
	"time"
)

// Repository is the shipment store port. Update performs a version check
// (ErrVersionConflict on a lost race) and enforces tracking-number uniqueness
// (ErrTrackingTaken on collision).
type Repository interface {
	Insert(ctx context.Context, s *Shipment) error
	Get(ctx context.Context, id string) (*Shipment, error)
	Update(ctx context.Context, s *Shipment) error
	ListByOrder(ctx context.Context, orderID string) ([]*Shipment, error)
	FindByTracking(ctx context.Context, trackingNumber string) (*Shipment, error)

	// ListPendingOlderThan returns shipments still pending that were created
	// before the cutoff; used by the delayed-shipment sweep.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*Shipment, error)
}
