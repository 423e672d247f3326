package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zenshop/orderengine/internal/domain/fault"
	"github.com/zenshop/orderengine/internal/domain/shipment"
)

// ShipmentRepository keeps shipments in memory with version-checked updates
// and a unique index on tracking numbers.
type ShipmentRepository struct {
	mu        sync.RWMutex
	shipments map[string]*shipment.Shipment
	tracking  map[string]string // tracking number -> shipment id
}

func NewShipmentRepository() *ShipmentRepository {
	return &ShipmentRepository{
		shipments: make(map[string]*shipment.Shipment),
		tracking:  make(map[string]string),
	}
}

func (r *ShipmentRepository) Insert(ctx context.Context, s *shipment.Shipment) error {
	_ = ctx
	if s == nil || s.ID == "" {
		return fault.Validationf("shipment repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shipments[s.ID]; exists {
		return fault.Conflictf("shipment repository: shipment %s already exists", s.ID)
	}
	r.shipments[s.ID] = s.Clone()
	return nil
}

func (r *ShipmentRepository) Get(ctx context.Context, id string) (*shipment.Shipment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.shipments[id]
	if !ok {
		return nil, shipment.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *ShipmentRepository) Update(ctx context.Context, s *shipment.Shipment) error {
	_ = ctx
	if s == nil || s.ID == "" {
		return fault.Validationf("shipment repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.shipments[s.ID]
	if !ok {
		return shipment.ErrNotFound
	}
	if existing.Version != s.Version {
		return shipment.ErrVersionConflict
	}
	if tn := s.TrackingNumber; tn != "" {
		if ownerID, taken := r.tracking[tn]; taken && ownerID != s.ID {
			return shipment.ErrTrackingTaken
		}
	}

	clone := s.Clone()
	clone.Version++
	r.shipments[s.ID] = clone
	if clone.TrackingNumber != "" {
		r.tracking[clone.TrackingNumber] = clone.ID
	}
	s.Version = clone.Version
	return nil
}

func (r *ShipmentRepository) ListByOrder(ctx context.Context, orderID string) ([]*shipment.Shipment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*shipment.Shipment, 0)
	for _, s := range r.shipments {
		if s.OrderID == orderID {
			out = append(out, s.Clone())
		}
	}
	sortShipmentsNewestFirst(out)
	return out, nil
}

func (r *ShipmentRepository) FindByTracking(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.tracking[trackingNumber]
	if !ok {
		return nil, shipment.ErrNotFound
	}
	s, found := r.shipments[id]
	if !found {
		return nil, shipment.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *ShipmentRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*shipment.Shipment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*shipment.Shipment, 0)
	for _, s := range r.shipments {
		if s.Status == shipment.StatusPending && s.CreatedAt.Before(cutoff) {
			out = append(out, s.Clone())
		}
	}
	sortShipmentsNewestFirst(out)
	return out, nil
}

func sortShipmentsNewestFirst(shipments []*shipment.Shipment) {
	sort.Slice(shipments, func(i, j int) bool {
		if shipments[i].CreatedAt.Equal(shipments[j].CreatedAt) {
			return shipments[i].ID < shipments[j].ID
		}
		return shipments[i].CreatedAt.After(shipments[j].CreatedAt)
	})
}
