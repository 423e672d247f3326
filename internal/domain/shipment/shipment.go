package shipment

import (
	"time"

	"github.com/zenshop/orderengine/internal/domain/fault"
)

var (
	ErrNotFound        = fault.NotFoundf("shipment: not found")
	ErrVersionConflict = fault.Conflictf("shipment: concurrent modification")
	ErrTrackingTaken   = fault.Conflictf("shipment: tracking number already in use")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
)

// Shipment tracks one physical dispatch of an order. An order may accumulate
// several shipment records over its lifetime (re-shipments); each is
// state-tracked independently.
type Shipment struct {
	ID             string
	OrderID        string
	Status         Status
	TrackingNumber string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	Version        uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id, orderID string) *Shipment {
	now := time.Now().UTC()
	return &Shipment{
		ID:        id,
		OrderID:   orderID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkShipped assigns the tracking number and stamps the ship time. Only a
// pending shipment can be shipped.
func (s *Shipment) MarkShipped(trackingNumber string, at time.Time) error {
	if s.Status != StatusPending {
		return fault.Conflictf("shipment %s: cannot ship from %s", s.ID, s.Status)
	}
	s.Status = StatusShipped
	s.TrackingNumber = trackingNumber
	at = at.UTC()
	s.ShippedAt = &at
	s.touch()
	return nil
}

// MarkDelivered stamps the delivery time. Only a shipped shipment qualifies.
func (s *Shipment) MarkDelivered(at time.Time) error {
	if s.Status != StatusShipped {
		return fault.Conflictf("shipment %s: cannot deliver from %s", s.ID, s.Status)
	}
	s.Status = StatusDelivered
	at = at.UTC()
	s.DeliveredAt = &at
	s.touch()
	return nil
}

func (s *Shipment) Clone() *Shipment {
	if s == nil {
		return nil
	}
	clone := *s
	if s.ShippedAt != nil {
		t := *s.ShippedAt
		clone.ShippedAt = &t
	}
	if s.DeliveredAt != nil {
		t := *s.DeliveredAt
		clone.DeliveredAt = &t
	}
	return &clone
}

func (s *Shipment) touch() {
	s.UpdatedAt = time.Now().UTC()
}
