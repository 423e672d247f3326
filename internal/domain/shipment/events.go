package shipment

import "time"

// StatusChangedEvent is published to the notification collaborator whenever a
// shipment moves to shipped or delivered. Delivery is best effort; the core's
// success never depends on it.
type StatusChangedEvent struct {
	ShipmentID     string
	OrderID        string
	NewStatus      Status
	TrackingNumber string
	OccurredAt     time.Time
}

func (StatusChangedEvent) EventName() string { return "shipment.status_changed" }

func NewStatusChangedEvent(s *Shipment) StatusChangedEvent {
	return StatusChangedEvent{
		ShipmentID:     s.ID,
		OrderID:        s.OrderID,
		NewStatus:      s.Status,
		TrackingNumber: s.TrackingNumber,
		OccurredAt:     time.Now().UTC(),
	}
}
