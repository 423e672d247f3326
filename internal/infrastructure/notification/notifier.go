// Package notification plays the external notification collaborator: it
// consumes shipment status events and records that a customer notification
// went out. A real deployment would push email/SMS here.
package notification

import (
	"context"
	"fmt"

	domoutbox "github.com/zenshop/orderengine/internal/domain/outbox"
	"github.com/zenshop/orderengine/internal/domain/shipment"
	"github.com/zenshop/orderengine/internal/observability"
)

const componentNotifier = "notifier"

type Notifier struct {
	log  observability.Logger
	sent observability.Counter
}

func NewNotifier(tel observability.Observability) *Notifier {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Notifier{
		log:  tel.Logger().With(observability.F("component", componentNotifier)),
		sent: tel.Metrics().Counter(observability.MNotificationsSent),
	}
}

// Register subscribes the notifier to shipment status changes.
func (n *Notifier) Register(sub domoutbox.Subscriber) {
	sub.Subscribe(shipment.StatusChangedEvent{}.EventName(), n.handle)
}

func (n *Notifier) handle(ctx context.Context, e domoutbox.Event) error {
	_ = ctx
	evt, ok := e.(shipment.StatusChangedEvent)
	if !ok {
		return fmt.Errorf("notifier: unexpected event %T", e)
	}

	var message string
	switch evt.NewStatus {
	case shipment.StatusShipped:
		message = fmt.Sprintf("Your order %s has been shipped! Tracking number: %s", evt.OrderID, evt.TrackingNumber)
	case shipment.StatusDelivered:
		message = fmt.Sprintf("Your order %s has been delivered!", evt.OrderID)
	default:
		message = fmt.Sprintf("Shipment status updated for order %s", evt.OrderID)
	}

	n.log.Info("notification_sent",
		observability.F("shipment_id", evt.ShipmentID),
		observability.F("order_id", evt.OrderID),
		observability.F("new_status", string(evt.NewStatus)),
		observability.F("message", message),
	)
	n.sent.Add(1, observability.L("status", string(evt.NewStatus)))
	return nil
}
