// Package shipment implements the shipment tracker use cases: creating
// shipments for paid orders, shipping with tracking-number assignment,
// delivery confirmation, and tracking lookups.
package shipment

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zenshop/orderengine/internal/domain/fault"
	"github.com/zenshop/orderengine/internal/domain/order"
	domoutbox "github.com/zenshop/orderengine/internal/domain/outbox"
	domain "github.com/zenshop/orderengine/internal/domain/shipment"
	"github.com/zenshop/orderengine/internal/identity"
	"github.com/zenshop/orderengine/internal/observability"
	"github.com/zenshop/orderengine/internal/observability/logctx"
)

const (
	shipmentService = "shipment-tracker"
	spanPrefix      = "UC."

	useCaseShipmentCreate  = "shipment.create"
	useCaseShipmentShip    = "shipment.ship"
	useCaseShipmentDeliver = "shipment.deliver"

	// Tracking numbers are drawn from a 48-bit space; collisions are rare
	// but a retry bound keeps a pathological store from looping forever.
	maxTrackingAttempts = 5

	publishTimeout = 500 * time.Millisecond
)

type IDGenerator interface {
	NewID() string
}

// Service drives shipments through pending, shipped, and delivered, keeping
// the parent order's status in step and emitting a status event per change.
type Service struct {
	shipments domain.Repository
	orders    order.Repository
	publisher domoutbox.Publisher
	idGen     IDGenerator
	tel       observability.Observability

	log         observability.Logger
	reqCounter  observability.Counter
	durHist     observability.Histogram
	publishFail observability.Counter
}

func NewService(shipments domain.Repository, orders order.Repository, publisher domoutbox.Publisher, idGen IDGenerator, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		shipments:   shipments,
		orders:      orders,
		publisher:   publisher,
		idGen:       idGen,
		tel:         tel,
		log:         tel.Logger().With(observability.F("service", shipmentService)),
		reqCounter:  tel.Metrics().Counter(observability.MUsecaseRequests),
		durHist:     tel.Metrics().Histogram(observability.MUsecaseDuration),
		publishFail: tel.Metrics().Counter(observability.MEventPublishFailed),
	}
}

func (s *Service) instrument(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+spanName, attrs...)
	start := time.Now()
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCase))

	return ctx, func(err error) {
		lat := time.Since(start).Seconds()
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, fault.KindOf(err).String())
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()

		s.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
		s.durHist.Observe(lat, observability.L("use_case", useCase))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}
}

// Create opens a pending shipment for an order that has been paid. An order
// already shipped may still get a replacement shipment.
func (s *Service) Create(ctx context.Context, caller identity.Identity, orderID string) (_ *domain.Shipment, err error) {
	ctx, done := s.instrument(ctx, useCaseShipmentCreate, "CreateShipment",
		attribute.String("shipment.order_id", orderID),
	)
	defer func() { done(err) }()

	if !caller.Admin {
		return nil, fault.Permissionf("only staff can create shipments")
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPaid && o.Status != order.StatusShipped {
		return nil, fault.Conflictf("order %s must be paid before shipment, is %s", orderID, o.Status)
	}

	sh := domain.New(s.idGen.NewID(), orderID)
	if err = s.shipments.Insert(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// Ship moves a pending shipment to shipped: the parent order is claimed
// first, then the shipment gets a fresh tracking number. Emits a status
// event after the writes commit.
func (s *Service) Ship(ctx context.Context, caller identity.Identity, shipmentID string) (_ *domain.Shipment, err error) {
	ctx, done := s.instrument(ctx, useCaseShipmentShip, "ShipShipment",
		attribute.String("shipment.id", shipmentID),
	)
	defer func() { done(err) }()

	if !caller.Admin {
		return nil, fault.Permissionf("only staff can ship shipments")
	}
	sh, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if sh.Status != domain.StatusPending {
		return nil, fault.Conflictf("shipment %s is %s, only pending shipments can be shipped", shipmentID, sh.Status)
	}

	o, err := s.orders.Get(ctx, sh.OrderID)
	if err != nil {
		return nil, err
	}
	claimed := false
	switch o.Status {
	case order.StatusPaid:
		if err = o.TransitionTo(order.StatusShipped); err != nil {
			return nil, err
		}
		if err = s.orders.Update(ctx, o); err != nil {
			return nil, err
		}
		claimed = true
	case order.StatusShipped:
		// Replacement shipment for an order already on its way.
	default:
		return nil, fault.Conflictf("order %s is %s, cannot ship", o.ID, o.Status)
	}

	shipped, err := s.markShipped(ctx, sh)
	if err != nil {
		if claimed {
			s.revertOrder(ctx, o.ID)
		}
		return nil, err
	}

	s.publish(ctx, domain.NewStatusChangedEvent(shipped))
	return shipped, nil
}

// markShipped stamps the shipment and writes it, regenerating the tracking
// number if the store reports a collision.
func (s *Service) markShipped(ctx context.Context, sh *domain.Shipment) (*domain.Shipment, error) {
	var lastErr error
	for attempt := 0; attempt < maxTrackingAttempts; attempt++ {
		candidate := sh.Clone()
		if err := candidate.MarkShipped(domain.NewTrackingNumber(), time.Now().UTC()); err != nil {
			return nil, err
		}
		err := s.shipments.Update(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, domain.ErrTrackingTaken) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fault.Wrap(fault.Conflictf("shipment: could not assign a unique tracking number"), lastErr)
}

// revertOrder undoes a shipped claim when the shipment write failed.
func (s *Service) revertOrder(ctx context.Context, orderID string) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil || o.Status != order.StatusShipped {
		return
	}
	o.Status = order.StatusPaid
	if err := s.orders.Update(ctx, o); err != nil {
		logctx.FromOr(ctx, s.log).Error("order_revert_failed",
			observability.F("order_id", orderID),
			observability.F("error", err.Error()),
		)
	}
}

// Deliver confirms delivery of a shipped shipment and moves the parent order
// to delivered. Emits a status event after the writes commit.
func (s *Service) Deliver(ctx context.Context, caller identity.Identity, shipmentID string) (_ *domain.Shipment, err error) {
	ctx, done := s.instrument(ctx, useCaseShipmentDeliver, "DeliverShipment",
		attribute.String("shipment.id", shipmentID),
	)
	defer func() { done(err) }()

	if !caller.Admin {
		return nil, fault.Permissionf("only staff can deliver shipments")
	}
	sh, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if sh.Status != domain.StatusShipped {
		return nil, fault.Conflictf("shipment %s is %s, only shipped shipments can be delivered", shipmentID, sh.Status)
	}

	o, err := s.orders.Get(ctx, sh.OrderID)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case order.StatusShipped:
		if err = o.TransitionTo(order.StatusDelivered); err != nil {
			return nil, err
		}
		if err = s.orders.Update(ctx, o); err != nil {
			return nil, err
		}
	case order.StatusDelivered:
		// Another shipment for this order already confirmed delivery.
	default:
		return nil, fault.Conflictf("order %s is %s, cannot deliver", o.ID, o.Status)
	}

	if err = sh.MarkDelivered(time.Now().UTC()); err != nil {
		return nil, err
	}
	if err = s.shipments.Update(ctx, sh); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.NewStatusChangedEvent(sh))
	return sh, nil
}

// publish enqueues the event with a short timeout so a saturated bus cannot
// stall the caller. Failures are counted and logged, never returned.
func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, e); err != nil {
		s.publishFail.Add(1, observability.L("event", e.EventName()))
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

// Get returns the shipment; callers who do not own the parent order get a
// not-found rather than a hint the shipment exists.
func (s *Service) Get(ctx context.Context, caller identity.Identity, shipmentID string) (*domain.Shipment, error) {
	sh, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, sh.OrderID); err != nil {
		return nil, err
	}
	return sh, nil
}

// ListByOrder returns the order's shipments newest first.
func (s *Service) ListByOrder(ctx context.Context, caller identity.Identity, orderID string) ([]*domain.Shipment, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(o.UserID) {
		return nil, order.ErrNotFound
	}
	return s.shipments.ListByOrder(ctx, orderID)
}

// Track resolves a shipment by its tracking number.
func (s *Service) Track(ctx context.Context, caller identity.Identity, trackingNumber string) (*domain.Shipment, error) {
	sh, err := s.shipments.FindByTracking(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, sh.OrderID); err != nil {
		return nil, err
	}
	return sh, nil
}

func (s *Service) authorize(ctx context.Context, caller identity.Identity, orderID string) error {
	if caller.Admin {
		return nil
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.ErrNotFound
	}
	if !caller.CanAccess(o.UserID) {
		return domain.ErrNotFound
	}
	return nil
}
