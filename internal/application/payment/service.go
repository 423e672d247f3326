// Package payment implements the payment ledger use cases: recording
// payments, reconciling them against one or more orders, and settling them.
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zenshop/orderengine/internal/domain/fault"
	"github.com/zenshop/orderengine/internal/domain/order"
	domain "github.com/zenshop/orderengine/internal/domain/payment"
	"github.com/zenshop/orderengine/internal/identity"
	"github.com/zenshop/orderengine/internal/observability"
	"github.com/zenshop/orderengine/internal/observability/logctx"
)

const (
	paymentService = "payment-ledger"
	spanPrefix     = "UC."

	useCasePaymentCreate   = "payment.create"
	useCasePaymentApply    = "payment.apply"
	useCasePaymentComplete = "payment.complete"
	useCasePaymentFail     = "payment.fail"
)

type IDGenerator interface {
	NewID() string
}

// Service reconciles payments against orders through the ledger.
type Service struct {
	ledger domain.Ledger
	orders order.Repository
	idGen  IDGenerator
	tel    observability.Observability

	log        observability.Logger
	reqCounter observability.Counter
	durHist    observability.Histogram
}

func NewService(ledger domain.Ledger, orders order.Repository, idGen IDGenerator, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		ledger:     ledger,
		orders:     orders,
		idGen:      idGen,
		tel:        tel,
		log:        tel.Logger().With(observability.F("service", paymentService)),
		reqCounter: tel.Metrics().Counter(observability.MUsecaseRequests),
		durHist:    tel.Metrics().Histogram(observability.MUsecaseDuration),
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

// Info is a payment together with its ledger view: the application rows and
// the derived applied/remaining amounts.
type Info struct {
	Payment      *domain.Payment
	Applications []*domain.Application
	Applied      decimal.Decimal
	Remaining    decimal.Decimal
}

func (s *Service) info(ctx context.Context, p *domain.Payment) (*Info, error) {
	apps, err := s.ledger.ApplicationsByPayment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	applied := decimal.Zero
	for _, app := range apps {
		applied = applied.Add(app.Amount)
	}
	return &Info{
		Payment:      p,
		Applications: apps,
		Applied:      applied,
		Remaining:    p.Amount.Sub(applied),
	}, nil
}

// Create records a new pending payment. The payment is not yet tied to any
// order; Apply does that.
func (s *Service) Create(ctx context.Context, amount decimal.Decimal, method string) (_ *domain.Payment, err error) {
	ctx, done := s.instrument(ctx, useCasePaymentCreate, "CreatePayment",
		attribute.String("payment.method", method),
	)
	defer func() { done(err) }()

	m, ok := domain.ParseMethod(method)
	if !ok {
		return nil, fault.Validationf("payment: unknown method %q", method)
	}
	p, err := domain.New(s.idGen.NewID(), amount, m)
	if err != nil {
		return nil, err
	}
	if err = s.ledger.InsertPayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyInput names the orders a payment should cover. Amounts is optional;
// when nil the payment's remaining balance is spread across the orders first
// come first served, when present it must align one-to-one with OrderIDs.
type ApplyInput struct {
	PaymentID string
	OrderIDs  []string
	Amounts   []decimal.Decimal
}

// Apply reconciles a pending payment against one or more pending orders.
// All application rows commit atomically through the ledger; any order whose
// applied total reaches its grand total flips to paid. If an order transition
// loses a concurrent race, the rows written by this call are removed and any
// orders already flipped are reverted, so the call is all-or-nothing.
func (s *Service) Apply(ctx context.Context, caller identity.Identity, input ApplyInput) (_ *Info, err error) {
	ctx, done := s.instrument(ctx, useCasePaymentApply, "ApplyPayment",
		attribute.String("payment.id", input.PaymentID),
		attribute.Int("payment.order_count", len(input.OrderIDs)),
	)
	defer func() { done(err) }()

	p, err := s.ledger.GetPayment(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.StatusPending {
		return nil, domain.ErrNotPending
	}
	if len(input.OrderIDs) == 0 {
		return nil, fault.Validationf("payment: at least one order is required")
	}
	if input.Amounts != nil && len(input.Amounts) != len(input.OrderIDs) {
		return nil, fault.Validationf("payment: %d amounts for %d orders", len(input.Amounts), len(input.OrderIDs))
	}
	seen := make(map[string]struct{}, len(input.OrderIDs))
	for _, id := range input.OrderIDs {
		if _, dup := seen[id]; dup {
			return nil, fault.Validationf("payment: duplicate order %s", id)
		}
		seen[id] = struct{}{}
	}

	// Resolve every order and its outstanding balance before writing rows.
	targets := make([]*order.Order, 0, len(input.OrderIDs))
	outstanding := make([]decimal.Decimal, 0, len(input.OrderIDs))
	totals := make(map[string]decimal.Decimal, len(input.OrderIDs))
	for _, orderID := range input.OrderIDs {
		o, oerr := s.orders.Get(ctx, orderID)
		if oerr != nil {
			return nil, fault.NotFoundf("payment: order %s not found", orderID)
		}
		if !caller.CanAccess(o.UserID) {
			return nil, fault.Permissionf("order %s does not belong to you", orderID)
		}
		if o.Status != order.StatusPending {
			return nil, fault.Conflictf("order %s is not in pending status", orderID)
		}
		applied, aerr := s.ledger.AppliedToOrder(ctx, orderID)
		if aerr != nil {
			return nil, aerr
		}
		targets = append(targets, o)
		outstanding = append(outstanding, o.Total.Sub(applied))
		totals[orderID] = o.Total
	}

	remaining, err := s.ledger.AppliedByPayment(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	remaining = p.Amount.Sub(remaining)

	apps, covered, err := s.planApplications(p, targets, outstanding, remaining, input.Amounts)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return s.info(ctx, p)
	}

	// The ledger re-validates both caps under its own lock; a concurrent
	// apply against the same payment or order surfaces here as a conflict.
	if err = s.ledger.Apply(ctx, input.PaymentID, apps, totals); err != nil {
		return nil, err
	}

	// Flip fully covered orders to paid. A lost version race unwinds the
	// whole call: the rows come back out and earlier flips are reverted.
	flipped := make([]*order.Order, 0, len(covered))
	for _, o := range covered {
		if terr := o.TransitionTo(order.StatusPaid); terr != nil {
			s.unwind(ctx, apps, flipped)
			return nil, terr
		}
		if uerr := s.orders.Update(ctx, o); uerr != nil {
			s.unwind(ctx, apps, flipped)
			return nil, uerr
		}
		flipped = append(flipped, o)
	}

	return s.info(ctx, p)
}

// planApplications computes the rows to write. With explicit amounts each
// row must fit its order's outstanding balance and the sum must fit the
// payment's remainder. Without amounts the remainder is poured into the
// orders in the given sequence until it runs dry.
func (s *Service) planApplications(
	p *domain.Payment,
	targets []*order.Order,
	outstanding []decimal.Decimal,
	remaining decimal.Decimal,
	amounts []decimal.Decimal,
) (apps []domain.Application, covered []*order.Order, err error) {
	now := time.Now().UTC()

	if amounts != nil {
		requested := decimal.Zero
		for i, o := range targets {
			amt := amounts[i].Round(2)
			if amt.LessThan(decimal.Zero) {
				return nil, nil, fault.Validationf("payment: amount for order %s must not be negative", o.ID)
			}
			if amt.GreaterThan(outstanding[i]) {
				return nil, nil, fault.Conflictf("amount %s exceeds outstanding balance %s of order %s",
					amt.StringFixed(2), outstanding[i].StringFixed(2), o.ID)
			}
			requested = requested.Add(amt)
			if amt.IsZero() {
				continue
			}
			apps = append(apps, domain.Application{
				ID:        s.idGen.NewID(),
				OrderID:   o.ID,
				PaymentID: p.ID,
				Amount:    amt,
				CreatedAt: now,
			})
			if amt.Equal(outstanding[i]) {
				covered = append(covered, o)
			}
		}
		if requested.GreaterThan(remaining) {
			return nil, nil, fault.Conflictf("requested total %s exceeds remaining amount %s of payment %s",
				requested.StringFixed(2), remaining.StringFixed(2), p.ID)
		}
		return apps, covered, nil
	}

	for i, o := range targets {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		amt := decimal.Min(remaining, outstanding[i])
		if amt.LessThanOrEqual(decimal.Zero) {
			continue
		}
		apps = append(apps, domain.Application{
			ID:        s.idGen.NewID(),
			OrderID:   o.ID,
			PaymentID: p.ID,
			Amount:    amt,
			CreatedAt: now,
		})
		if amt.Equal(outstanding[i]) {
			covered = append(covered, o)
		}
		remaining = remaining.Sub(amt)
	}
	return apps, covered, nil
}

// unwind removes this call's application rows and reverts orders it already
// flipped to paid. Best effort; failures are logged, not returned.
func (s *Service) unwind(ctx context.Context, apps []domain.Application, flipped []*order.Order) {
	ids := make([]string, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.ID)
	}
	if err := s.ledger.RemoveApplications(ctx, ids); err != nil {
		logctx.FromOr(ctx, s.log).Error("apply_unwind_failed",
			observability.F("error", err.Error()),
		)
	}
	for _, o := range flipped {
		o.Status = order.StatusPending
		if err := s.orders.Update(ctx, o); err != nil {
			logctx.FromOr(ctx, s.log).Error("apply_revert_failed",
				observability.F("order_id", o.ID),
				observability.F("error", err.Error()),
			)
		}
	}
}

// Complete settles a pending payment. Applications stay as they are.
func (s *Service) Complete(ctx context.Context, caller identity.Identity, paymentID string) (_ *Info, err error) {
	ctx, done := s.instrument(ctx, useCasePaymentComplete, "CompletePayment",
		attribute.String("payment.id", paymentID),
	)
	defer func() { done(err) }()

	return s.settle(ctx, paymentID, (*domain.Payment).Complete)
}

// Fail marks a pending payment failed. Application rows written earlier are
// kept; the orders they cover stay in whatever status they reached.
func (s *Service) Fail(ctx context.Context, caller identity.Identity, paymentID string) (_ *Info, err error) {
	ctx, done := s.instrument(ctx, useCasePaymentFail, "FailPayment",
		attribute.String("payment.id", paymentID),
	)
	defer func() { done(err) }()

	return s.settle(ctx, paymentID, (*domain.Payment).Fail)
}

func (s *Service) settle(ctx context.Context, paymentID string, transition func(*domain.Payment) error) (*Info, error) {
	p, err := s.ledger.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := transition(p); err != nil {
		return nil, err
	}
	// The ledger rejects the write if another settle won the race.
	if err := s.ledger.UpdatePayment(ctx, p); err != nil {
		return nil, err
	}
	return s.info(ctx, p)
}

// Get returns a payment with its ledger view.
func (s *Service) Get(ctx context.Context, caller identity.Identity, paymentID string) (*Info, error) {
	p, err := s.ledger.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return s.info(ctx, p)
}

// List returns every payment for admins; for other callers, the payments
// applied to their own orders.
func (s *Service) List(ctx context.Context, caller identity.Identity) ([]*Info, error) {
	var payments []*domain.Payment
	if caller.Admin {
		all, err := s.ledger.ListPayments(ctx)
		if err != nil {
			return nil, err
		}
		payments = all
	} else {
		owned, err := s.orders.ListByUser(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		orderIDs := make([]string, 0, len(owned))
		for _, o := range owned {
			orderIDs = append(orderIDs, o.ID)
		}
		ids, err := s.ledger.PaymentIDsForOrders(ctx, orderIDs)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			p, err := s.ledger.GetPayment(ctx, id)
			if err != nil {
				continue
			}
			payments = append(payments, p)
		}
	}

	out := make([]*Info, 0, len(payments))
	for _, p := range payments {
		inf, err := s.info(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, inf)
	}
	return out, nil
}
