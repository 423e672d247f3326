// Package order implements the order lifecycle use cases: creation with
// atomic stock reservation, cancellation with stock restoration, and the
// status state machine.
package order

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zenshop/orderengine/internal/domain/catalog"
	"github.com/zenshop/orderengine/internal/domain/fault"
	domain "github.com/zenshop/orderengine/internal/domain/order"
	"github.com/zenshop/orderengine/internal/identity"
	"github.com/zenshop/orderengine/internal/observability"
	"github.com/zenshop/orderengine/internal/observability/logctx"
)

const (
	orderService = "order-engine"
	spanPrefix   = "UC."

	useCaseOrderCreate     = "order.create"
	useCaseOrderCancel     = "order.cancel"
	useCaseOrderTransition = "order.transition"
)

type IDGenerator interface {
	NewID() string
}

// Service wires the order repository and catalog store into the order engine.
type Service struct {
	orders  domain.Repository
	catalog catalog.Repository
	idGen   IDGenerator
	tel     observability.Observability

	log        observability.Logger
	reqCounter observability.Counter
	durHist    observability.Histogram
}

func NewService(orders domain.Repository, cat catalog.Repository, idGen IDGenerator, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		orders:     orders,
		catalog:    cat,
		idGen:      idGen,
		tel:        tel,
		log:        tel.Logger().With(observability.F("service", orderService)),
		reqCounter: tel.Metrics().Counter(observability.MUsecaseRequests),
		durHist:    tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// instrument opens a use-case span and returns a finish func that records the
// span status, RED metrics, and a single use_case_done log line.
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

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID string
	Quantity  int
}

// CreateOrder validates every line against the catalog, then atomically
// reserves stock, snapshots unit prices, and persists the pending order.
// No mutation happens until every check has passed.
func (s *Service) CreateOrder(ctx context.Context, caller identity.Identity, items []ItemInput) (_ *domain.Order, err error) {
	ctx, done := s.instrument(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.user_id", caller.UserID),
		attribute.Int("order.item_count", len(items)),
	)
	defer func() { done(err) }()

	if caller.UserID == "" {
		return nil, fault.Validationf("order: user id is required")
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, domain.ErrInvalidQuantity
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, fault.Validationf("order: duplicate product %s", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}

	// Resolve and validate every product before any stock is touched.
	orderItems := make([]domain.OrderItem, 0, len(items))
	demands := make([]catalog.StockDemand, 0, len(items))
	for _, item := range items {
		product, perr := s.catalog.Get(ctx, item.ProductID)
		if perr != nil {
			return nil, fault.NotFoundf("order: product %s not found", item.ProductID)
		}
		if !product.Active {
			return nil, fault.Validationf("order: product %s is inactive", item.ProductID)
		}
		if item.Quantity > product.Stock {
			return nil, &catalog.InsufficientStockError{
				ProductID: product.ID,
				Available: product.Stock,
				Requested: item.Quantity,
			}
		}
		orderItems = append(orderItems, domain.OrderItem{
			ID:        s.idGen.NewID(),
			ProductID: product.ID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
		demands = append(demands, catalog.StockDemand{ProductID: product.ID, Quantity: item.Quantity})
	}

	// The decrement re-validates under the catalog lock; a concurrent order
	// that drained the stock in between surfaces here as a conflict.
	if err = s.catalog.DecrementStock(ctx, demands); err != nil {
		return nil, err
	}

	entity, derr := domain.New(s.idGen.NewID(), caller.UserID, orderItems)
	if derr != nil {
		_ = s.catalog.RestoreStock(ctx, demands)
		return nil, derr
	}
	if err = s.orders.Insert(ctx, entity); err != nil {
		_ = s.catalog.RestoreStock(ctx, demands)
		return nil, err
	}

	return entity, nil
}

// CancelOrder claims the cancellation through a version-checked status write,
// then returns the reserved quantities to the catalog. Of two concurrent
// cancel attempts only one restores stock.
func (s *Service) CancelOrder(ctx context.Context, caller identity.Identity, orderID string) (_ *domain.Order, err error) {
	ctx, done := s.instrument(ctx, useCaseOrderCancel, "CancelOrder",
		attribute.String("order.id", orderID),
	)
	defer func() { done(err) }()

	entity, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(entity.UserID) {
		return nil, fault.Permissionf("order %s does not belong to you", orderID)
	}

	if err = entity.TransitionTo(domain.StatusCancelled); err != nil {
		return nil, err
	}
	if err = s.orders.Update(ctx, entity); err != nil {
		return nil, err
	}

	demands := make([]catalog.StockDemand, 0, len(entity.Items))
	for _, hold := range entity.StockHolds() {
		demands = append(demands, catalog.StockDemand{ProductID: hold.ProductID, Quantity: hold.Quantity})
	}
	if rerr := s.catalog.RestoreStock(ctx, demands); rerr != nil {
		logctx.FromOr(ctx, s.log).Error("stock_restore_failed",
			observability.F("order_id", orderID),
			observability.F("error", rerr.Error()),
		)
	}

	return entity, nil
}

// TransitionStatus enforces the adjacency table; it does not care who drives
// the transition, only that the target is adjacent.
func (s *Service) TransitionStatus(ctx context.Context, caller identity.Identity, orderID string, target domain.Status) (_ *domain.Order, err error) {
	ctx, done := s.instrument(ctx, useCaseOrderTransition, "TransitionStatus",
		attribute.String("order.id", orderID),
		attribute.String("order.target_status", string(target)),
	)
	defer func() { done(err) }()

	if _, ok := domain.ParseStatus(string(target)); !ok {
		return nil, fault.Validationf("order: unknown status %q", target)
	}
	if target == domain.StatusCancelled {
		// Cancellation restores stock; route through CancelOrder.
		return s.cancelLocked(ctx, caller, orderID)
	}

	entity, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(entity.UserID) {
		return nil, fault.Permissionf("order %s does not belong to you", orderID)
	}
	if err = entity.TransitionTo(target); err != nil {
		return nil, err
	}
	if err = s.orders.Update(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// cancelLocked mirrors CancelOrder without opening a second span.
func (s *Service) cancelLocked(ctx context.Context, caller identity.Identity, orderID string) (*domain.Order, error) {
	entity, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(entity.UserID) {
		return nil, fault.Permissionf("order %s does not belong to you", orderID)
	}
	if err = entity.TransitionTo(domain.StatusCancelled); err != nil {
		return nil, err
	}
	if err = s.orders.Update(ctx, entity); err != nil {
		return nil, err
	}
	demands := make([]catalog.StockDemand, 0, len(entity.Items))
	for _, hold := range entity.StockHolds() {
		demands = append(demands, catalog.StockDemand{ProductID: hold.ProductID, Quantity: hold.Quantity})
	}
	if rerr := s.catalog.RestoreStock(ctx, demands); rerr != nil {
		logctx.FromOr(ctx, s.log).Error("stock_restore_failed",
			observability.F("order_id", orderID),
			observability.F("error", rerr.Error()),
		)
	}
	return entity, nil
}

// MarkPaid is called by the payment ledger when an order's applied amount
// reaches its total. Version-checked like every other transition.
func (s *Service) MarkPaid(ctx context.Context, entity *domain.Order) error {
	if err := entity.TransitionTo(domain.StatusPaid); err != nil {
		return err
	}
	return s.orders.Update(ctx, entity)
}

// Get returns the order, hiding other users' orders from non-admin callers.
func (s *Service) Get(ctx context.Context, caller identity.Identity, orderID string) (*domain.Order, error) {
	entity, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(entity.UserID) {
		return nil, domain.ErrNotFound
	}
	return entity, nil
}

// List returns the caller's orders newest first; admins see every order.
func (s *Service) List(ctx context.Context, caller identity.Identity) ([]*domain.Order, error) {
	if caller.Admin {
		return s.orders.ListAll(ctx)
	}
	return s.orders.ListByUser(ctx, caller.UserID)
}
