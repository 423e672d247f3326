package shipment

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenshop/orderengine/internal/domain/fault"
	"github.com/zenshop/orderengine/internal/domain/order"
	domoutbox "github.com/zenshop/orderengine/internal/domain/outbox"
	domain "github.com/zenshop/orderengine/internal/domain/shipment"
	"github.com/zenshop/orderengine/internal/identity"
	"github.com/zenshop/orderengine/internal/infrastructure/memory"
)

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%03d", g.n)
}

// recordingPublisher captures published events synchronously.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []domoutbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domoutbox.Event(nil), p.events...)
}

var (
	admin = identity.Identity{UserID: "ops", Admin: true}
	alice = identity.Identity{UserID: "alice"}
)

type fixture struct {
	svc       *Service
	shipments *memory.ShipmentRepository
	orders    *memory.OrderRepository
	published *recordingPublisher
	ids       *seqIDs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	shipments := memory.NewShipmentRepository()
	orders := memory.NewOrderRepository()
	pub := &recordingPublisher{}
	ids := &seqIDs{}
	return &fixture{
		svc:       NewService(shipments, orders, pub, ids, nil),
		shipments: shipments,
		orders:    orders,
		published: pub,
		ids:       ids,
	}
}

func (f *fixture) addOrder(t *testing.T, userID string, status order.Status) *order.Order {
	t.Helper()
	o, err := order.New(f.ids.NewID(), userID, []order.OrderItem{
		{ID: f.ids.NewID(), ProductID: f.ids.NewID(), Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
	})
	require.NoError(t, err)
	require.NoError(t, f.orders.Insert(context.Background(), o))
	if status != order.StatusPending {
		stored, err := f.orders.Get(context.Background(), o.ID)
		require.NoError(t, err)
		stored.Status = status
		require.NoError(t, f.orders.Update(context.Background(), stored))
	}
	return o
}

func TestCreateShipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.addOrder(t, "alice", order.StatusPaid)

	sh, err := f.svc.Create(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, sh.Status)
	assert.Empty(t, sh.TrackingNumber)
}

func TestCreateShipmentGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("non-admin", func(t *testing.T) {
		o := f.addOrder(t, "alice", order.StatusPaid)
		_, err := f.svc.Create(ctx, alice, o.ID)
		assert.True(t, fault.IsKind(err, fault.KindPermission))
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := f.svc.Create(ctx, admin, "nope")
		assert.True(t, fault.IsKind(err, fault.KindNotFound))
	})

	t.Run("unpaid order", func(t *testing.T) {
		o := f.addOrder(t, "alice", order.StatusPending)
		_, err := f.svc.Create(ctx, admin, o.ID)
		assert.True(t, fault.IsKind(err, fault.KindConflict))
	})

	t.Run("already shipped order allows re-shipment", func(t *testing.T) {
		o := f.addOrder(t, "alice", order.StatusShipped)
		_, err := f.svc.Create(ctx, admin, o.ID)
		assert.NoError(t, err)
	})
}

func TestShip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.addOrder(t, "alice", order.StatusPaid)
	sh, err := f.svc.Create(ctx, admin, o.ID)
	require.NoError(t, err)

	shipped, err := f.svc.Ship(ctx, admin, sh.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusShipped, shipped.Status)
	assert.Regexp(t, regexp.MustCompile(`^TRK-[0-9A-F]{12}$`), shipped.TrackingNumber)
	require.NotNil(t, shipped.ShippedAt)

	gotOrder, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, gotOrder.Status)

	events := f.published.all()
	require.Len(t, events, 1)
	evt, ok := events[0].(domain.StatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, sh.ID, evt.ShipmentID)
	assert.Equal(t, o.ID, evt.OrderID)
	assert.Equal(t, domain.StatusShipped, evt.NewStatus)
	assert.Equal(t, shipped.TrackingNumber, evt.TrackingNumber)
}

func TestShipTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.addOrder(t, "alice", order.StatusPaid)
	sh, err := f.svc.Create(ctx, admin, o.ID)
	require.NoError(t, err)

	_, err = f.svc.Ship(ctx, admin, sh.ID)
	require.NoError(t, err)

	_, err = f.svc.Ship(ctx, admin, sh.ID)
	assert.True(t, fault.IsKind(err, fault.KindConflict))
}

func TestShipSecondShipmentOfShippedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.addOrder(t, "alice", order.StatusPaid)

	first, err := f.svc.Create(ctx, admin, o.ID)
	require.NoError(t, err)
	_, err = f.svc.Ship(ctx, admin, first.ID)
	require.NoError(t, err)

	second, err := f.svc.Create(ctx, admin, o.ID)
	require.NoError(t, err)
	shipped, err := f.svc.Ship(ctx, admin, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, shipped.Status)
}

func TestDeliver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.addOrder(t, "alice", order.StatusPaid)
	sh, err := f.svc.Create(ctx, admin, o.ID)
	require.NoError(t, err)
	_, err = f.svc.Ship(ctx, admin, sh.ID)
	require.NoError(t, err)

	delivered, err := f.svc.Deliver(ctx, admin, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)

	gotOrder, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, gotOrder.Status)

	events := f.published.all()
	require.Len(t, events, 2)
	evt, ok := events[1].(domain.StatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, domain.StatusDelivered, evt.NewStatus)
}

func TestDeliverGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.addOrder(t, "alice", order.StatusPaid)
	sh, err := f.svc.Create(ctx, admin, o.ID)
	require.NoError(t, err)

	_, err = f.svc.Deliver(ctx, admin, sh.ID)
	assert.True(t, fault.IsKind(err, fault.KindConflict), "pending shipment cannot be delivered")

	_, err = f.svc.Deliver(ctx, alice, sh.ID)
	assert.True(t, fault.IsKind(err, fault.KindPermission))
}

func TestTrackAndVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.addOrder(t, "alice", order.StatusPaid)
	sh, err := f.svc.Create(ctx, admin, o.ID)
	require.NoError(t, err)
	shipped, err := f.svc.Ship(ctx, admin, sh.ID)
	require.NoError(t, err)

	got, err := f.svc.Track(ctx, alice, shipped.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, sh.ID, got.ID)

	_, err = f.svc.Track(ctx, identity.Identity{UserID: "mallory"}, shipped.TrackingNumber)
	assert.True(t, fault.IsKind(err, fault.KindNotFound), "foreign shipments hide as not found")

	_, err = f.svc.Track(ctx, alice, "TRK-000000000000")
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}

func TestListByOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.addOrder(t, "alice", order.StatusPaid)
	_, err := f.svc.Create(ctx, admin, o.ID)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, admin, o.ID)
	require.NoError(t, err)

	mine, err := f.svc.ListByOrder(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = f.svc.ListByOrder(ctx, identity.Identity{UserID: "mallory"}, o.ID)
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}
