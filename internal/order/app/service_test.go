package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platemate/order-ledger/internal/notify"
	app "github.com/platemate/order-ledger/internal/order/app"
	"github.com/platemate/order-ledger/internal/order/domain"
	"github.com/platemate/order-ledger/internal/storage/memory"
)

// fakeClock lets tests move time forward between calls.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*app.Service, *memory.OrderStore, *notify.Bus, *fakeClock) {
	t.Helper()
	store := memory.NewOrderStore()
	bus := notify.NewBus()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := app.NewService(store, bus, domain.DefaultCancellationPolicy(), clock.Now)
	return svc, store, bus, clock
}

func validItems() []domain.OrderItem {
	return []domain.OrderItem{
		{MenuItemID: "paneer-tikka", Quantity: 2, UnitPrice: 180},
		{MenuItemID: "naan", Quantity: 4, UnitPrice: 40},
	}
}

func TestCreate(t *testing.T) {
	svc, store, _, clock := newTestService(t)

	o, err := svc.Create(context.Background(), "cust-1", "chef-1", "12 MG Road", validItems())
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.InDelta(t, 520, o.TotalAmount, 0.001)
	assert.Equal(t, int64(1), o.Version)
	assert.Equal(t, clock.Now(), o.CreatedAt)

	stored, err := store.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)

	history := store.History(o.ID)
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusPending, history[0].To)
}

func TestCreate_Invalid(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		customerID string
		chefID     string
		items      []domain.OrderItem
	}{
		{"no items", "cust-1", "chef-1", nil},
		{"zero quantity", "cust-1", "chef-1", []domain.OrderItem{{MenuItemID: "x", Quantity: 0, UnitPrice: 10}}},
		{"negative price", "cust-1", "chef-1", []domain.OrderItem{{MenuItemID: "x", Quantity: 1, UnitPrice: -5}}},
		{"zero price", "cust-1", "chef-1", []domain.OrderItem{{MenuItemID: "x", Quantity: 1, UnitPrice: 0}}},
		{"missing customer", "", "chef-1", validItems()},
		{"missing chef", "cust-1", "", validItems()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.customerID, tt.chefID, "addr", tt.items)
			require.ErrorIs(t, err, domain.ErrInvalidOrder)
		})
	}
}

func TestTransition_HappyPath(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)

	steps := []struct {
		target  domain.Status
		actor   domain.ActorRole
		actorID string
	}{
		{domain.StatusAccepted, domain.RoleChef, "chef-1"},
		{domain.StatusPreparing, domain.RoleChef, "chef-1"},
		{domain.StatusReady, domain.RoleChef, "chef-1"},
		{domain.StatusOutForDelivery, domain.RoleDelivery, "rider-7"},
		{domain.StatusDelivered, domain.RoleDelivery, "rider-7"},
	}

	version := o.Version
	for _, step := range steps {
		o, err = svc.Transition(ctx, o.ID, step.target, step.actor, step.actorID, 0)
		require.NoError(t, err, "to %s", step.target)
		assert.Equal(t, step.target, o.Status)
		assert.Equal(t, version+1, o.Version)
		version = o.Version
	}
	assert.Equal(t, domain.StatusDelivered, o.Status)
	// The courier driving the pickup was recorded on the order.
	assert.Equal(t, "rider-7", o.DeliveryPersonID)
}

func TestTransition_IllegalEdge(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)

	// Skipping straight to ready is not an edge.
	_, err = svc.Transition(ctx, o.ID, domain.StatusReady, domain.RoleChef, "", 0)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransition_DuplicateTargetRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, o.ID, domain.StatusAccepted, domain.RoleChef, "", 0)
	require.NoError(t, err)

	// The duplicate surfaces rather than silently succeeding.
	_, err = svc.Transition(ctx, o.ID, domain.StatusAccepted, domain.RoleChef, "", 0)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransition_UnauthorizedActor(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)

	// Customers do not accept orders; couriers do not either.
	_, err = svc.Transition(ctx, o.ID, domain.StatusAccepted, domain.RoleCustomer, "", 0)
	require.ErrorIs(t, err, domain.ErrUnauthorizedActor)
	_, err = svc.Transition(ctx, o.ID, domain.StatusAccepted, domain.RoleDelivery, "", 0)
	require.ErrorIs(t, err, domain.ErrUnauthorizedActor)
}

func TestTransition_VersionConflict(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, o.ID, domain.StatusAccepted, domain.RoleChef, "", o.Version)
	require.NoError(t, err)

	// A second caller still holding version 1 must be rejected.
	_, err = svc.Transition(ctx, o.ID, domain.StatusPreparing, domain.RoleChef, "", o.Version)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestTransition_EmitsEvent(t *testing.T) {
	svc, _, bus, _ := newTestService(t)
	ctx := context.Background()
	events := bus.Subscribe(8)

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)
	_, err = svc.Transition(ctx, o.ID, domain.StatusAccepted, domain.RoleChef, "", 0)
	require.NoError(t, err)

	created := (<-events).(notify.OrderEvent)
	assert.Equal(t, o.ID, created.OrderID)
	assert.Equal(t, domain.StatusPending, created.To)
	assert.Empty(t, created.From)

	accepted := (<-events).(notify.OrderEvent)
	assert.Equal(t, domain.StatusPending, accepted.From)
	assert.Equal(t, domain.StatusAccepted, accepted.To)
	assert.Equal(t, domain.RoleChef, accepted.Actor)
}

func TestCancel_FreeWindow(t *testing.T) {
	svc, _, _, clock := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)

	// Exactly at the boundary: still free.
	clock.Advance(30 * time.Second)
	res, err := svc.Cancel(ctx, o.ID, domain.RoleCustomer, 0)
	require.NoError(t, err)

	assert.True(t, res.Free)
	assert.Zero(t, res.Penalty)
	assert.Equal(t, domain.StatusCancelled, res.Order.Status)
}

func TestCancel_PastWindowCharges(t *testing.T) {
	svc, _, _, clock := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)

	clock.Advance(31 * time.Second)
	res, err := svc.Cancel(ctx, o.ID, domain.RoleCustomer, 0)
	require.NoError(t, err)

	assert.False(t, res.Free)
	// 520 × 0.40 = 208, inside the [20, 500] clamp.
	assert.InDelta(t, 208, res.Penalty, 0.001)
	assert.InDelta(t, 208, res.Order.CancellationPenalty, 0.001)
}

func TestCancel_AlreadyTerminal(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, o.ID, domain.RoleCustomer, 0)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, o.ID, domain.RoleCustomer, 0)
	require.ErrorIs(t, err, domain.ErrAlreadyTerminal)
}

func TestCancel_MidDeliveryRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)
	for _, step := range []struct {
		target domain.Status
		actor  domain.ActorRole
	}{
		{domain.StatusAccepted, domain.RoleChef},
		{domain.StatusPreparing, domain.RoleChef},
		{domain.StatusReady, domain.RoleChef},
		{domain.StatusOutForDelivery, domain.RoleDelivery},
	} {
		_, err = svc.Transition(ctx, o.ID, step.target, step.actor, "", 0)
		require.NoError(t, err)
	}

	_, err = svc.Cancel(ctx, o.ID, domain.RoleCustomer, 0)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancel_ReadyOnlyChef(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)
	for _, target := range []domain.Status{domain.StatusAccepted, domain.StatusPreparing, domain.StatusReady} {
		_, err = svc.Transition(ctx, o.ID, target, domain.RoleChef, "", 0)
		require.NoError(t, err)
	}

	_, err = svc.Cancel(ctx, o.ID, domain.RoleCustomer, 0)
	require.ErrorIs(t, err, domain.ErrUnauthorizedActor)

	res, err := svc.Cancel(ctx, o.ID, domain.RoleChef, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, res.Order.Status)
}

func TestTransitionToCancelled_AppliesPenalty(t *testing.T) {
	svc, _, _, clock := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	updated, err := svc.Transition(ctx, o.ID, domain.StatusCancelled, domain.RoleCustomer, "", 0)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, updated.Status)
	assert.InDelta(t, 208, updated.CancellationPenalty, 0.001)
}

func TestCreateThenCancel_RoundTrip(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)

	updated, err := svc.Transition(ctx, o.ID, domain.StatusCancelled, domain.RoleCustomer, "", 0)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, updated.Status)
	assert.Zero(t, updated.CancellationPenalty)

	history := store.History(o.ID)
	require.Len(t, history, 2)
	assert.Equal(t, domain.StatusCancelled, history[1].To)
}

func TestTransition_UnknownInputs(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", "chef-1", "addr", validItems())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, o.ID, domain.Status("shipped"), domain.RoleChef, "", 0)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Transition(ctx, o.ID, domain.StatusAccepted, domain.ActorRole("admin"), "", 0)
	require.ErrorIs(t, err, domain.ErrUnauthorizedActor)

	_, err = svc.Transition(ctx, "no-such-order", domain.StatusAccepted, domain.RoleChef, "", 0)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
