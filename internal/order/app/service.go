// Package app implements the order state machine: creation, status
// transitions guarded by the edge/actor table, and cancellation with the
// penalty policy. All mutations for one order are serialized through a
// per-order lock and compare-and-swap on the order's version stamp, so two
// racing requests can never drive an order into different terminal states.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/platemate/order-ledger/internal/notify"
	"github.com/platemate/order-ledger/internal/order/domain"
	"github.com/platemate/order-ledger/internal/pkg/syncx"
)

// Repository is the port for order persistence. Update must be
// compare-and-swap: it applies o only if the stored version still equals
// prevVersion, returning domain.ErrVersionConflict otherwise.
type Repository interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order, prevVersion int64) error
	// AppendStatusChange adds one row to the append-only audit trail.
	AppendStatusChange(ctx context.Context, c *domain.StatusChange) error
}

// CancellationResult reports the outcome of a cancellation.
type CancellationResult struct {
	Order *domain.Order
	// Penalty is zero when the cancellation fell inside the free window.
	Penalty float64
	Free    bool
}

type Service struct {
	repo   Repository
	events notify.Publisher
	policy domain.CancellationPolicy
	now    func() time.Time
	locks  *syncx.KeyMutex
}

// NewService wires the state machine. now may be nil, in which case the
// UTC wall clock is used; tests inject a fixed clock.
func NewService(repo Repository, events notify.Publisher, policy domain.CancellationPolicy, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:   repo,
		events: events,
		policy: policy,
		now:    now,
		locks:  syncx.NewKeyMutex(),
	}
}

// Create validates the line items, snapshots the total, and persists the
// order in pending. The checkout collaborator calls this once per placed
// cart.
func (s *Service) Create(ctx context.Context, customerID, chefID, deliveryAddress string, items []domain.OrderItem) (*domain.Order, error) {
	if customerID == "" || chefID == "" {
		return nil, fmt.Errorf("customer and chef ids are required: %w", domain.ErrInvalidOrder)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("order has no items: %w", domain.ErrInvalidOrder)
	}
	for _, it := range items {
		if it.Quantity <= 0 || it.UnitPrice <= 0 {
			return nil, fmt.Errorf("item %q has non-positive quantity or price: %w", it.MenuItemID, domain.ErrInvalidOrder)
		}
	}

	now := s.now()
	o := &domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      customerID,
		ChefID:          chefID,
		Items:           items,
		TotalAmount:     domain.Total(items),
		Status:          domain.StatusPending,
		DeliveryAddress: deliveryAddress,
		Version:         1,
		CreatedAt:       now,
		StatusChangedAt: now,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.appendHistory(ctx, &domain.StatusChange{
		OrderID:   o.ID,
		To:        domain.StatusPending,
		Actor:     domain.RoleCustomer,
		ChangedAt: now,
	})
	s.events.PublishOrderEvent(ctx, notify.OrderEvent{
		OrderID:    o.ID,
		To:         domain.StatusPending,
		Actor:      domain.RoleCustomer,
		OccurredAt: now,
	})

	slog.InfoContext(ctx, "order created", "order_id", o.ID, "chef_id", chefID, "total", o.TotalAmount)
	return o, nil
}

// Get returns the order as currently stored.
func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// Transition moves the order along one edge of the status graph. The edge
// must exist in the table and the actor must be permitted to drive it.
// actorID identifies the acting user; it is recorded as the courier on the
// edge into out_for_delivery and ignored elsewhere.
//
// expectedVersion is the caller's optimistic-concurrency stamp: non-zero
// values are checked against the stored version and a mismatch is rejected
// with domain.ErrVersionConflict rather than overwritten. Zero skips the
// caller-side check (the update itself is still CAS-protected).
//
// A transition to cancelled goes through the cancellation policy, so a late
// customer cancellation carries its penalty regardless of which operation
// the collaborator called.
func (s *Service) Transition(ctx context.Context, orderID string, target domain.Status, actor domain.ActorRole, actorID string, expectedVersion int64) (*domain.Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", target, domain.ErrInvalidTransition)
	}
	if !actor.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", actor, domain.ErrUnauthorizedActor)
	}

	defer s.locks.Lock(orderID)()

	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && o.Version != expectedVersion {
		return nil, fmt.Errorf("order %s is at version %d, caller expected %d: %w",
			orderID, o.Version, expectedVersion, domain.ErrVersionConflict)
	}
	if !domain.CanTransition(o.Status, target) {
		return nil, fmt.Errorf("no edge %s -> %s: %w", o.Status, target, domain.ErrInvalidTransition)
	}
	if !domain.ActorAllowed(o.Status, target, actor) {
		return nil, fmt.Errorf("%s may not drive %s -> %s: %w", actor, o.Status, target, domain.ErrUnauthorizedActor)
	}

	if target == domain.StatusOutForDelivery && actorID != "" {
		o.DeliveryPersonID = actorID
	}

	var penalty float64
	if target == domain.StatusCancelled {
		penalty = s.policy.Penalty(o.TotalAmount, s.now().Sub(o.CreatedAt))
	}
	return s.applyLocked(ctx, o, target, actor, penalty)
}

// Cancel cancels the order, charging the policy penalty when the free
// window has passed. Unlike Transition it distinguishes an order that is
// already terminal (domain.ErrAlreadyTerminal) so retrying clients can
// treat the repeat as a no-op.
func (s *Service) Cancel(ctx context.Context, orderID string, actor domain.ActorRole, expectedVersion int64) (*CancellationResult, error) {
	if !actor.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", actor, domain.ErrUnauthorizedActor)
	}

	defer s.locks.Lock(orderID)()

	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.IsTerminal() {
		return nil, fmt.Errorf("order %s is %s: %w", orderID, o.Status, domain.ErrAlreadyTerminal)
	}
	if expectedVersion != 0 && o.Version != expectedVersion {
		return nil, fmt.Errorf("order %s is at version %d, caller expected %d: %w",
			orderID, o.Version, expectedVersion, domain.ErrVersionConflict)
	}
	if !domain.CanTransition(o.Status, domain.StatusCancelled) {
		// Only the mid-delivery edge is missing; cancellation is rejected there.
		return nil, fmt.Errorf("cannot cancel while %s: %w", o.Status, domain.ErrInvalidTransition)
	}
	if !domain.ActorAllowed(o.Status, domain.StatusCancelled, actor) {
		return nil, fmt.Errorf("%s may not cancel a %s order: %w", actor, o.Status, domain.ErrUnauthorizedActor)
	}

	penalty := s.policy.Penalty(o.TotalAmount, s.now().Sub(o.CreatedAt))
	updated, err := s.applyLocked(ctx, o, domain.StatusCancelled, actor, penalty)
	if err != nil {
		return nil, err
	}
	return &CancellationResult{Order: updated, Penalty: penalty, Free: penalty == 0}, nil
}

// applyLocked persists the status change and emits the audit row and event.
// Callers must hold the per-order lock.
func (s *Service) applyLocked(ctx context.Context, o *domain.Order, target domain.Status, actor domain.ActorRole, penalty float64) (*domain.Order, error) {
	from := o.Status
	prevVersion := o.Version
	now := s.now()

	o.Status = target
	o.CancellationPenalty = penalty
	o.StatusChangedAt = now
	o.Version = prevVersion + 1

	if err := s.repo.Update(ctx, o, prevVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("update order %s: %w", o.ID, err)
	}

	s.appendHistory(ctx, &domain.StatusChange{
		OrderID:   o.ID,
		From:      from,
		To:        target,
		Actor:     actor,
		Penalty:   penalty,
		ChangedAt: now,
	})
	s.events.PublishOrderEvent(ctx, notify.OrderEvent{
		OrderID:    o.ID,
		From:       from,
		To:         target,
		Actor:      actor,
		Penalty:    penalty,
		OccurredAt: now,
	})

	slog.InfoContext(ctx, "order transitioned",
		"order_id", o.ID, "from", from, "to", target, "actor", actor, "penalty", penalty)
	return o, nil
}

// appendHistory writes the audit row. The trail is observability, not
// correctness: a write failure is logged and the mutation stands.
func (s *Service) appendHistory(ctx context.Context, c *domain.StatusChange) {
	if err := s.repo.AppendStatusChange(ctx, c); err != nil {
		slog.WarnContext(ctx, "failed to append status history", "order_id", c.OrderID, "error", err)
	}
}
