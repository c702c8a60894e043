// Package notify defines the typed events the core emits on every successful
// state mutation, and the Publisher port the engines write to.
//
// Delivery is fire-and-forget: the core guarantees at-most-once emission and
// makes no assumption about whether the external notifier (push, SMS, in-app)
// ever receives or acts on an event. Retry policy belongs to the notifier.
package notify

import (
	"context"
	"time"

	ledgerdomain "github.com/platemate/order-ledger/internal/ledger/domain"
	orderdomain "github.com/platemate/order-ledger/internal/order/domain"
)

// OrderEvent records a single status transition. From is empty for the
// creation event (the order entered pending from nothing).
type OrderEvent struct {
	OrderID    string                `json:"order_id"`
	From       orderdomain.Status    `json:"from_status,omitempty"`
	To         orderdomain.Status    `json:"to_status"`
	Actor      orderdomain.ActorRole `json:"actor,omitempty"`
	Penalty    float64               `json:"penalty,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// TipEvent records a tip transaction entering a new status
// (pending on creation, then completed or failed on settlement).
type TipEvent struct {
	TipID      string                 `json:"tip_id"`
	OrderID    string                 `json:"order_id"`
	Status     ledgerdomain.TipStatus `json:"status"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Publisher is the port the engines emit events through. Implementations
// must not block the caller; a slow or absent subscriber drops events.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, e OrderEvent)
	PublishTipEvent(ctx context.Context, e TipEvent)
}

// Nop discards every event. Useful in tests that do not assert on events.
type Nop struct{}

func (Nop) PublishOrderEvent(context.Context, OrderEvent) {}
func (Nop) PublishTipEvent(context.Context, TipEvent)     {}
