package domain

import "time"

type Order struct {
	ID               string
	CustomerID       string
	ChefID           string
	DeliveryPersonID string // empty until a courier is assigned
	Items            []OrderItem
	TotalAmount      float64
	Status           Status
	DeliveryAddress  string
	// CancellationPenalty is non-zero only when the order was cancelled
	// outside the free cancellation window.
	CancellationPenalty float64
	// Version is the optimistic-concurrency stamp. It starts at 1 and is
	// incremented on every successful mutation; updates are compare-and-swap
	// on this value.
	Version         int64
	CreatedAt       time.Time
	StatusChangedAt time.Time
}

type OrderItem struct {
	MenuItemID string
	Quantity   int
	// UnitPrice is the price at the time the order was placed, snapshotted
	// so later menu edits never change a placed order's total.
	UnitPrice float64
}

func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// Total sums the item subtotals. An order's TotalAmount must always equal
// this value.
func Total(items []OrderItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}

// StatusChange is one row of the order's audit trail. The table is
// append-only: one immutable row per successful transition.
type StatusChange struct {
	OrderID   string
	From      Status
	To        Status
	Actor     ActorRole
	Penalty   float64
	ChangedAt time.Time
}
