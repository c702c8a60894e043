// Package domain defines the tipping ledger's types. The ledger is
// append-only: transactions are created pending and settle exactly once to
// completed or failed; nothing is ever deleted or retried in place.
package domain

import "time"

// TipStatus is the settlement state of a tip transaction.
type TipStatus string

const (
	TipPending   TipStatus = "pending"
	TipCompleted TipStatus = "completed"
	// TipFailed is terminal. A failed tip is retried as a brand-new
	// transaction so the audit trail stays append-only.
	TipFailed TipStatus = "failed"
)

// RecipientType says who the tip is for. An order carries at most one
// completed tip per recipient type.
type RecipientType string

const (
	RecipientChef     RecipientType = "chef"
	RecipientDelivery RecipientType = "delivery"
)

func (r RecipientType) Valid() bool {
	return r == RecipientChef || r == RecipientDelivery
}

type TipTransaction struct {
	ID            string
	FromUserID    string
	RecipientID   string
	RecipientType RecipientType
	Amount        float64
	Message       string
	OrderID       string
	Status        TipStatus
	// Reference is the external payment gateway's transaction reference.
	// Set only when Status is completed.
	Reference string
	CreatedAt time.Time
	// SettledAt is zero while the transaction is pending.
	SettledAt time.Time
}
