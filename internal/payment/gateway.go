// Package payment defines the port to the external payment gateway that
// settles tip transfers. The gateway itself lives outside this core; only
// the contract and a development fake are provided here.
package payment

import "context"

// Result is the gateway's answer to a settlement attempt.
type Result struct {
	// Reference is the gateway-side transaction reference. Empty when the
	// transfer failed.
	Reference string
	Failed    bool
	Reason    string
}

// Gateway settles a tip transfer. Settle is called through an async boundary
// with a bounded timeout; a timeout leaves the transaction pending until the
// gateway calls back or a reconciliation job resolves it.
type Gateway interface {
	Settle(ctx context.Context, tipID string, amount float64) (Result, error)
}
