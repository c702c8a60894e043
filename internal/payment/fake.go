package payment

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Ensure fakeGateway implements the port at compile time.
var _ Gateway = (*fakeGateway)(nil)

// fakeGateway is an in-memory Gateway for local development and manual
// testing only. Transfers above the configured limit are declined, which is
// enough to exercise the failed-settlement path end to end.
type fakeGateway struct {
	declineOver float64
}

// NewFakeGateway returns a Gateway that declines any amount above
// declineOver (0 means accept everything).
func NewFakeGateway(declineOver float64) Gateway {
	return &fakeGateway{declineOver: declineOver}
}

func (g *fakeGateway) Settle(ctx context.Context, tipID string, amount float64) (Result, error) {
	if g.declineOver > 0 && amount > g.declineOver {
		slog.InfoContext(ctx, "fake gateway declined transfer", "tip_id", tipID, "amount", amount)
		return Result{Failed: true, Reason: "amount exceeds limit"}, nil
	}
	return Result{Reference: "fake-" + uuid.NewString()}, nil
}
