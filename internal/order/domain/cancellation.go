package domain

import "time"

// CancellationPolicy holds the penalty schedule applied when an order is
// cancelled after the free window. The core is the sole enforcement point
// for these values; clients only display them.
type CancellationPolicy struct {
	// FreeWindow is the grace period after order creation during which
	// cancellation costs nothing. The boundary is inclusive.
	FreeWindow time.Duration

	// PenaltyRate is the fraction of the order total charged after the
	// free window, before clamping.
	PenaltyRate float64

	MinPenalty float64
	MaxPenalty float64
}

// DefaultCancellationPolicy matches the platform defaults: 30s free window,
// 40% penalty clamped to [20, 500].
func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{
		FreeWindow:  30 * time.Second,
		PenaltyRate: 0.40,
		MinPenalty:  20,
		MaxPenalty:  500,
	}
}

// Penalty returns the fee for cancelling an order of the given total when
// elapsed time has passed since creation. Zero within the free window
// (inclusive), otherwise total×rate clamped to [MinPenalty, MaxPenalty].
func (p CancellationPolicy) Penalty(total float64, elapsed time.Duration) float64 {
	if elapsed <= p.FreeWindow {
		return 0
	}
	penalty := total * p.PenaltyRate
	if penalty < p.MinPenalty {
		penalty = p.MinPenalty
	}
	if penalty > p.MaxPenalty {
		penalty = p.MaxPenalty
	}
	return penalty
}
