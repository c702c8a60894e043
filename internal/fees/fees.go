// Package fees derives the platform's cut of an order: commission,
// payment-processing fee, tax on those fees, and the net payout left for
// the chef. Compute is a pure function of the order total and the platform
// configuration; it never touches storage or the clock.
package fees

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig rejects a negative rate or order total. Config is
// validated at startup, so seeing this at request time is a bug.
var ErrInvalidConfig = errors.New("invalid fee config")

// Method selects the commission base.
type Method string

const (
	// MethodOrderValue charges commission on the full order total.
	MethodOrderValue Method = "order_value"
	// MethodChefEarnings charges commission on what the chef grosses after
	// the payment-processing fee.
	MethodChefEarnings Method = "chef_earnings"
)

type Config struct {
	// ChefCommissionRate is the platform's commission fraction.
	ChefCommissionRate float64
	// PaymentProcessingRate is the card/UPI processing fraction of the
	// order total.
	PaymentProcessingRate float64
	// GSTRate is applied to the sum of commission and processing fee.
	GSTRate float64
	// MinimumOrderForFee waives commission entirely below this total.
	MinimumOrderForFee float64
	// Method selects the commission base; defaults to order_value.
	Method Method
}

// Validate reports whether the config is usable. Called once at startup;
// a failure there is fatal.
func (c Config) Validate() error {
	if c.ChefCommissionRate < 0 || c.PaymentProcessingRate < 0 || c.GSTRate < 0 || c.MinimumOrderForFee < 0 {
		return fmt.Errorf("fees: negative rate: %w", ErrInvalidConfig)
	}
	switch c.Method {
	case MethodOrderValue, MethodChefEarnings, "":
	default:
		return fmt.Errorf("fees: unknown method %q: %w", c.Method, ErrInvalidConfig)
	}
	return nil
}

// Breakdown is the derived split of an order total. It is computed on
// demand and never persisted on its own.
type Breakdown struct {
	Commission    float64
	ProcessingFee float64
	Tax           float64
	NetPayout     float64
}

// Compute splits orderTotal per the config.
//
// Commission is zero below the minimum-order threshold. Otherwise it is
// total×rate (order_value) or (total − processing fee)×rate (chef_earnings).
// Tax applies to commission plus processing fee; the net payout is whatever
// remains of the total. All components are rounded to 2 decimals.
func Compute(orderTotal float64, cfg Config) (Breakdown, error) {
	if err := cfg.Validate(); err != nil {
		return Breakdown{}, err
	}
	if orderTotal < 0 {
		return Breakdown{}, fmt.Errorf("fees: negative order total %.2f: %w", orderTotal, ErrInvalidConfig)
	}

	processingFee := orderTotal * cfg.PaymentProcessingRate

	var commission float64
	if orderTotal >= cfg.MinimumOrderForFee {
		base := orderTotal
		if cfg.Method == MethodChefEarnings {
			base = orderTotal - processingFee
		}
		commission = base * cfg.ChefCommissionRate
	}

	tax := (commission + processingFee) * cfg.GSTRate

	return Breakdown{
		Commission:    round2(commission),
		ProcessingFee: round2(processingFee),
		Tax:           round2(tax),
		NetPayout:     round2(orderTotal - commission - processingFee - tax),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
