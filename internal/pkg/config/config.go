// Package config loads the platform configuration from the environment once
// at startup. Rates and the cancellation policy are read-only afterwards;
// the core is the sole enforcement point for their values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/platemate/order-ledger/internal/fees"
	"github.com/platemate/order-ledger/internal/order/domain"
)

type Config struct {
	HTTPAddr   string
	SQLitePath string
	RedisAddr  string

	Fees         fees.Config
	Cancellation domain.CancellationPolicy

	// SettlementTimeout bounds each payment-gateway settlement call.
	SettlementTimeout time.Duration
	// OrderCacheTTL is how long order reads may be served from Redis.
	OrderCacheTTL time.Duration
	// GatewayDeclineOver configures the development gateway fake.
	GatewayDeclineOver float64
}

// Load reads the environment. A malformed or negative rate is returned as
// an error wrapping fees.ErrInvalidConfig and is fatal at startup.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:   ":" + getEnv("PORT", "8080"),
		SQLitePath: getEnv("SQLITE_PATH", "./data/orders.db"),
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
	}

	var err error
	if cfg.Fees, err = loadFees(); err != nil {
		return Config{}, err
	}
	if cfg.Cancellation, err = loadCancellation(); err != nil {
		return Config{}, err
	}
	if cfg.SettlementTimeout, err = getEnvDuration("SETTLEMENT_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.OrderCacheTTL, err = getEnvDuration("ORDER_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.GatewayDeclineOver, err = getEnvFloat("GATEWAY_DECLINE_OVER", 0); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFees() (fees.Config, error) {
	var (
		cfg fees.Config
		err error
	)
	if cfg.ChefCommissionRate, err = getEnvFloat("CHEF_COMMISSION_RATE", 0.15); err != nil {
		return cfg, err
	}
	if cfg.PaymentProcessingRate, err = getEnvFloat("PAYMENT_PROCESSING_RATE", 0.025); err != nil {
		return cfg, err
	}
	if cfg.GSTRate, err = getEnvFloat("GST_RATE", 0.18); err != nil {
		return cfg, err
	}
	if cfg.MinimumOrderForFee, err = getEnvFloat("MINIMUM_ORDER_FOR_FEE", 100); err != nil {
		return cfg, err
	}
	cfg.Method = fees.Method(getEnv("FEE_CALCULATION_METHOD", string(fees.MethodOrderValue)))
	return cfg, cfg.Validate()
}

func loadCancellation() (domain.CancellationPolicy, error) {
	p := domain.DefaultCancellationPolicy()

	var err error
	if p.FreeWindow, err = getEnvDuration("FREE_CANCELLATION_WINDOW", p.FreeWindow); err != nil {
		return p, err
	}
	if p.PenaltyRate, err = getEnvFloat("CANCELLATION_PENALTY_RATE", p.PenaltyRate); err != nil {
		return p, err
	}
	if p.MinPenalty, err = getEnvFloat("MIN_CANCELLATION_PENALTY", p.MinPenalty); err != nil {
		return p, err
	}
	if p.MaxPenalty, err = getEnvFloat("MAX_CANCELLATION_PENALTY", p.MaxPenalty); err != nil {
		return p, err
	}
	if p.PenaltyRate < 0 || p.MinPenalty < 0 || p.MaxPenalty < p.MinPenalty || p.FreeWindow < 0 {
		return p, fmt.Errorf("config: inconsistent cancellation policy %+v: %w", p, fees.ErrInvalidConfig)
	}
	return p, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a number: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a duration: %w", key, v, err)
	}
	return d, nil
}
