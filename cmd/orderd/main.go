package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platemate/order-ledger/internal/httpx"
	ledgerapp "github.com/platemate/order-ledger/internal/ledger/app"
	"github.com/platemate/order-ledger/internal/notify"
	orderapp "github.com/platemate/order-ledger/internal/order/app"
	"github.com/platemate/order-ledger/internal/payment"
	"github.com/platemate/order-ledger/internal/pkg/cache"
	"github.com/platemate/order-ledger/internal/pkg/config"
	"github.com/platemate/order-ledger/internal/pkg/telemetry"
	"github.com/platemate/order-ledger/internal/storage/sqlite"
)

func main() {
	telemetry.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "order-ledger"))
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	orderRepo := sqlite.NewOrderRepository(db)
	tipRepo := sqlite.NewTipRepository(db)

	events := notify.NewRedisPublisher(cfg.RedisAddr, "order-ledger")
	defer events.Close()

	orderCache := cache.NewRedisCache(cfg.RedisAddr, "order-ledger")

	orders := orderapp.NewService(orderRepo, events, cfg.Cancellation, nil)
	gateway := payment.NewFakeGateway(cfg.GatewayDeclineOver)
	ledger := ledgerapp.NewService(tipRepo, orderRepo, gateway, events, cfg.SettlementTimeout, nil)

	handler := httpx.NewHandler(orders, ledger, cfg.Fees, orderCache, cfg.OrderCacheTTL)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpx.NewRouter(handler),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
	}()

	slog.Info("order-ledger core running", "addr", cfg.HTTPAddr, "db", cfg.SQLitePath)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
