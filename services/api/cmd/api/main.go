package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/app"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/clock"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/config"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/escrow"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/notify"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/storage/postgres"
	transporthttp "github.com/saudashfaq/market-market-sub002/services/api/internal/transport/http"
	"github.com/saudashfaq/market-market-sub002/services/api/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load(logger)

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	notifyRepo := postgres.NewNotificationRepository(pool)
	notifier := notify.NewService(notifyRepo, notify.LogMailer{Log: logger}, logger)
	notifier.Start()
	defer notifier.Close()

	escrowClient := escrow.NewClient(cfg.EscrowBaseURL, cfg.EscrowAPIKey, cfg.EscrowTimeout)

	offerRepo := postgres.NewOfferRepository(pool)
	offerSvc := app.NewOfferService(offerRepo, notifier, clock.NewSystem(), logger)
	txnRepo := postgres.NewTransactionRepository(pool)
	transferSvc := app.NewTransferService(txnRepo, escrowClient, notifier, clock.NewSystem(), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/offers/", transporthttp.HandleResolveOffer(offerSvc))
	mux.Handle("/transactions/", transporthttp.HandleTransactions(transferSvc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	logger.Info("api listening", zap.String("port", cfg.Port))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
