package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/auth"
	"github.com/coreledger/ledgerd/internal/clock"
	"github.com/coreledger/ledgerd/internal/config"
	"github.com/coreledger/ledgerd/internal/httpapi"
	"github.com/coreledger/ledgerd/internal/locktable"
	"github.com/coreledger/ledgerd/internal/observer"
	"github.com/coreledger/ledgerd/internal/service/account"
	"github.com/coreledger/ledgerd/internal/service/apikey"
	"github.com/coreledger/ledgerd/internal/service/balance"
	"github.com/coreledger/ledgerd/internal/service/entry"
	"github.com/coreledger/ledgerd/internal/storage"
	"github.com/coreledger/ledgerd/internal/storage/memory"
	"github.com/coreledger/ledgerd/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	store, closeFn, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage backend", "err", err)
		os.Exit(1)
	}
	defer closeFn()

	if err := bootstrapAdminKey(ctx, store, cfg, logger); err != nil {
		logger.Error("failed to bootstrap admin key", "err", err)
		os.Exit(1)
	}

	srv := buildServer(store, cfg, logger)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledgerd listening", "addr", httpSrv.Addr, "store_kind", cfg.StoreKind)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
}

// openStore constructs the configured storage backend. No blocking I/O
// happens in any service constructor; Postgres connectivity is verified
// here, once, at startup.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, func(), error) {
	if cfg.StoreKind == "postgres" {
		connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.StoreConnectionTimeoutS)*time.Second)
		defer cancel()
		pg, err := postgres.Open(connectCtx, cfg.DatabaseURL, cfg.StoreMaxPoolSize, cfg.StoreLogQueries, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("storage backend: postgres", "max_pool_size", cfg.StoreMaxPoolSize)
		return pg, pg.Close, nil
	}
	logger.Info("storage backend: memory")
	return memory.New(), func() {}, nil
}

// bootstrapAdminKey ensures AUTH_DEFAULT_ADMIN_KEY resolves to an admin
// principal when auth is enabled, so an operator always has a way in.
func bootstrapAdminKey(ctx context.Context, store storage.Store, cfg config.Config, logger *slog.Logger) error {
	if !cfg.AuthEnabled || cfg.AuthDefaultAdminKey == "" {
		return nil
	}
	hash := apikey.HashToken(cfg.AuthDefaultAdminKey)
	if _, err := store.GetAPIKeyByTokenHash(ctx, hash); err == nil {
		return nil
	}
	key := storage.APIKey{
		ID:          uuid.New(),
		PrincipalID: uuid.New(),
		TokenHash:   hash,
		IsAdmin:     true,
		CreatedAt:   clock.New().Now(),
	}
	if err := store.InsertAPIKey(ctx, key); err != nil {
		return err
	}
	logger.Info("bootstrapped default admin API key", "principal_id", key.PrincipalID)
	return nil
}

func buildServer(store storage.Store, cfg config.Config, logger *slog.Logger) *httpapi.Server {
	locks := locktable.New()
	clk := clock.New()
	obs := observer.NewMulti(observer.NewLogging(logger), observer.NewMetrics())

	accounts := account.New(store, locks, clk, obs)
	entries := entry.New(store, locks, clk, obs)
	balances := balance.New(store, locks, clk, obs, balance.WithRejectNegative(cfg.BalanceRejectNegative))
	keys := apikey.New(store, clk)
	authn := auth.New(keys, cfg.AuthEnabled)

	return httpapi.New(accounts, entries, balances, keys, authn, store, logger)
}

func buildLogger(cfg config.Config) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
