package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/modelrank/internal/adapters/http/api"
	"github.com/okian/modelrank/internal/adapters/http/swagger"
	"github.com/okian/modelrank/internal/adapters/identity"
	app "github.com/okian/modelrank/internal/app"
	"github.com/okian/modelrank/internal/config"
	"github.com/okian/modelrank/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Loads configuration (defaults, then the YAML file named by MODELRANK_CONFIG,
then MODELRANK_* environment variables) and serves the API until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	// Disable default Go metrics collection to avoid duplicate metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	log := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if cfg.JWTSecret == config.DevJWTSecret {
		log.Warn(ctx, "using the development JWT secret; set MODELRANK_JWT_SECRET in production")
	}

	authority, err := identity.NewAuthority(cfg.JWTSecret, identity.WithTTL(cfg.TokenTTL))
	if err != nil {
		return fmt.Errorf("token authority: %w", err)
	}

	svc := app.New(serviceOptions(cfg, log)...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc,
		api.WithAuthority(authority),
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		api.WithLogger(log.Named("api")),
	)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(mux),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "server shutdown failed", logger.Error(err))
			return err
		}
		return nil
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// serviceOptions maps configuration onto service options.
func serviceOptions(cfg *config.Config, log logger.Logger) []app.Option {
	return []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithStore(cfg.Store, cfg.DataDir),
		app.WithBadgerTuning(cfg.BadgerSyncWrites, cfg.BadgerGCInterval),
		app.WithOwner(cfg.Owner),
		app.WithEscrowAccount(cfg.EscrowAccount),
		app.WithMinStake(cfg.MinStake),
		app.WithLockupPeriod(cfg.LockupPeriod),
		app.WithBlockInterval(cfg.BlockInterval),
		app.WithGenesisBalances(cfg.GenesisBalances),
		app.WithFaucetAmount(cfg.FaucetAmount),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		app.WithIdempotency(cfg.IdempotencySize, cfg.IdempotencyTTL),
	}
}
