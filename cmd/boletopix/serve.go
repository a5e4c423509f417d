package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/config"
	"github.com/boddenberg/boleto-pix-go/internal/handler"
	"github.com/boddenberg/boleto-pix-go/internal/infra/cache"
	"github.com/boddenberg/boleto-pix-go/internal/infra/client"
	"github.com/boddenberg/boleto-pix-go/internal/infra/observability"
	"github.com/boddenberg/boleto-pix-go/internal/infra/postgres"
	"github.com/boddenberg/boleto-pix-go/internal/infra/qrimage"
	"github.com/boddenberg/boleto-pix-go/internal/infra/resilience"
	"github.com/boddenberg/boleto-pix-go/internal/infra/sqlite"
	"github.com/boddenberg/boleto-pix-go/internal/infra/supabase"
	"github.com/boddenberg/boleto-pix-go/internal/ledger"
	"github.com/boddenberg/boleto-pix-go/internal/port"
	"github.com/boddenberg/boleto-pix-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. Configuration comes from the environment (and an
optional .env file): STORE_BACKEND selects sqlite, postgres or supabase,
CACHE_BACKEND selects memory or redis.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "Listen port (overrides PORT)")
	serveCmd.Flags().Bool("seed", false, "Load demo data when using the sqlite backend")
}

// backend is one configured store serving boletos, merchants and the ledger.
type backend struct {
	name      string
	boletos   port.BoletoStore
	merchants port.MerchantStore
	ledger    port.LedgerStore
	pinger    port.Pinger
	close     func() error
}

func openBackend(cfg *config.Config, logger *zap.Logger, seed bool) (*backend, error) {
	loc := cfg.Location()

	switch cfg.StoreBackend {
	case config.StoreSQLite:
		db, err := sqlite.InitDB(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s := sqlite.NewStore(db, loc)
		if seed {
			if err := sqlite.SeedDemo(context.Background(), s, time.Now()); err != nil {
				db.Close()
				return nil, err
			}
			logger.Info("demo data loaded", zap.String("path", cfg.SQLitePath))
		}
		return &backend{name: "sqlite", boletos: s, merchants: s, ledger: s, pinger: s, close: db.Close}, nil

	case config.StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		db, err := postgres.Open(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		s := postgres.NewStore(db, loc)
		var sqlDB *sql.DB
		if sqlDB, err = db.DB(); err != nil {
			return nil, err
		}
		return &backend{name: "postgres", boletos: s, merchants: s, ledger: s, pinger: s, close: sqlDB.Close}, nil

	case config.StoreSupabase:
		if cfg.SupabaseURL == "" {
			return nil, errors.New("SUPABASE_URL is required for the supabase backend")
		}
		c := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			loc,
			logger,
		)
		return &backend{name: "supabase", boletos: c, merchants: c, ledger: c, pinger: c, close: func() error { return nil }}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

type activeCodeStore interface {
	port.ActiveCodeCache
	port.Pinger
}

func openActiveCodes(cfg *config.Config) (activeCodeStore, string) {
	if cfg.CacheBackend == config.CacheRedis {
		return cache.NewRedisActiveCodes(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)), "redis"
	}
	return cache.NewMemoryActiveCodes(time.Minute), "memory"
}

func runServe(cmd *cobra.Command, _ []string) error {
	// --- Config ---
	cfg := config.Load()
	if p, _ := cmd.Flags().GetInt("port"); p > 0 {
		cfg.Port = p
	}
	seed, _ := cmd.Flags().GetBool("seed")

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("store_timeout", cfg.StoreTimeout),
		zap.Duration("ledger_timeout", cfg.LedgerTimeout),
		zap.Duration("pix_code_ttl", cfg.PixCodeTTL),
		zap.Bool("reuse_active_code", cfg.ReuseActiveCode),
		zap.String("timezone", cfg.Timezone),
	)
	if cfg.Location() == time.UTC && cfg.Timezone != "UTC" {
		logger.Warn("unknown timezone, due dates use UTC", zap.String("timezone", cfg.Timezone))
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "boletopix")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Stores ---
	be, err := openBackend(cfg, logger, seed)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.StoreBackend, err)
	}
	defer be.close()
	logger.Info("store backend ready", zap.String("backend", be.name))

	health := []handler.HealthCheck{{Name: be.name, Pinger: be.pinger}}

	var active port.ActiveCodeCache
	if cfg.ReuseActiveCode {
		codes, name := openActiveCodes(cfg)
		active = codes
		health = append(health, handler.HealthCheck{Name: name, Pinger: codes})
		logger.Info("active code reuse enabled", zap.String("cache", name))
	}

	// --- Services ---
	var sink port.MonitoringSink = ledger.LogSink{Logger: logger.Named("monitoring")}
	if cfg.AlertWebhookURL != "" {
		alerts := client.NewAlertClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.AlertWebhookURL,
			resilience.NewCircuitBreaker("alert-webhook"),
			resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff},
			logger.Named("alerts"),
		)
		defer alerts.Wait()
		sink = alerts
	}
	recorder := ledger.NewRecorder(be.ledger, sink, cfg.LedgerTimeout, metrics, logger)
	pixSvc := service.NewPixChargeService(
		be.boletos,
		be.merchants,
		recorder,
		active,
		service.PixChargeConfig{
			StoreTimeout:     cfg.StoreTimeout,
			CodeTTL:          cfg.PixCodeTTL,
			ReuseActiveCode:  cfg.ReuseActiveCode,
			QRCodeSize:       cfg.QRCodeSize,
			MerchantCacheTTL: cfg.MerchantCacheTTL,
			Location:         cfg.Location(),
		},
		metrics,
		logger,
	).WithBulkhead(resilience.NewBulkhead(cfg.MaxConcurrency))

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Pix:     pixSvc,
		Preview: service.NewInstallmentPreviewService(metrics, logger).WithLocation(cfg.Location()),
		Tokens:  service.NewTokenService(cfg.JWTSecret, time.Hour),
		QR:      qrimage.NewRenderer("M"),
		Health:  health,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
