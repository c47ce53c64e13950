// Command coverpool runs the pool-funded coverage engine: the HTTP/JSON
// API, the Prometheus metrics listener, and the optional audit-log and
// event-stream workers.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CoverPool/internal/audit"
	"CoverPool/internal/authz"
	"CoverPool/internal/clock"
	"CoverPool/internal/engine"
	"CoverPool/internal/event"
	"CoverPool/internal/observability"
	"CoverPool/internal/publish"
	"CoverPool/internal/rail"
	"CoverPool/internal/server"
	"CoverPool/internal/state"
)

// Config holds all application configuration, loaded from environment
// variables.
type Config struct {
	// HTTP/Metrics
	HTTPAddr    string
	MetricsAddr string

	// Payment rail
	RailBaseURL string
	RailTimeout time.Duration

	// Administrators (comma-separated UUIDs)
	AdminIDs []uuid.UUID

	// Engine constants
	CoveragePeriod time.Duration
	ReviewPeriod   time.Duration
	InitialParams  state.CoverageParams

	// Audit log (disabled when DSN empty)
	PostgresDSN   string
	MigrationsDir string

	// Event stream (disabled when URL empty)
	NATSURL string

	// Sink channels
	AuditChanSize   int
	PublishChanSize int
	AuditBatchSize  int
	AuditFlushEvery time.Duration
}

func LoadConfig() (Config, error) {
	cfg := Config{
		HTTPAddr:        envOrDefault("COVER_HTTP_ADDR", ":8080"),
		MetricsAddr:     envOrDefault("COVER_METRICS_ADDR", ":9091"),
		RailBaseURL:     envOrDefault("COVER_RAIL_URL", "http://localhost:8090"),
		RailTimeout:     envDurationOrDefault("COVER_RAIL_TIMEOUT", 10*time.Second),
		CoveragePeriod:  envDurationOrDefault("COVER_COVERAGE_PERIOD", 365*24*time.Hour),
		ReviewPeriod:    envDurationOrDefault("COVER_REVIEW_PERIOD", 7*24*time.Hour),
		PostgresDSN:     os.Getenv("COVER_POSTGRES_DSN"),
		MigrationsDir:   envOrDefault("COVER_MIGRATIONS_DIR", "migrations"),
		NATSURL:         os.Getenv("COVER_NATS_URL"),
		AuditChanSize:   envIntOrDefault("COVER_AUDIT_CHAN_SIZE", 1024),
		PublishChanSize: envIntOrDefault("COVER_PUBLISH_CHAN_SIZE", 2048),
		AuditBatchSize:  envIntOrDefault("COVER_AUDIT_BATCH_SIZE", 50),
		AuditFlushEvery: envDurationOrDefault("COVER_AUDIT_FLUSH_TIMEOUT", 100*time.Millisecond),
		InitialParams: state.CoverageParams{
			ClaimProcessingFee: envInt64OrDefault("COVER_CLAIM_FEE", state.DefaultCoverageParams.ClaimProcessingFee),
			MinCoverageAmount:  envInt64OrDefault("COVER_MIN_COVERAGE", state.DefaultCoverageParams.MinCoverageAmount),
			MaxCoverageAmount:  envInt64OrDefault("COVER_MAX_COVERAGE", state.DefaultCoverageParams.MaxCoverageAmount),
		},
	}

	for _, raw := range strings.Split(os.Getenv("COVER_ADMIN_IDS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.AdminIDs = append(cfg.AdminIDs, id)
	}

	return cfg, nil
}

func main() {
	log := observability.NewLogger("coverpool")
	log.Info().Msg("CoverPool starting")

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if len(cfg.AdminIDs) == 0 {
		log.Warn().Msg("COVER_ADMIN_IDS empty: all administrative operations will be rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	var workers sync.WaitGroup
	var sinks event.FanOut

	// --- Audit log (optional) ---
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres open")
		}
		defer db.Close()

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping")
		}
		log.Info().Msg("postgres connected")

		migrator := audit.NewMigrator(db, cfg.MigrationsDir, observability.NewLogger("migrator"))
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("run migrations")
		}

		auditChan := make(chan event.Envelope, cfg.AuditChanSize)
		sinks = append(sinks, event.NewChannelSink(auditChan, func() {
			metrics.SinkDrops.WithLabelValues("audit").Inc()
		}))

		worker := audit.NewWorker(db, auditChan, cfg.AuditBatchSize, cfg.AuditFlushEvery,
			metrics, observability.NewLogger("audit"))
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker.Run(ctx)
		}()
	} else {
		log.Warn().Msg("COVER_POSTGRES_DSN empty: audit log disabled")
	}

	// --- Event stream (optional) ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Drain()

		js, err := jetstream.New(nc)
		if err != nil {
			log.Fatal().Err(err).Msg("jetstream init")
		}
		if err := publish.EnsureOutboundStream(ctx, js); err != nil {
			log.Fatal().Err(err).Msg("ensure outbound stream")
		}
		log.Info().Msg("nats connected")

		publishChan := make(chan event.Envelope, cfg.PublishChanSize)
		sinks = append(sinks, event.NewChannelSink(publishChan, func() {
			metrics.SinkDrops.WithLabelValues("publish").Inc()
		}))

		publisher := publish.NewOutboundPublisher(js, publishChan, observability.NewLogger("publisher"))
		workers.Add(1)
		go func() {
			defer workers.Done()
			publisher.Run(ctx)
		}()
	} else {
		log.Warn().Msg("COVER_NATS_URL empty: event stream disabled")
	}

	// --- Engine ---
	eng, err := engine.New(engine.Config{
		CoveragePeriod: cfg.CoveragePeriod,
		ReviewPeriod:   cfg.ReviewPeriod,
		InitialParams:  cfg.InitialParams,
	}, engine.Deps{
		Clock:      clock.NewSystem(),
		Rail:       rail.NewHTTPRail(cfg.RailBaseURL, cfg.RailTimeout),
		Authorizer: authz.NewStatic(cfg.AdminIDs...),
		Sink:       sinks,
		Metrics:    metrics,
		Logger:     observability.NewLogger("engine"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("engine init")
	}

	// --- Metrics listener ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server")
		}
	}()

	// --- API server ---
	srv := server.New(eng, health, metrics, observability.NewLogger("http"))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx, cfg.HTTPAddr)
	}()

	health.SetReady(true)
	log.Info().Msg("CoverPool ready")

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("http server exited")
		}
	}

	health.SetReady(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	workers.Wait()
	log.Info().Msg("CoverPool stopped")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64OrDefault(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
