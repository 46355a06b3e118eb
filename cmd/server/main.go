package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"passage/internal/keystore"
	"passage/internal/lifecycle"
	markerhandler "passage/internal/marker/handler"
	markermetrics "passage/internal/marker/metrics"
	"passage/internal/marker/recent"
	"passage/internal/marker/service"
	"passage/internal/marker/store"
	"passage/internal/platform/config"
	"passage/internal/platform/httpserver"
	"passage/internal/platform/logger"
	"passage/internal/platform/metrics"
	redisclient "passage/internal/platform/redis"
	"passage/internal/ratelimit"
	"passage/internal/tools"
	httptransport "passage/internal/transport/http"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/identity"
	"passage/pkg/marker"
	"passage/pkg/platform/audit"
	"passage/pkg/platform/audit/publisher"
	"passage/pkg/platform/audit/publishers/guarded"
	"passage/pkg/platform/audit/publishers/kafka"
	"passage/pkg/platform/audit/publishers/rabbitmq"
	auditmemory "passage/pkg/platform/audit/store/memory"
	auditpostgres "passage/pkg/platform/audit/store/postgres"
	"passage/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

// closer releases a resource at shutdown.
type closer func() error

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn("failed to release resource", "error", err)
			}
		}
	}()

	signer, err := loadIdentity(cfg.Identity, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checks := map[string]httptransport.HealthFunc{}

	var (
		archive    service.Archive = store.NewInMemoryStore()
		auditStore audit.Store     = auditmemory.NewInMemoryStore()
	)
	if cfg.Postgres.DSN != "" {
		db, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		closers = append(closers, db.Close)
		checks["postgres"] = func(r *http.Request) error { return db.PingContext(r.Context()) }

		pgArchive := store.NewPostgresStore(db)
		if err := pgArchive.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate marker archive: %w", err)
		}
		pgAudit := auditpostgres.New(db)
		if err := pgAudit.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate audit store: %w", err)
		}
		archive, auditStore = pgArchive, pgAudit
	}

	var (
		recentLog recent.Log[store.Record] = recent.NewMemory[store.Record](cfg.Protocol.RecentCapacity)
		buckets   ratelimit.Store          = ratelimit.NewInMemoryStore()
	)
	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		closers = append(closers, rc.Close)
		checks["redis"] = func(r *http.Request) error { return rc.Health(r.Context()) }
		recentLog = recent.NewRedis[store.Record](rc.Client, cfg.Redis.Key, recent.WithCapacity(cfg.Protocol.RecentCapacity))
		buckets = ratelimit.NewRedisStore(rc.Client)
	}
	limiter := ratelimit.New(buckets, log,
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		ratelimit.WithLimits(map[ratelimit.Class]ratelimit.Limit{
			ratelimit.ClassSigning: {Requests: cfg.RateLimit.Signing, Window: cfg.RateLimit.Window},
			ratelimit.ClassVerify:  {Requests: cfg.RateLimit.Verify, Window: cfg.RateLimit.Window},
			ratelimit.ClassRead:    {Requests: cfg.RateLimit.Read, Window: cfg.RateLimit.Window},
		}),
	)

	sink, sinkClosers, err := auditSink(ctx, cfg, log)
	closers = append(closers, sinkClosers...)
	if err != nil {
		return err
	}
	pub := publisher.NewPublisher(auditStore,
		publisher.WithSink(sink),
		publisher.WithAsyncBuffer(cfg.Audit.Buffer),
		publisher.WithLogger(log),
	)
	closers = append(closers, pub.Close)

	svc, err := service.New(signer,
		service.WithArchive(archive),
		service.WithRecentLog(recentLog),
		service.WithAuditPublisher(pub),
		service.WithMetrics(markermetrics.New(reg)),
		service.WithLogger(log),
		service.WithDefaultPolicy(cfg.Protocol.DefaultPolicy),
	)
	if err != nil {
		return err
	}

	dispatcher := lifecycle.NewDispatcher(log)
	runHandler, err := lifecycle.NewHandler(signer,
		lifecycle.WithOrigin(cfg.Protocol.Origin),
		lifecycle.WithErrorExitType(cfg.Protocol.ErrorExitType),
		lifecycle.WithArrivalDestination(cfg.Protocol.ArrivalDestination),
		lifecycle.WithCapacity(cfg.Protocol.RecentCapacity),
		lifecycle.WithOnMarker(func(m *marker.ExitMarker) {
			if err := archive.SaveExit(context.WithoutCancel(ctx), m); err != nil {
				log.Warn("failed to archive shutdown marker", "marker_id", m.ID, "error", err)
			}
		}),
		lifecycle.WithLogger(log),
	)
	if err != nil {
		return err
	}
	runHandler.Attach(dispatcher)

	markers := markerhandler.New(svc, tools.NewRegistry(svc), log, metrics.New(reg), cfg.Server.AdminToken,
		markerhandler.WithRateLimiter(limiter))
	router := httptransport.NewRouter(reg, checks, markers)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting passage", "addr", cfg.Server.Addr, "did", signer.DID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	runErr := g.Wait()

	// The process leaving is itself a departure.
	final := lifecycle.Event{Kind: lifecycle.EventComplete, Source: "server"}
	if runErr != nil {
		final = lifecycle.Event{Kind: lifecycle.EventError, Source: "server", Err: runErr}
	}
	dispatcher.Fire(context.WithoutCancel(ctx), final)
	return runErr
}

func loadIdentity(cfg config.IdentityConfig, log *slog.Logger) (*identity.Identity, error) {
	if cfg.KeystorePath == "" {
		id, err := identity.Generate()
		if err != nil {
			return nil, err
		}
		log.Warn("no keystore configured, using an ephemeral identity", "did", id.DID())
		return id, nil
	}
	id, err := keystore.Load(cfg.KeystorePath, cfg.Passphrase())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, fmt.Errorf("keystore %s not found; create it with markerctl keygen: %w", cfg.KeystorePath, err)
		}
		return nil, err
	}
	return id, nil
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// auditSink builds the broker sink. Kafka is primary when configured and
// RabbitMQ takes over while Kafka's breaker is open; either alone is used
// directly.
func auditSink(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Sink, []closer, error) {
	var (
		closers []closer
		primary audit.Sink
		backup  audit.Sink
	)
	if cfg.Kafka.Enabled() {
		k, err := kafka.New(ctx, kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
		}, log)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, func() error { k.Close(); return nil })
		primary = k
	}
	if cfg.RabbitMQ.Enabled() {
		r, err := rabbitmq.New(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue, Durable: true})
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, r.Close)
		backup = r
	}

	switch {
	case primary != nil:
		breaker := circuit.New("audit-kafka", circuit.WithFailureThreshold(cfg.Audit.BreakerThreshold))
		return guarded.New(primary, backup, breaker, log), closers, nil
	case backup != nil:
		return backup, closers, nil
	default:
		return nil, closers, nil
	}
}
