package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	contacthandler "linkage/internal/contact/handler"
	"linkage/internal/contact/publisher"
	"linkage/internal/contact/service"
	"linkage/internal/contact/store"
	"linkage/internal/health"
	"linkage/internal/platform/config"
	"linkage/internal/platform/httpserver"
	"linkage/internal/platform/lock"
	"linkage/internal/platform/logger"
	"linkage/internal/platform/metrics"
	"linkage/internal/platform/middleware"
	"linkage/internal/platform/postgres"
	platformredis "linkage/internal/platform/redis"
)

const (
	retryBaseDelay  = 10 * time.Millisecond
	topicPartitions = 3
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, syncLogs, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = syncLogs() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	srv := httpserver.New(cfg.Server.Addr, app.router)
	log.Info("starting linkage",
		"addr", cfg.Server.Addr,
		"storage", cfg.Storage,
		"lock", cfg.Lock.Backend,
		"events", len(cfg.Kafka.Brokers) > 0,
	)
	return httpserver.Serve(ctx, srv, cfg.Server.ShutdownGrace, log)
}

type app struct {
	router  chi.Router
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires storage, locking, publishing and HTTP routes from cfg.
// Resources opened before a failure are released before returning.
func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	checks := map[string]health.Check{}
	var tx service.StoreTx
	switch cfg.Storage {
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if cfg.Database.AutoMigrate {
			if err := postgres.MigrateUp(db.DB, log); err != nil {
				return nil, err
			}
		}
		pg := store.NewPostgres(db, store.WithTxTimeout(cfg.Tx.Timeout))
		checks["postgres"] = pg.Ping
		tx = pg
	default:
		log.Warn("using in-memory storage; contacts are lost on restart")
		tx = store.NewInMemoryStore()
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		checks["redis"] = redisClient.Health
	}

	m := metrics.New()
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithRetry(cfg.Tx.MaxAttempts, retryBaseDelay),
	}

	switch cfg.Lock.Backend {
	case config.LockLocal:
		opts = append(opts, service.WithLocker(lock.NewLocal()))
	case config.LockRedis:
		opts = append(opts, service.WithLocker(lock.NewRedis(redisClient.Client,
			lock.WithTTL(cfg.Lock.TTL),
			lock.WithWait(cfg.Lock.Wait),
			lock.WithLogger(log),
		)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if cfg.Kafka.CreateTopic {
			if err := publisher.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, topicPartitions, 1); err != nil {
				return nil, fmt.Errorf("ensure topic %s: %w", cfg.Kafka.Topic, err)
			}
		}
		kafka, err := publisher.NewKafka(publisher.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kafka.Close)
		opts = append(opts, service.WithPublisher(publisher.NewGuarded(kafka, log)))
	} else {
		opts = append(opts, service.WithPublisher(publisher.Noop{}))
	}

	svc, err := service.New(tx, opts...)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	contacthandler.New(svc, log, m, contacthandler.WithRequestTimeout(cfg.Server.RequestTimeout)).Register(r)
	health.New(checks).Register(r)
	r.Handle("/metrics", m.Handler())
	a.router = r

	return a, nil
}
