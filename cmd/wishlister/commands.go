package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/Kerhoff/wishlister/internal/api"
	"github.com/Kerhoff/wishlister/internal/audit"
	"github.com/Kerhoff/wishlister/internal/config"
	"github.com/Kerhoff/wishlister/internal/enrich"
	"github.com/Kerhoff/wishlister/internal/importer"
	"github.com/Kerhoff/wishlister/internal/metrics"
	"github.com/Kerhoff/wishlister/internal/service"
	"github.com/Kerhoff/wishlister/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP server and the metrics listener",
		Action: serve,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply or roll back database migrations",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDatabase(func(cfg *config.Config, l *logrus.Logger, db *config.Database) error {
						return db.Migrate()
					})
				},
			},
			{
				Name:  "down",
				Usage: "Roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "steps",
						Usage: "Number of migrations to roll back",
						Value: 1,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDatabase(func(cfg *config.Config, l *logrus.Logger, db *config.Database) error {
						return db.Rollback(int(cmd.Int("steps")))
					})
				},
			},
		},
	}
}

func backfillCommand() *cli.Command {
	return &cli.Command{
		Name:  "backfill-item-slugs",
		Usage: "Assign slugs to items that have none",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withDatabase(func(cfg *config.Config, l *logrus.Logger, db *config.Database) error {
				svc := service.New(l, service.NewSQLRepositories(db.DB), audit.Multi{}, nil, nil)
				n, err := svc.BackfillItemSlugs(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Updated %d items\n", n)
				return nil
			})
		},
	}
}

// withDatabase loads the configuration and opens the database for fn
func withDatabase(fn func(cfg *config.Config, l *logrus.Logger, db *config.Database) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	l := logger.New(cfg.LogLevel, cfg.LogFormat)

	db, err := config.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL, l)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return fn(cfg, l, db)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withDatabase(func(cfg *config.Config, l *logrus.Logger, db *config.Database) error {
		l.Info("Starting wishlister...")

		if err := db.Migrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		auditLog, closer, err := audit.Open(cfg.AuditLogPath)
		if err != nil {
			return err
		}
		defer closer.Close()

		m := metrics.New()
		enricher := enrich.New(l, auditLog, enrich.WithTimeout(cfg.EnrichTimeout), enrich.WithMetrics(m))

		svc := service.New(l, service.NewSQLRepositories(db.DB), auditLog, m, enricher)

		jobs, err := newJobStore(ctx, cfg, l)
		if err != nil {
			return err
		}
		defer closeJobStore(l, jobs)
		svc.AttachImporter(jobs, importer.Options{
			Workers:   cfg.EnrichWorkers,
			RateLimit: cfg.EnrichRate,
			RowCap:    cfg.ImportRowCap,
			MaxBytes:  cfg.CSVMaxBytes,
		})
		if sweeper, ok := jobs.(service.Sweeper); ok {
			go svc.StartJanitor(ctx, sweeper, service.DefaultJanitorInterval)
		}

		apiServer := api.NewServer(svc, l, api.Options{
			SessionSecret:      cfg.SessionSecret,
			SessionSecure:      cfg.SessionSecure,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			Metrics:            m,
		})
		httpServer := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		metricsServer := &http.Server{
			Addr:              ":" + cfg.PrometheusPort,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serveAsync(l, "HTTP server", httpServer, stop)
		serveAsync(l, "Metrics server", metricsServer, stop)

		l.Info("wishlister started successfully")

		<-ctx.Done()

		l.Info("Shutting down HTTP servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			l.WithError(err).Error("HTTP server shutdown failed")
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			l.WithError(err).Error("Metrics server shutdown failed")
		}

		l.Info("wishlister stopped")
		return nil
	})
}

// serveAsync runs srv in the background and cancels the process context if
// it fails to start
func serveAsync(l *logrus.Logger, name string, srv *http.Server, stop context.CancelFunc) {
	go func() {
		l.Infof("%s listening on %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("%s error: %v", name, err)
			stop()
		}
	}()
}

// newJobStore picks the import job store configured by JOB_STORE
func newJobStore(ctx context.Context, cfg *config.Config, l *logrus.Logger) (importer.JobStore, error) {
	switch cfg.JobStore {
	case "redis":
		store := importer.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), cfg.JobTTL)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		l.Infof("Using redis import job store at %s", cfg.RedisAddr)
		return store, nil
	default:
		l.Info("Using in-memory import job store")
		return importer.NewMemoryStore(cfg.JobTTL), nil
	}
}

// closeJobStore releases stores that hold a connection, such as Redis
func closeJobStore(l *logrus.Logger, jobs importer.JobStore) {
	c, ok := jobs.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		l.WithError(err).Error("Failed to close import job store")
		return
	}
	l.Info("Import job store closed")
}
