package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	verification "github.com/goliatone/go-verification"
	verificationprometheus "github.com/goliatone/go-verification/adapters/prometheus"
	"github.com/goliatone/go-verification/core"
	verificationmigrations "github.com/goliatone/go-verification/migrations"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// main runs the monitoring scheduler against Postgres and serves the
// Prometheus registry. Webhook intake lives in the host application.
func main() {
	env, err := loadEnv(context.Background())
	if err != nil {
		newLogger("info", os.Stdout).Fatal("verification monitor config", "error", err)
	}
	logger := newLogger(env.settings.LogLevel, os.Stdout)
	if err := run(logger, env); err != nil {
		logger.Fatal("verification monitor stopped", "error", err)
	}
}

func run(logger *glog.BaseLogger, env *envConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := openPostgres(ctx, env.settings.DatabaseDSN)
	if err != nil {
		return err
	}
	defer client.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := verification.New(verification.Config{},
		verification.WithLoggerProvider(logger),
		verification.WithLogger(logger),
		verification.WithConfigProvider(core.NewCfgxConfigProvider(env)),
		verification.WithMetricsRecorder(verificationprometheus.NewRecorder(registry)),
		verification.WithPersistenceClient(client),
		verification.WithCallbackURL(env.settings.CallbackURL),
	)
	if err != nil {
		return err
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              env.settings.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
			stop()
		}
	}()

	if _, err := svc.Scheduler().RunOnce(ctx); err != nil {
		logger.Warn("initial monitoring check failed", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down verification monitor")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type pgConfig struct {
	dsn string
}

func (pgConfig) GetDebug() bool                { return false }
func (pgConfig) GetDriver() string             { return "postgres" }
func (c pgConfig) GetServer() string           { return c.dsn }
func (pgConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (pgConfig) GetOtelIdentifier() string     { return "verification-monitor" }

func openPostgres(ctx context.Context, dsn string) (*persistence.Client, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, core.WrapError(err, core.KindConfiguration, "verification-monitor: open postgres")
	}
	client, err := persistence.New(pgConfig{dsn: dsn}, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, core.WrapError(err, core.KindPersistence, "verification-monitor: persistence client")
	}

	if err := verificationmigrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, verificationmigrations.DialectPostgres); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, core.WrapError(err, core.KindPersistence, "verification-monitor: migrate")
	}
	return client, nil
}
