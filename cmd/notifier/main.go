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

	"github.com/fjod/go_food/internal/config"
	"github.com/fjod/go_food/internal/notification"
	"github.com/fjod/go_food/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName = "food-notifier"
	version     = "1.0.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("notifier exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadNotifier()
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger(os.Stdout, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, version)
	if err != nil {
		return err
	}
	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, version)
	if err != nil {
		return err
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return err
	}

	db, err := telemetry.OpenDB("postgres", cfg.Postgres.DSN())
	if err != nil {
		return err
	}
	repo := notification.NewRepository(db)
	defer repo.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		return err
	}
	if err := repo.RunMigrations(cfg.Postgres.MigrationsDirPath); err != nil {
		return err
	}
	logger.Info("database migrations completed")

	reader := notification.NewKafkaReader(cfg.KafkaBrokers, cfg.OrderEventsTopic, cfg.ConsumerGroup)
	consumer := notification.NewConsumer(reader, repo, cfg.OrderEventsTopic, cfg.ConsumerGroup, logger, metrics)
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error("error closing kafka reader", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           notification.NewHandler(repo, 5*time.Second, logger).Router(metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("notifier listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down notifier")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if serr := shutdownMeter(shutdownCtx); serr != nil {
		logger.Error("failed to shut down meter provider", "error", serr)
	}
	if serr := shutdownTracer(shutdownCtx); serr != nil {
		logger.Error("failed to shut down tracer provider", "error", serr)
	}
	logger.Info("notifier stopped")
	return err
}
