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

	"github.com/fjod/go_food/internal/auth"
	"github.com/fjod/go_food/internal/cache"
	"github.com/fjod/go_food/internal/config"
	h "github.com/fjod/go_food/internal/http"
	"github.com/fjod/go_food/internal/publisher"
	"github.com/fjod/go_food/internal/repository"
	"github.com/fjod/go_food/internal/service"
	"github.com/fjod/go_food/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName = "food-api"
	version     = "1.0.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
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

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	db, err := repository.ConnectMongoDB(connectCtx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Client().Disconnect(context.Background()); err != nil {
			logger.Error("failed to disconnect from MongoDB", "error", err)
		}
	}()
	if err := repository.EnsureIndexes(connectCtx, db); err != nil {
		return err
	}
	logger.Info("connected to MongoDB", "database", cfg.MongoDBName)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(connectCtx).Err(); err != nil {
		// The cache is optional; reads fall back to MongoDB.
		logger.Warn("redis unavailable, cart cache degraded", "addr", cfg.RedisAddr, "error", err)
	}

	settings := service.Settings{
		TaxRate:            cfg.TaxRate,
		CancellationWindow: cfg.CancellationWindow,
		CheckoutTTL:        cfg.CheckoutTTL,
		DefaultPrepTime:    cfg.DefaultPrepTime,
	}

	carts := repository.NewCartRepository(db)
	orders := repository.NewOrderRepository(db)
	outbox := repository.NewOutboxRepository(db)
	catalog := repository.NewCatalogRepository(db)
	tx := repository.NewTransactor(db)
	cartCache := cache.NewRedisCache(redisClient)
	delivery := service.NewStoreDeliveryRules(catalog, cfg.DefaultPrepTime)

	cartService := service.NewCartService(carts, catalog, cartCache, delivery, settings, logger, metrics)
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Carts:    carts,
		Sessions: repository.NewCheckoutRepository(db),
		Orders:   orders,
		History:  orders,
		Outbox:   outbox,
		Catalog:  catalog,
		Tx:       tx,
		Cache:    cartCache,
	}, delivery, settings, logger, metrics)
	orderService := service.NewOrderService(service.OrderDeps{
		Orders:  orders,
		History: orders,
		Outbox:  outbox,
		Catalog: catalog,
		Tx:      tx,
	}, cartService, settings, logger, metrics)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	authService := auth.NewService(repository.NewUserRepository(db), issuer, logger)

	if cfg.PaymentSecret == "" {
		logger.Warn("PAYMENT_WEBHOOK_SECRET is not set, payment callbacks will be rejected")
	}

	router := h.NewRouter(h.RouterConfig{
		ServiceName:    serviceName,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
		PaymentSecret:  cfg.PaymentSecret,
		Tokens:         issuer,
		Limiter:        h.NewUserRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Metrics:        metricsHandler,
		Cart:           h.NewCartHandler(cartService, cfg.RequestTimeout, logger),
		Checkout:       h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout, logger),
		Orders:         h.NewOrdersHandler(orderService, cfg.RequestTimeout, logger),
		Auth:           h.NewAuthHandler(authService, cfg.RequestTimeout, logger),
		Payments:       h.NewPaymentHandler(orderService, cfg.RequestTimeout, logger),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	writer := publisher.NewKafkaWriter(cfg.KafkaBrokers, cfg.OrderEventsTopic)
	poller := publisher.NewOutboxPoller(outbox, writer, cfg.OrderEventsTopic, logger, metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if werr := writer.Close(); werr != nil {
		logger.Error("failed to close kafka writer", "error", werr)
	}
	if serr := shutdownMeter(shutdownCtx); serr != nil {
		logger.Error("failed to shut down meter provider", "error", serr)
	}
	if serr := shutdownTracer(shutdownCtx); serr != nil {
		logger.Error("failed to shut down tracer provider", "error", serr)
	}
	logger.Info("api stopped")
	return err
}
