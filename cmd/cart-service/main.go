package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/catalog"
	"github.com/fjod/go_cart/internal/config"
	"github.com/fjod/go_cart/internal/health"
	h "github.com/fjod/go_cart/internal/http"
	"github.com/fjod/go_cart/internal/poller"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/fjod/go_cart/internal/service"
	"github.com/fjod/go_cart/pkg/circuitbreaker"
	"github.com/fjod/go_cart/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cart-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.App.Name, logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx := context.Background()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	repo, closeRepo, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeRepo)

	products, checks, closeCatalog, err := openCatalog(cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeCatalog)

	var cartCache cache.CartCache = cache.NopCache{}
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("redis ping succeeded", zap.String("addr", cfg.Redis.Addr))
		cartCache = cache.NewRedisCache(redisClient)
		checks = append(checks, health.Check{Name: "cache", Pinger: cartCache})
	}

	svc := service.NewCartService(repo, cartCache, products, log.Named("cart"))
	closers = append(closers, svc.Close)

	monitor := health.NewMonitor(cfg.GRPC.HealthInterval, log,
		append([]health.Check{{Name: "store", Pinger: repo}}, checks...)...)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(runCtx)
	}()

	lis, err := net.Listen("tcp", ":"+cfg.GRPC.HealthPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	grpcServer := health.NewGRPCServer(monitor)
	go func() {
		log.Info("gRPC health service listening", zap.String("port", cfg.GRPC.HealthPort))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	if cfg.Kafka.Enabled {
		p := poller.NewPoller(svc, poller.NewKafkaReader(poller.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}), log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.Close()
			p.Run(runCtx)
		}()
		log.Info("checkout poller started", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	srv := &http.Server{
		Addr: ":" + cfg.App.Port,
		Handler: h.NewRouter(svc, products, monitor, log, h.RouterConfig{
			RequestTimeout: cfg.HTTP.RequestTimeout,
			MaxBodySize:    cfg.HTTP.MaxBodySize,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("cart service starting", zap.String("port", cfg.App.Port),
			zap.String("store", cfg.Store.Driver), zap.String("catalog", cfg.Catalog.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err = <-serveErr:
		log.Error("server error", zap.Error(err))
	}

	log.Info("shutting down cart service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if e2 := srv.Shutdown(shutdownCtx); e2 != nil {
		log.Error("server forced to shutdown", zap.Error(e2))
	}
	stop()
	grpcServer.GracefulStop()
	wg.Wait()

	log.Info("cart service stopped")
	return err
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.CartRepository, func(), error) {
	switch cfg.Store.Driver {
	case "mongo":
		db, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = db.Client().Disconnect(context.Background()) }

		repo := repository.NewMongoRepository(db)
		if err := repository.EnsureIndexes(ctx, repo); err != nil {
			closeFn()
			return nil, nil, err
		}
		log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))
		return repo, closeFn, nil

	case "postgres":
		repo, err := repository.NewPostgresRepository(&repository.Credentials{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := repo.RunMigrations(); err != nil {
			repo.Close()
			return nil, nil, err
		}
		log.Info("connected to PostgreSQL", zap.String("host", cfg.Postgres.Host), zap.String("database", cfg.Postgres.DBName))
		return repo, func() { repo.Close() }, nil

	default:
		log.Info("using in-memory cart store")
		return repository.NewMemoryStore(), func() {}, nil
	}
}

func openCatalog(cfg *config.Config, log *zap.Logger) (catalog.Catalog, []health.Check, func(), error) {
	var (
		base   catalog.Catalog
		checks []health.Check
		closer = func() {}
	)

	switch cfg.Catalog.Driver {
	case "sqlite":
		c, err := catalog.NewSQLiteCatalog(cfg.Catalog.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := c.RunMigrations(); err != nil {
			c.Close()
			return nil, nil, nil, err
		}
		base, closer = c, func() { c.Close() }
		checks = append(checks, health.Check{Name: "catalog", Pinger: c})
	default:
		base = catalog.NewSeededMemoryCatalog()
	}

	guarded := catalog.NewBreakerCatalog(base, circuitbreaker.Settings{
		Name:                "catalog",
		MaxRequests:         cfg.Breaker.MaxRequests,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.Timeout,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
	}, log)
	return guarded, checks, closer, nil
}
