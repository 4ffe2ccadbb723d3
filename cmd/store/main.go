package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/clock"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/ids"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(cfg.Env); err != nil {
		panic(err)
	}
	defer logging.Sync()

	logger := logging.New("store-service")
	logger.Info("Starting store-service", logging.Fields{"port": cfg.Server.Port, "env": cfg.Env})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	pg := repository.NewPostgres(db)
	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", logging.Fields{"error": err.Error()})
		}
	}

	redisClient, err := repository.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", logging.Fields{"error": err.Error()})
	}
	defer redisClient.Close()

	mongoClient, mongoDB, err := repository.ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", logging.Fields{"error": err.Error()})
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("Failed to disconnect MongoDB", logging.Fields{"error": err.Error()})
		}
	}()

	reviewStore := repository.NewMongoReviewStore(mongoDB)
	if err := reviewStore.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to create review indexes", logging.Fields{"error": err.Error()})
	}

	cartStore := repository.NewRedisCartStore(redisClient, cfg.Redis.CartTTL)
	orderCache := repository.NewRedisOrderCache(redisClient, cfg.Redis.OrderTTL)

	notifier, err := clients.NewNotifier(ctx, cfg.Notification)
	if err != nil {
		logger.Fatal("Failed to create notifier", logging.Fields{
			"driver": cfg.Notification.Driver,
			"error":  err.Error(),
		})
	}
	defer notifier.Close()

	var eventPublisher service.OrderEventPublisher
	if cfg.Features.EnableOrderEvents {
		publisher := events.NewKafkaPublisher(cfg.Kafka)
		defer publisher.Close()
		eventPublisher = publisher
	}

	clk := clock.System{}
	gen := ids.UUIDGenerator{}

	catalogService := service.NewCatalogService(pg.Products(), pg.Categories(), reviewStore, clk, gen)
	cartService := service.NewCartService(cartStore, pg.Products(), clk)
	reviewService := service.NewReviewService(reviewStore, pg.Products(), clk, gen)
	orderService := service.NewOrderService(pg, pg.Orders(), cartStore, orderCache, notifier, eventPublisher, clk, gen, cfg)

	h := handlers.NewHandlers(catalogService, cartService, orderService, reviewService,
		handlers.ReadinessCheck{Name: "postgres", Ping: pg.Ping},
		handlers.ReadinessCheck{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		handlers.ReadinessCheck{Name: "mongo", Ping: func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }},
	)

	srv := server.New(h, cfg)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	var consumer *events.KafkaConsumer
	if cfg.Features.EnablePaymentConsumer {
		consumer = events.NewKafkaConsumer(cfg.Kafka, orderService)
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Payment consumer failed", logging.Fields{"error": err.Error()})
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if consumer != nil {
		consumer.Stop()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	orderService.Wait()
	logger.Info("Server exited")
}

func initDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logging.New("database").Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})
	return db, nil
}
