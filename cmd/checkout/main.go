package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/service"
)

func main() {
	cfg := config.Load()
	logging.SetLevel(cfg.LogLevel)

	logger := logging.NewLogger("main")
	logging.Infof("Starting checkout-service on port %d", cfg.Server.Port)

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	store, err := initStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", logging.Fields{"error": err.Error()})
	}
	defer store.Close()

	m := metrics.NewDefault()

	rdb := repository.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	var books repository.BookCatalog = store.Repos().Books
	bookCache := repository.NewRedisBookCache(rdb, cfg.Redis.TTL)
	if cfg.Features.EnableBookCaching {
		books = repository.NewCachedBookCatalog(books, bookCache)
	}

	var orderCache repository.OrderCache
	if cfg.Features.EnableOrderCaching {
		orderCache = repository.NewRedisOrderCache(rdb, cfg.Redis.TTL)
	}

	var publisher service.EventPublisher
	if cfg.Features.EnableCheckoutEvents {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	var gateway clients.PaymentGateway = clients.NewSimulatedPaymentGateway(cfg.Payment.DeclineRate, cfg.Payment.Latency)
	if cfg.Payment.ProviderURL != "" {
		logger.Info("Using external payment provider", logging.Fields{"url": cfg.Payment.ProviderURL})
		gateway = clients.NewHTTPPaymentGateway(cfg.Payment)
	}
	paymentService := service.NewPaymentService(gateway, cfg.Payment.Timeout, m)

	cartService := service.NewCartService(store, books)
	addressService := service.NewAddressService(store)
	checkoutService := service.NewCheckoutService(store, paymentService, publisher, orderCache, m, cfg)
	orderService := service.NewOrderService(store, orderCache, cfg)

	h := handlers.NewHandlers(cartService, addressService, checkoutService, orderService, cfg)
	h.AddReadinessCheck("database", store.Ping)
	if cfg.Features.EnableBookCaching || cfg.Features.EnableOrderCaching {
		h.AddReadinessCheck("redis", redisCheck(rdb))
	}

	srv := server.New(h, cfg, m)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":            cfg.Server.Port,
			"storage_driver":  cfg.Database.Driver,
			"checkout_events": cfg.Features.EnableCheckoutEvents,
			"book_caching":    cfg.Features.EnableBookCaching,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	var consumer *events.CatalogConsumer
	if cfg.Features.EnableCatalogConsumer && cfg.Features.EnableBookCaching {
		consumer = events.NewCatalogConsumer(cfg.Kafka, bookCache)
		go func() {
			if err := consumer.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Catalog consumer failed", logging.Fields{"error": err.Error()})
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if consumer != nil {
		consumer.Stop()
	}
	stopConsumer()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	logger.Info("Server exited")
}

func initStore(cfg *config.Config, logger *logging.Logger) (repository.Store, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory storage; data is lost on restart")
		store := repository.NewMemoryStore()
		seedDevCatalog(store)
		return store, nil
	}

	db, err := repository.OpenPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(context.Background(), db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("Database schema applied")
	}

	logger.Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})
	return repository.NewPostgresStore(db), nil
}

// seedDevCatalog gives the in-memory store a few books to check out.
func seedDevCatalog(store *repository.MemoryStore) {
	store.SeedBook(models.Book{ID: 1, Title: "The Go Programming Language", Author: "Alan Donovan", Price: decimal.RequireFromString("39.99")})
	store.SeedBook(models.Book{ID: 2, Title: "Concurrency in Go", Author: "Katherine Cox-Buday", Price: decimal.RequireFromString("29.99")})
	store.SeedBook(models.Book{ID: 3, Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", Price: decimal.RequireFromString("44.50")})
}

func redisCheck(rdb *redis.Client) handlers.ReadinessCheck {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
