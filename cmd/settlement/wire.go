package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/settlement-service/internal/address"
	"github.com/fjod/go_cart/settlement-service/internal/cart"
	"github.com/fjod/go_cart/settlement-service/internal/config"
	"github.com/fjod/go_cart/settlement-service/internal/gateway"
	"github.com/fjod/go_cart/settlement-service/internal/lock"
	"github.com/fjod/go_cart/settlement-service/internal/pricing"
	"github.com/fjod/go_cart/settlement-service/internal/publisher"
	"github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/fjod/go_cart/settlement-service/internal/service"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// app holds every long-lived dependency of the service.
type app struct {
	cfg     *config.Config
	repo    *repository.Repository
	mongoDB *mongo.Database
	redis   *redis.Client
	carts   *cart.Store
	calc    *pricing.Calculator
	stripe  *gateway.Stripe
	service *service.SettlementService
	poller  *publisher.OutboxPoller
}

func openRepository(cfg *config.Config) (*repository.Repository, error) {
	creds := cfg.Credentials()
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repo.RunMigrations(creds); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Default().Info("database migrations completed")
	return repo, nil
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.Default()
	a := &app{cfg: cfg}

	repo, err := openRepository(cfg)
	if err != nil {
		return nil, err
	}
	a.repo = repo

	a.mongoDB, err = cart.ConnectMongoDB(ctx, cfg.Mongo())
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	cartRepo := cart.NewMongoRepository(a.mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		log.Warn("failed to create cart indexes", "error", err)
	}
	log.Info("connected to mongodb", "uri", cfg.MongoURI, "db", cfg.MongoDB)

	a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		// The cache and the attempt lock both degrade gracefully without Redis.
		log.Warn("redis unavailable at startup", "addr", cfg.RedisAddr, "error", err)
	}
	a.carts = cart.NewStore(cartRepo, cart.NewRedisCache(a.redis, cfg.CartCacheTTL), cfg.Currency)

	table, err := address.LoadTable(cfg.CountryTablePath)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	shipping, err := cfg.Shipping()
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	tax, err := cfg.Tax()
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.calc, err = pricing.NewCalculator(shipping, tax)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY is not set, gateway calls will be rejected")
	}
	a.stripe = gateway.NewStripe(gateway.Config{
		SecretKey:         cfg.StripeSecretKey,
		Timeout:           cfg.StripeTimeout,
		BackendURL:        cfg.StripeAPIURL,
		MaxNetworkRetries: cfg.StripeMaxRetries,
	})

	a.service = service.NewSettlementService(service.Dependencies{
		Sessions:     repo,
		Orders:       repo,
		Carts:        a.carts,
		Addresses:    address.NewNormalizer(table),
		Calculator:   a.calc,
		Issuer:       a.stripe,
		Confirmer:    a.stripe,
		Locker:       lock.NewRedisLocker(a.redis, cfg.LockTTL),
		StoreTimeout: cfg.StoreTimeout,
	})

	a.poller = publisher.NewOutboxPoller(repo, a.service, publisher.Config{
		Topic:        cfg.KafkaTopic,
		EventTick:    cfg.OutboxTick,
		RecoveryTick: cfg.RecoveryTick,
		MinAge:       cfg.RecoveryAge,
	}, cfg.KafkaBrokers...)

	return a, nil
}

func (a *app) close(ctx context.Context) {
	var errs []error
	if a.poller != nil {
		errs = append(errs, a.poller.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.mongoDB != nil {
		errs = append(errs, a.mongoDB.Client().Disconnect(ctx))
	}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logger.Default().Warn("error while closing dependencies", "error", err)
	}
}
