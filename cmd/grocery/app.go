package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Skotchmaster/grocery_shop/internal/cache"
	grocerycfg "github.com/Skotchmaster/grocery_shop/internal/config"
	"github.com/Skotchmaster/grocery_shop/internal/repo"
	"github.com/Skotchmaster/grocery_shop/internal/search"
	"github.com/Skotchmaster/grocery_shop/internal/service"
	pkgdb "github.com/Skotchmaster/grocery_shop/pkg/db"
	"github.com/Skotchmaster/grocery_shop/pkg/events"
	"github.com/Skotchmaster/grocery_shop/pkg/logging"
)

// app holds everything a command needs once config, logging and the
// database are up. Optional backends stay nil when not configured.
type app struct {
	cfg     grocerycfg.ServiceConfig
	logger  *slog.Logger
	db      *gorm.DB
	repo    *repo.GormRepo
	events  events.Publisher
	elastic *search.Elastic
	redis   *redis.Client

	catalog  *service.CatalogService
	cart     *service.CartService
	checkout *service.CheckoutService
	orders   *service.OrderService
}

func loadEnv() {
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("warning: could not load %s: %v", envFile, err)
	}
}

// boot wires the application. strict enforces the settings needed to serve
// traffic; maintenance commands only need a database.
func boot(ctx context.Context, strict bool) (*app, error) {
	loadEnv()

	var cfg grocerycfg.ServiceConfig
	if strict {
		cfg = grocerycfg.Load()
	} else {
		cfg = grocerycfg.LoadOptional()
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFile).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	ctx = logging.IntoContext(ctx, logger)

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := pkgdb.Open(openCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		repo:   &repo.GormRepo{DB: db},
		events: events.Nop{},
	}

	if len(cfg.KafkaBrokers) > 0 {
		a.events = events.NewKafkaPublisher(cfg.KafkaBrokers)
		logger.Info("kafka_enabled", "brokers", cfg.KafkaBrokers)
	}

	if cfg.ESURL != "" {
		client, err := search.NewClient(ctx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Warn("elasticsearch_disabled", "reason", "cannot connect", "error", err)
		} else {
			a.elastic = &search.Elastic{Client: client, Index: cfg.ESIndex}
		}
	}

	var idem service.IdempotencyStore
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis_disabled", "reason", "cannot connect", "error", err)
		} else {
			a.redis = rdb
			idem = cache.NewRedisIdempotencyStore(rdb, cfg.IdempotencyTTL)
		}
	}

	a.catalog = &service.CatalogService{Repo: a.repo, Events: a.events}
	if a.elastic != nil {
		a.catalog.Search = a.elastic
		a.catalog.Index = a.elastic
	}
	a.cart = &service.CartService{Repo: a.repo, Events: a.events, DeliveryCharge: cfg.DeliveryCharge}
	a.orders = &service.OrderService{Repo: a.repo, Events: a.events}
	a.checkout = &service.CheckoutService{
		Repo:              a.repo,
		Events:            a.events,
		Idempotency:       idem,
		Orders:            a.orders,
		DeliveryCharge:    cfg.DeliveryCharge,
		FulfillmentWindow: cfg.FulfillmentWindow,
	}

	return a, nil
}

func (a *app) withLogger(ctx context.Context) context.Context {
	return logging.IntoContext(ctx, a.logger)
}

func (a *app) close() {
	if err := a.events.Close(); err != nil {
		a.logger.Warn("events_close_failed", "error", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	pkgdb.Close(a.db)
}
