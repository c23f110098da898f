package config

import (
	"log"
	"os"
	"time"

	"github.com/Skotchmaster/grocery_shop/pkg/config"
	"github.com/shopspring/decimal"
)

const (
	DefaultDeliveryCharge    = "30"
	DefaultFulfillmentWindow = 2 * time.Hour
	DefaultIdempotencyTTL    = 24 * time.Hour
)

type ServiceConfig struct {
	config.Config

	DeliveryCharge    decimal.Decimal
	FulfillmentWindow time.Duration
	IdempotencyTTL    time.Duration
}

// Load reads the environment and exits the process on missing or malformed
// required settings.
func Load() ServiceConfig {
	cfg := LoadOptional()

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")

	return cfg
}

// LoadOptional is Load without the must-checks, used by commands that do not
// serve traffic.
func LoadOptional() ServiceConfig {
	cfg := config.Load()

	charge, err := decimal.NewFromString(config.EnvDefault("DELIVERY_CHARGE", DefaultDeliveryCharge))
	if err != nil || charge.IsNegative() {
		log.Fatalf("env DELIVERY_CHARGE must be a non-negative decimal, got %q", os.Getenv("DELIVERY_CHARGE"))
	}

	window := config.EnvDurationDefault("FULFILLMENT_WINDOW", DefaultFulfillmentWindow)
	config.MustPositiveDuration(window, "FULFILLMENT_WINDOW")

	return ServiceConfig{
		Config:            cfg,
		DeliveryCharge:    charge,
		FulfillmentWindow: window,
		IdempotencyTTL:    config.EnvDurationDefault("IDEMPOTENCY_TTL", DefaultIdempotencyTTL),
	}
}
