// Package seed fills an empty catalog with a starter set of products.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/grocery_shop/internal/repo"
	"github.com/Skotchmaster/grocery_shop/internal/service"
	"github.com/Skotchmaster/grocery_shop/internal/transport"
	"github.com/Skotchmaster/grocery_shop/pkg/logging"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Products is the starter catalog. Stock is left unset so the catalog
// default applies.
var Products = []transport.CreateProductRequest{
	{Name: "Apple", Description: "Fresh red apples", Category: "Fruits", Price: decimal.NewFromInt(50)},
	{Name: "Banana", Description: "Ripe bananas", Category: "Fruits", Price: decimal.NewFromInt(30)},
	{Name: "Milk", Description: "1L Fresh milk", Category: "Dairy", Price: decimal.NewFromInt(25)},
}

// Run creates every product in items whose name is not in the catalog yet
// and returns how many were created. Running it twice is harmless.
func Run(ctx context.Context, r *repo.GormRepo, catalog *service.CatalogService, items []transport.CreateProductRequest) (int, error) {
	l := logging.FromContext(ctx).With("svc", "seed")

	created := 0
	for _, item := range items {
		_, err := r.FindProductByName(ctx, item.Name)
		if err == nil {
			l.Debug("seed_skip", "name", item.Name, "reason", "exists")
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, fmt.Errorf("seed lookup %q: %w", item.Name, err)
		}

		if _, err := catalog.Create(ctx, item); err != nil {
			return created, fmt.Errorf("seed %q: %w", item.Name, err)
		}
		created++
	}

	l.Info("seed_done", "created", created, "total", len(items))
	return created, nil
}
