package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/grocery_shop/internal/models"
	"github.com/Skotchmaster/grocery_shop/internal/repo"
	"github.com/Skotchmaster/grocery_shop/internal/search"
	"github.com/Skotchmaster/grocery_shop/internal/transport"
	"github.com/Skotchmaster/grocery_shop/pkg/events"
	"github.com/Skotchmaster/grocery_shop/pkg/logging"
	"github.com/google/uuid"
)

const DefaultStock = 100

type CatalogService struct {
	Repo   *repo.GormRepo
	Events events.Publisher

	// Search and Index are optional. Without Search, queries run as SQL
	// substring matches.
	Search search.Searcher
	Index  search.Indexer
}

func (s *CatalogService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, storageErr(err, "get product")
	}
	return p, nil
}

func (s *CatalogService) ListAvailable(ctx context.Context) ([]models.Product, error) {
	items, err := s.Repo.ListAvailable(ctx)
	if err != nil {
		return nil, storageErr(err, "list available products")
	}
	return items, nil
}

func (s *CatalogService) List(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	total, items, err := s.Repo.ListProducts(ctx, offset, limit)
	if err != nil {
		return 0, nil, storageErr(err, "list products")
	}
	return total, items, nil
}

func (s *CatalogService) SearchProducts(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return 0, nil, fmt.Errorf("query is required: %w", ErrValidation)
	}

	if s.Search != nil {
		total, items, err := s.Search.Search(ctx, q, offset, limit)
		if err == nil {
			return total, items, nil
		}
		logging.FromContext(ctx).Warn("search_backend_failed", "reason", "falling back to sql", "error", err)
	}

	total, items, err := s.Repo.SearchProducts(ctx, q, offset, limit)
	if err != nil {
		return 0, nil, storageErr(err, "search products")
	}
	return total, items, nil
}

func (s *CatalogService) Create(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", ErrValidation)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("price cannot be negative: %w", ErrValidation)
	}
	stock := DefaultStock
	if req.Stock != nil {
		stock = *req.Stock
	}
	if stock < 0 {
		return nil, fmt.Errorf("stock cannot be negative: %w", ErrValidation)
	}

	p := models.Product{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Image:       strings.TrimSpace(req.Image),
		Price:       req.Price.Round(2),
		Stock:       stock,
	}
	if err := s.Repo.CreateProduct(ctx, &p); err != nil {
		return nil, storageErr(err, "create product")
	}

	s.index(ctx, p)
	publish(ctx, s.Events, events.TopicProducts, p.ID.String(), map[string]any{
		"type":      "product_created",
		"productID": p.ID,
		"name":      p.Name,
		"price":     p.Price,
		"stock":     p.Stock,
	})
	return &p, nil
}

func (s *CatalogService) Update(ctx context.Context, id uuid.UUID, req transport.PatchProductRequest) (*models.Product, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("name cannot be empty: %w", ErrValidation)
		}
		req.Name = &name
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, fmt.Errorf("price cannot be negative: %w", ErrValidation)
		}
		price := req.Price.Round(2)
		req.Price = &price
	}
	if req.Stock != nil && *req.Stock < 0 {
		return nil, fmt.Errorf("stock cannot be negative: %w", ErrValidation)
	}

	p, err := s.Repo.PatchProduct(ctx, req, id)
	if err != nil {
		return nil, storageErr(err, "update product")
	}

	s.index(ctx, *p)
	publish(ctx, s.Events, events.TopicProducts, p.ID.String(), map[string]any{
		"type":      "product_updated",
		"productID": p.ID,
		"name":      p.Name,
		"price":     p.Price,
		"stock":     p.Stock,
	})
	return p, nil
}

// Delete removes the product. Cart lines that still reference it are left in
// place and ignored by every cart read.
func (s *CatalogService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		return storageErr(err, "delete product")
	}

	if s.Index != nil {
		if err := s.Index.DeleteProduct(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("search_unindex_failed", "product_id", id, "error", err)
		}
	}
	publish(ctx, s.Events, events.TopicProducts, id.String(), map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})
	return nil
}

// DecrementStock removes amount units or nothing at all.
func (s *CatalogService) DecrementStock(ctx context.Context, id uuid.UUID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive: %w", ErrValidation)
	}

	ok, err := s.Repo.DecrementStock(ctx, id, amount)
	if err != nil {
		return storageErr(err, "decrement stock")
	}
	if ok {
		return nil
	}
	return s.shortfall(ctx, id, amount)
}

func (s *CatalogService) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("delta must not be zero: %w", ErrValidation)
	}

	ok, err := s.Repo.AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, storageErr(err, "adjust stock")
	}
	if !ok {
		return nil, s.shortfall(ctx, id, -delta)
	}

	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, storageErr(err, "get product")
	}

	s.index(ctx, *p)
	publish(ctx, s.Events, events.TopicProducts, id.String(), map[string]any{
		"type":      "stock_adjusted",
		"productID": id,
		"delta":     delta,
		"stock":     p.Stock,
	})
	return p, nil
}

// shortfall explains why a guarded stock update touched no row.
func (s *CatalogService) shortfall(ctx context.Context, id uuid.UUID, requested int) error {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return storageErr(err, "get product")
	}
	return &InsufficientStockError{
		ProductID:   p.ID,
		ProductName: p.Name,
		Requested:   requested,
		Available:   p.Stock,
	}
}

func (s *CatalogService) index(ctx context.Context, p models.Product) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexProduct(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("search_index_failed", "product_id", p.ID, "error", err)
	}
}
