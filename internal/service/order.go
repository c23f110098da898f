package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/grocery_shop/internal/models"
	"github.com/Skotchmaster/grocery_shop/internal/repo"
	"github.com/Skotchmaster/grocery_shop/pkg/events"
	"github.com/google/uuid"
)

const (
	DefaultOrderListLimit = 50
	MaxOrderListLimit     = 500
)

type OrderService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

// Append validates order lines and writes them to the ledger. Checkout calls
// it on a copy bound to its transaction.
func (s *OrderService) Append(ctx context.Context, orders ...models.Order) error {
	if err := validateOrders(orders); err != nil {
		return err
	}
	return storageErr(s.Repo.AppendOrders(ctx, orders), "append orders")
}

// in returns a copy of the service that reads and writes through tx.
func (s *OrderService) in(tx *repo.GormRepo) *OrderService {
	c := *s
	c.Repo = tx
	return &c
}

func validateOrders(orders []models.Order) error {
	for _, o := range orders {
		if o.UserID == uuid.Nil || o.ProductID == uuid.Nil {
			return fmt.Errorf("order needs user and product: %w", ErrValidation)
		}
		if o.Quantity <= 0 {
			return fmt.Errorf("quantity must be positive: %w", ErrValidation)
		}
		if o.Price.IsNegative() {
			return fmt.Errorf("price cannot be negative: %w", ErrValidation)
		}
	}
	return nil
}

func (s *OrderService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders, err := s.Repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "list user orders")
	}
	return orders, nil
}

func (s *OrderService) ListAll(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = DefaultOrderListLimit
	}
	if limit > MaxOrderListLimit {
		limit = MaxOrderListLimit
	}

	orders, err := s.Repo.ListOrders(ctx, limit)
	if err != nil {
		return nil, storageErr(err, "list orders")
	}
	return orders, nil
}

func (s *OrderService) ListByCheckout(ctx context.Context, userID, checkoutID uuid.UUID) ([]models.Order, error) {
	orders, err := s.Repo.ListOrdersByCheckout(ctx, userID, checkoutID)
	if err != nil {
		return nil, storageErr(err, "list checkout orders")
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("checkout %s: %w", checkoutID, ErrNotFound)
	}
	return orders, nil
}

// SetStatus accepts any non-empty label; the status vocabulary is left to
// the operators.
func (s *OrderService) SetStatus(ctx context.Context, orderID uuid.UUID, status string) (*models.Order, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, fmt.Errorf("status is required: %w", ErrValidation)
	}

	order, err := s.Repo.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return nil, storageErr(err, "set order status")
	}

	publish(ctx, s.Events, events.TopicOrders, order.UserID.String(), map[string]any{
		"type":       "order_status_changed",
		"orderID":    order.ID,
		"checkoutID": order.CheckoutID,
		"status":     order.Status,
	})
	return order, nil
}

type DashboardStats struct {
	TotalProducts    int64 `json:"total_products"`
	TotalOrders      int64 `json:"total_orders"`
	ProcessingOrders int64 `json:"processing_orders"`
}

func (s *OrderService) Stats(ctx context.Context) (*DashboardStats, error) {
	var st DashboardStats
	var err error

	if st.TotalProducts, err = s.Repo.CountProducts(ctx); err != nil {
		return nil, storageErr(err, "count products")
	}
	if st.TotalOrders, err = s.Repo.CountOrders(ctx); err != nil {
		return nil, storageErr(err, "count orders")
	}
	if st.ProcessingOrders, err = s.Repo.CountOrdersByStatus(ctx, models.StatusProcessing); err != nil {
		return nil, storageErr(err, "count processing orders")
	}
	return &st, nil
}
