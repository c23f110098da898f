package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/grocery_shop/internal/models"
	"github.com/Skotchmaster/grocery_shop/internal/repo"
	"github.com/Skotchmaster/grocery_shop/pkg/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ActionIncrease = "increase"
	ActionDecrease = "decrease"
)

type CartLine struct {
	Product   models.Product  `json:"product"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartTotals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	LineCount      int             `json:"line_count"`
	ItemCount      int             `json:"item_count"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
}

// CartUpdate is returned by cart mutations so a client can refresh its view
// without reloading the cart. CartCount is the number of units.
type CartUpdate struct {
	ProductID   uuid.UUID       `json:"product_id"`
	NewQuantity int             `json:"new_quantity"`
	CartTotal   decimal.Decimal `json:"cart_total"`
	CartCount   int             `json:"cart_count"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

type CartService struct {
	Repo           *repo.GormRepo
	Events         events.Publisher
	DeliveryCharge decimal.Decimal
}

func lineTotal(p models.Product, qty int) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(qty)))
}

func computeTotals(rows []repo.CartRow, deliveryCharge decimal.Decimal) CartTotals {
	t := CartTotals{
		Subtotal:       decimal.Zero,
		DeliveryCharge: deliveryCharge,
	}
	for _, r := range rows {
		t.Subtotal = t.Subtotal.Add(lineTotal(r.Product, r.Item.Quantity))
		t.ItemCount += r.Item.Quantity
		t.LineCount++
	}
	t.GrandTotal = t.Subtotal.Add(deliveryCharge)
	return t
}

// Add puts one unit of the product into the cart. Repeated adds increment a
// single line, never past the stock available at the time of the add.
func (s *CartService) Add(ctx context.Context, userID, productID uuid.UUID) (*CartUpdate, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("product id is required: %w", ErrValidation)
	}

	var qty int
	err := s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		p, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}

		item, err := tx.GetCartItemForUpdate(ctx, userID, productID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if p.Stock <= 0 {
				return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: 1, Available: p.Stock}
			}
			qty = 1
			return tx.CreateCartItem(ctx, &models.CartItem{UserID: userID, ProductID: productID, Quantity: qty})
		case err != nil:
			return err
		}

		qty = item.Quantity + 1
		if p.Stock <= 0 || qty > p.Stock {
			return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: qty, Available: p.Stock}
		}
		return tx.SetCartQuantity(ctx, item, qty)
	})
	if err != nil {
		return nil, storageErr(err, "add to cart")
	}

	publish(ctx, s.Events, events.TopicCart, userID.String(), map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": productID,
		"quantity":  qty,
	})
	return s.update(ctx, userID, productID, qty)
}

// SetQuantity moves a line up or down by one. Decrease stops at 1; removing
// a line is always explicit. The line is read under a row lock so concurrent
// changes to the same line never overwrite each other.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID uuid.UUID, action string) (*CartUpdate, error) {
	if action != ActionIncrease && action != ActionDecrease {
		return nil, fmt.Errorf("action must be %q or %q: %w", ActionIncrease, ActionDecrease, ErrValidation)
	}

	var qty int
	err := s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		if action == ActionDecrease {
			item, err := tx.GetCartItemForUpdate(ctx, userID, productID)
			if err != nil {
				return err
			}
			qty = item.Quantity
			if item.Quantity <= 1 {
				return nil
			}
			qty = item.Quantity - 1
			return tx.SetCartQuantity(ctx, item, qty)
		}

		p, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		item, err := tx.GetCartItemForUpdate(ctx, userID, productID)
		if err != nil {
			return err
		}
		qty = item.Quantity
		if item.Quantity+1 > p.Stock {
			return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: item.Quantity + 1, Available: p.Stock}
		}
		qty = item.Quantity + 1
		return tx.SetCartQuantity(ctx, item, qty)
	})
	if err != nil {
		return nil, storageErr(err, "set cart quantity")
	}
	return s.update(ctx, userID, productID, qty)
}

func (s *CartService) Remove(ctx context.Context, userID, productID uuid.UUID) (*CartUpdate, error) {
	if err := s.Repo.DeleteCartItem(ctx, userID, productID); err != nil {
		return nil, storageErr(err, "remove from cart")
	}

	publish(ctx, s.Events, events.TopicCart, userID.String(), map[string]any{
		"type":      "cart_item_removed",
		"userID":    userID,
		"productID": productID,
	})
	return s.update(ctx, userID, productID, 0)
}

func (s *CartService) ListForUser(ctx context.Context, userID uuid.UUID) ([]CartLine, error) {
	rows, err := s.Repo.CartRows(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "list cart")
	}
	return toLines(rows), nil
}

func (s *CartService) ClearForUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.Repo.ClearCart(ctx, userID); err != nil {
		return storageErr(err, "clear cart")
	}

	publish(ctx, s.Events, events.TopicCart, userID.String(), map[string]any{
		"type":   "cart_cleared",
		"userID": userID,
	})
	return nil
}

func (s *CartService) Totals(ctx context.Context, userID uuid.UUID) (*CartTotals, error) {
	rows, err := s.Repo.CartRows(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "cart totals")
	}
	t := computeTotals(rows, s.DeliveryCharge)
	return &t, nil
}

// Count is the number of lines in the cart.
func (s *CartService) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	rows, err := s.Repo.CartRows(ctx, userID)
	if err != nil {
		return 0, storageErr(err, "cart count")
	}
	return len(rows), nil
}

func (s *CartService) update(ctx context.Context, userID, productID uuid.UUID, qty int) (*CartUpdate, error) {
	t, err := s.Totals(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CartUpdate{
		ProductID:   productID,
		NewQuantity: qty,
		CartTotal:   t.Subtotal,
		CartCount:   t.ItemCount,
		GrandTotal:  t.GrandTotal,
	}, nil
}

func toLines(rows []repo.CartRow) []CartLine {
	lines := make([]CartLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, CartLine{
			Product:   r.Product,
			Quantity:  r.Item.Quantity,
			LineTotal: lineTotal(r.Product, r.Item.Quantity),
		})
	}
	return lines
}
