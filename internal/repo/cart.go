package repo

import (
	"context"

	"github.com/Skotchmaster/grocery_shop/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRow is a cart line joined with the current state of its product.
type CartRow struct {
	Item    models.CartItem
	Product models.Product
}

// CartRows returns the user's cart lines joined live against the catalog in
// the order they were added. Lines whose product no longer exists are
// skipped.
func (r *GormRepo) CartRows(ctx context.Context, userID uuid.UUID) ([]CartRow, error) {
	rows, _, err := r.cartRows(ctx, userID, false)
	return rows, err
}

// LockCart is CartRows with the user's cart lines locked until the
// transaction ends. The count is every locked line, dangling ones included.
func (r *GormRepo) LockCart(ctx context.Context, userID uuid.UUID) ([]CartRow, int, error) {
	return r.cartRows(ctx, userID, true)
}

func (r *GormRepo) cartRows(ctx context.Context, userID uuid.UUID, lock bool) ([]CartRow, int, error) {
	q := r.DB.WithContext(ctx)
	if lock {
		q = r.forUpdate(q)
	}

	var items []models.CartItem
	if err := q.
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return nil, 0, nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	var products []models.Product
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	rows := make([]CartRow, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			continue
		}
		rows = append(rows, CartRow{Item: it, Product: p})
	}
	return rows, len(items), nil
}

// GetCartItemForUpdate locks the line until the transaction ends. Callers
// that also lock the product take the product lock first.
func (r *GormRepo) GetCartItemForUpdate(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.forUpdate(r.DB.WithContext(ctx)).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Create(item).Error
}

func (r *GormRepo) SetCartQuantity(ctx context.Context, item *models.CartItem, quantity int) error {
	if err := r.DB.WithContext(ctx).Model(item).Update("quantity", quantity).Error; err != nil {
		return err
	}
	item.Quantity = quantity
	return nil
}

func (r *GormRepo) DeleteCartItem(ctx context.Context, userID, productID uuid.UUID) error {
	res := r.DB.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClearCart removes every line of the user, dangling ones included.
func (r *GormRepo) ClearCart(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
