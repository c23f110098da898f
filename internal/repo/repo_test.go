package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/Skotchmaster/grocery_shop/internal/models"
	"github.com/Skotchmaster/grocery_shop/internal/transport"
	pkgdb "github.com/Skotchmaster/grocery_shop/pkg/db"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()

	db, err := pkgdb.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { pkgdb.Close(db) })

	r := &GormRepo{DB: db}
	require.NoError(t, r.Migrate(context.Background()))
	return r
}

func seedProduct(t *testing.T, r *GormRepo, name string, price string, stock int) models.Product {
	t.Helper()

	p := models.Product{
		Name:     name,
		Category: "Fruits",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	}
	require.NoError(t, r.CreateProduct(context.Background(), &p))
	return p
}

func TestDecrementStock_CompareAndSwap(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "Apple", "50", 3)

	ok, err := r.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)

	ok, err = r.DecrementStock(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdjustStock_NeverNegative(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "Milk", "25", 2)

	ok, err := r.AdjustStock(ctx, p.ID, -3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.AdjustStock(ctx, p.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)
}

func TestCartRows_SkipsDanglingLines(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	user := uuid.New()

	apple := seedProduct(t, r, "Apple", "50", 10)
	banana := seedProduct(t, r, "Banana", "30", 10)

	require.NoError(t, r.CreateCartItem(ctx, &models.CartItem{UserID: user, ProductID: apple.ID, Quantity: 2}))
	require.NoError(t, r.CreateCartItem(ctx, &models.CartItem{UserID: user, ProductID: banana.ID, Quantity: 1}))
	require.NoError(t, r.DeleteProduct(ctx, banana.ID))

	rows, err := r.CartRows(ctx, user)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, apple.ID, rows[0].Product.ID)
	assert.Equal(t, 2, rows[0].Item.Quantity)

	n, err := r.ClearCart(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCartItem_UniquePerUserAndProduct(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	user := uuid.New()
	p := seedProduct(t, r, "Apple", "50", 10)

	require.NoError(t, r.CreateCartItem(ctx, &models.CartItem{UserID: user, ProductID: p.ID, Quantity: 1}))
	require.Error(t, r.CreateCartItem(ctx, &models.CartItem{UserID: user, ProductID: p.ID, Quantity: 1}))
}

func TestSearchProducts(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	seedProduct(t, r, "Green Apple", "50", 10)
	seedProduct(t, r, "Banana", "30", 10)
	seedProduct(t, r, "100% Juice", "80", 10)

	total, items, err := r.SearchProducts(ctx, "APPLE", 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Green Apple", items[0].Name)

	total, _, err = r.SearchProducts(ctx, "fruits", 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	total, items, err = r.SearchProducts(ctx, "0%", 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "100% Juice", items[0].Name)
}

func TestPatchProduct(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "Apple", "50", 10)

	name := "Red Apple"
	price := decimal.RequireFromString("55.5")
	got, err := r.PatchProduct(ctx, transport.PatchProductRequest{Name: &name, Price: &price}, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Red Apple", got.Name)
	assert.True(t, got.Price.Equal(price))
	assert.Equal(t, 10, got.Stock)

	_, err = r.PatchProduct(ctx, transport.PatchProductRequest{Name: &name}, uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestUpdateOrderStatus(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()

	o := models.Order{
		CheckoutID:     uuid.New(),
		UserID:         uuid.New(),
		ProductID:      uuid.New(),
		ProductName:    "Apple",
		Price:          decimal.NewFromInt(50),
		Quantity:       1,
		Address:        "1 Main St",
		Phone:          "9876543210",
		PaymentMethod:  models.DefaultPaymentMethod,
		DeliveryCharge: decimal.NewFromInt(30),
		DeliveryTime:   "2026-01-01 12:00",
	}
	require.NoError(t, r.AppendOrders(ctx, []models.Order{o}))

	orders, err := r.ListOrdersByUser(ctx, o.UserID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.StatusProcessing, orders[0].Status)

	updated, err := r.UpdateOrderStatus(ctx, orders[0].ID, "Delivered")
	require.NoError(t, err)
	assert.Equal(t, "Delivered", updated.Status)

	_, err = r.UpdateOrderStatus(ctx, uuid.New(), "Delivered")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
