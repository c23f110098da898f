package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/grocery_shop/internal/models"
	"github.com/Skotchmaster/grocery_shop/internal/repo"
	pkgdb "github.com/Skotchmaster/grocery_shop/pkg/db"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	deliveryCharge = decimal.NewFromInt(30)
	fixedNow       = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
)

type recordedEvent struct {
	Topic string
	Key   string
	Event map[string]any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := event.(map[string]any); ok {
		p.events = append(p.events, recordedEvent{Topic: topic, Key: key, Event: m})
	}
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e.Event["type"].(string))
		}
	}
	return out
}

type memoryIdempotency struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string
	err    error

	rememberErr   error
	onLock        func()
	releaseCtxErr error
	released      int
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{locks: map[string]bool{}, values: map[string]string{}}
}

func (m *memoryIdempotency) TryLock(_ context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	k := scope + ":" + key
	if m.locks[k] {
		return false, nil
	}
	m.locks[k] = true
	if m.onLock != nil {
		m.onLock()
	}
	return true, nil
}

func (m *memoryIdempotency) held(scope, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[scope+":"+key]
}

func (m *memoryIdempotency) Remember(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rememberErr != nil {
		return m.rememberErr
	}
	m.values[scope+":"+key] = value
	return nil
}

func (m *memoryIdempotency) Recall(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[scope+":"+key]
	return v, ok, nil
}

func (m *memoryIdempotency) Release(ctx context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCtxErr = ctx.Err()
	m.released++
	delete(m.locks, scope+":"+key)
	return nil
}

type testEnv struct {
	Repo     *repo.GormRepo
	Catalog  *CatalogService
	Cart     *CartService
	Checkout *CheckoutService
	Orders   *OrderService
	Events   *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := pkgdb.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { pkgdb.Close(db) })

	return newTestEnvWithDB(t, db)
}

func newTestEnvWithDB(t *testing.T, db *gorm.DB) *testEnv {
	t.Helper()

	r := &repo.GormRepo{DB: db}
	require.NoError(t, r.Migrate(context.Background()))

	pub := &recordingPublisher{}
	orders := &OrderService{Repo: r, Events: pub}
	return &testEnv{
		Repo:    r,
		Events:  pub,
		Catalog: &CatalogService{Repo: r, Events: pub},
		Cart:    &CartService{Repo: r, Events: pub, DeliveryCharge: deliveryCharge},
		Checkout: &CheckoutService{
			Repo:              r,
			Events:            pub,
			Orders:            orders,
			DeliveryCharge:    deliveryCharge,
			FulfillmentWindow: 2 * time.Hour,
			Now:               func() time.Time { return fixedNow },
		},
		Orders: orders,
	}
}

func (e *testEnv) product(t *testing.T, name, price string, stock int) models.Product {
	t.Helper()

	p := models.Product{
		Name:        name,
		Description: name + " description",
		Category:    "Groceries",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
	}
	require.NoError(t, e.Repo.CreateProduct(context.Background(), &p))
	return p
}

// fill puts qty units of the product straight into the cart, bypassing the
// add-time stock check so checkout-time behaviour can be exercised.
func (e *testEnv) fill(t *testing.T, userID, productID uuid.UUID, qty int) {
	t.Helper()
	require.NoError(t, e.Repo.CreateCartItem(context.Background(), &models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
	}))
}

func (e *testEnv) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := e.Repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (e *testEnv) orderCount(t *testing.T) int64 {
	t.Helper()
	n, err := e.Repo.CountOrders(context.Background())
	require.NoError(t, err)
	return n
}

// ordersFor counts the order rows of one product, which stays exact on a
// database shared with other tests.
func (e *testEnv) ordersFor(t *testing.T, productID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.Repo.DB.Model(&models.Order{}).Where("product_id = ?", productID).Count(&n).Error)
	return n
}

func validCheckout() CheckoutRequest {
	return CheckoutRequest{Address: "12 Market Street", Phone: "98765 43210"}
}

func stockErr(t *testing.T, err error) *InsufficientStockError {
	t.Helper()
	var se *InsufficientStockError
	require.True(t, errors.As(err, &se), "expected InsufficientStockError, got %v", err)
	return se
}
