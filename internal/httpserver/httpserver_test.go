package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Skotchmaster/grocery_shop/internal/models"
	"github.com/Skotchmaster/grocery_shop/internal/repo"
	"github.com/Skotchmaster/grocery_shop/internal/service"
	pkgdb "github.com/Skotchmaster/grocery_shop/pkg/db"
	"github.com/Skotchmaster/grocery_shop/pkg/events"
	"github.com/Skotchmaster/grocery_shop/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type server struct {
	e    *echo.Echo
	repo *repo.GormRepo
}

func newServer(t *testing.T) *server {
	t.Helper()

	ctx := context.Background()
	db, err := pkgdb.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { pkgdb.Close(db) })

	r := &repo.GormRepo{DB: db}
	require.NoError(t, r.Migrate(ctx))

	charge := decimal.NewFromInt(30)
	orders := &service.OrderService{Repo: r, Events: events.Nop{}}
	e := echo.New()
	Register(e, &Deps{
		DB:             db,
		CatalogHandler: &CatalogHTTP{Svc: &service.CatalogService{Repo: r, Events: events.Nop{}}},
		CartHandler:    &CartHTTP{Svc: &service.CartService{Repo: r, Events: events.Nop{}, DeliveryCharge: charge}},
		CheckoutHandler: &CheckoutHTTP{Svc: &service.CheckoutService{
			Repo:              r,
			Orders:            orders,
			Events:            events.Nop{},
			DeliveryCharge:    charge,
			FulfillmentWindow: 2 * time.Hour,
		}},
		OrderHandler: &OrderHTTP{Svc: orders},
		JWTSecret:    testSecret,
	})
	return &server{e: e, repo: r}
}

func token(t *testing.T, role string, userID uuid.UUID) string {
	t.Helper()
	tok, err := tokens.NewAccessToken(role, userID.String(), time.Now().Add(time.Hour), testSecret)
	require.NoError(t, err)
	return tok
}

func (s *server) do(t *testing.T, method, path, tok, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) product(t *testing.T, name string, price int64, stock int) models.Product {
	t.Helper()
	p := models.Product{Name: name, Category: "Groceries", Price: decimal.NewFromInt(price), Stock: stock}
	require.NoError(t, s.repo.CreateProduct(context.Background(), &p))
	return p
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", "", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/metrics", "", "").Code)
}

func TestProducts_PublicListHidesSoldOut(t *testing.T) {
	s := newServer(t)
	s.product(t, "Apple", 50, 10)
	s.product(t, "Saffron", 900, 0)

	rec := s.do(t, http.MethodGet, "/products", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode(t, rec)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "Apple", data[0].(map[string]any)["name"])
}

func TestProducts_GetByID(t *testing.T) {
	s := newServer(t)
	p := s.product(t, "Apple", 50, 10)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/products/"+p.ID.String(), "", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/products/"+uuid.NewString(), "", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/products/not-a-uuid", "", "").Code)
}

func TestProducts_Search(t *testing.T) {
	s := newServer(t)
	s.product(t, "Green Apple", 50, 10)
	s.product(t, "Milk", 25, 10)

	rec := s.do(t, http.MethodGet, "/products/search?q=apple", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["data"].([]any), 1)
	assert.EqualValues(t, 1, body["meta"].(map[string]any)["total"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/products/search?q=", "", "").Code)
}

func TestAuth_Required(t *testing.T) {
	s := newServer(t)
	user := token(t, "user", uuid.New())

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/cart", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/checkout", "garbage", `{}`).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/admin/stats", user, "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/cart", user, "").Code)
}

func TestCheckoutFlow(t *testing.T) {
	s := newServer(t)
	admin := token(t, tokens.RoleAdmin, uuid.New())
	user := token(t, "user", uuid.New())

	rec := s.do(t, http.MethodPost, "/admin/products", admin,
		`{"name":"Apple","description":"Fresh red apples","category":"Fruits","price":50,"stock":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	productID := decode(t, rec)["id"].(string)

	for want := 1; want <= 2; want++ {
		rec = s.do(t, http.MethodPost, "/cart/items/"+productID, user, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.EqualValues(t, want, decode(t, rec)["new_quantity"])
	}

	rec = s.do(t, http.MethodPost, "/cart/items/"+productID, user, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Apple")

	rec = s.do(t, http.MethodGet, "/cart/count", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = s.do(t, http.MethodGet, "/checkout", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["out_of_stock"])

	rec = s.do(t, http.MethodPost, "/checkout", user, `{"address":"12 Market Street","phone":"9876543210"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decode(t, rec)
	assert.Equal(t, "130", receipt["total"])
	assert.Equal(t, models.DefaultPaymentMethod, receipt["payment_method"])

	rec = s.do(t, http.MethodGet, "/products/"+productID, "", "")
	assert.EqualValues(t, 0, decode(t, rec)["stock"])

	rec = s.do(t, http.MethodGet, "/orders", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decode(t, rec)["data"].([]any)
	require.Len(t, orders, 1)
	orderID := orders[0].(map[string]any)["id"].(string)

	checkoutID := receipt["checkout_id"].(string)
	rec = s.do(t, http.MethodGet, "/orders/"+checkoutID, user, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode(t, rec)["data"].([]any), 1)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/orders/"+checkoutID, admin, "").Code)

	rec = s.do(t, http.MethodPost, "/checkout", user, `{"address":"12 Market Street","phone":"9876543210"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/status", admin, `{"status":"Delivered"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Delivered", decode(t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/admin/stats", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)
	assert.EqualValues(t, 1, stats["total_products"])
	assert.EqualValues(t, 1, stats["total_orders"])
	assert.EqualValues(t, 0, stats["processing_orders"])
}

func TestCheckout_InsufficientStockNamesProduct(t *testing.T) {
	s := newServer(t)
	userID := uuid.New()
	user := token(t, "user", userID)
	p := s.product(t, "Organic Honey", 300, 2)

	require.NoError(t, s.repo.CreateCartItem(context.Background(), &models.CartItem{
		UserID: userID, ProductID: p.ID, Quantity: 3,
	}))

	rec := s.do(t, http.MethodPost, "/checkout", user, `{"address":"12 Market Street","phone":"9876543210"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Organic Honey")

	rec = s.do(t, http.MethodGet, "/checkout", user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"Organic Honey"}, decode(t, rec)["out_of_stock"])
}

func TestCheckout_ValidationIs400(t *testing.T) {
	s := newServer(t)
	user := token(t, "user", uuid.New())

	rec := s.do(t, http.MethodPost, "/checkout", user, `{"address":"","phone":"9876543210"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_SetQuantityAndRemove(t *testing.T) {
	s := newServer(t)
	user := token(t, "user", uuid.New())
	p := s.product(t, "Milk", 25, 5)
	path := "/cart/items/" + p.ID.String()

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, path, user, "").Code)

	rec := s.do(t, http.MethodPatch, path, user, `{"action":"increase"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode(t, rec)["new_quantity"])

	rec = s.do(t, http.MethodPatch, path, user, `{"action":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, path, user, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["new_quantity"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, user, "").Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/cart", user, "").Code)
}

func TestAdmin_StockAndDelete(t *testing.T) {
	s := newServer(t)
	admin := token(t, tokens.RoleAdmin, uuid.New())
	p := s.product(t, "Milk", 25, 5)
	base := "/admin/products/" + p.ID.String()

	rec := s.do(t, http.MethodPost, base+"/stock", admin, `{"delta":-3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode(t, rec)["stock"])

	rec = s.do(t, http.MethodPost, base+"/stock", admin, `{"delta":-3}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPatch, base, admin, `{"price":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/products", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"].([]any), 1)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, base, admin, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, base, admin, "").Code)
}
