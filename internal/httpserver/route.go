package httpserver

import (
	"net/http"

	pkgdb "github.com/Skotchmaster/grocery_shop/pkg/db"
	"github.com/Skotchmaster/grocery_shop/pkg/logging"
	"github.com/Skotchmaster/grocery_shop/pkg/metrics"
	middleware "github.com/Skotchmaster/grocery_shop/pkg/middleware/auth"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type Deps struct {
	DB              *gorm.DB
	CatalogHandler  *CatalogHTTP
	CartHandler     *CartHTTP
	CheckoutHandler *CheckoutHTTP
	OrderHandler    *OrderHTTP
	JWTSecret       []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if err := pkgdb.Ping(c.Request().Context(), d.DB); err != nil {
			logging.FromContext(c.Request().Context()).Warn("health_ready_failed", "status", http.StatusServiceUnavailable, "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", metrics.Handler())

	authMW := middleware.NewJWTMiddleware(d.JWTSecret)

	products := e.Group("/products")
	products.GET("", d.CatalogHandler.GetProducts)
	products.GET("/search", d.CatalogHandler.SearchProducts)
	products.GET("/:id", d.CatalogHandler.GetProduct)

	cart := e.Group("/cart", authMW.RequireAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.DELETE("", d.CartHandler.ClearCart)
	cart.GET("/count", d.CartHandler.GetCount)
	cart.POST("/items/:product_id", d.CartHandler.AddItem)
	cart.PATCH("/items/:product_id", d.CartHandler.SetQuantity)
	cart.DELETE("/items/:product_id", d.CartHandler.RemoveItem)

	checkout := e.Group("/checkout", authMW.RequireAuth)
	checkout.GET("", d.CheckoutHandler.Preview)
	checkout.POST("", d.CheckoutHandler.PlaceOrder)

	orders := e.Group("/orders", authMW.RequireAuth)
	orders.GET("", d.OrderHandler.GetOrders)
	orders.GET("/:checkout_id", d.OrderHandler.GetCheckout)

	admin := e.Group("/admin", authMW.RequireAdmin)
	admin.GET("/products", d.CatalogHandler.ListProducts)
	admin.POST("/products", d.CatalogHandler.CreateProduct)
	admin.PATCH("/products/:id", d.CatalogHandler.PatchProduct)
	admin.DELETE("/products/:id", d.CatalogHandler.DeleteProduct)
	admin.POST("/products/:id/stock", d.CatalogHandler.AdjustStock)
	admin.GET("/orders", d.OrderHandler.ListOrders)
	admin.PATCH("/orders/:id/status", d.OrderHandler.SetStatus)
	admin.GET("/stats", d.OrderHandler.Stats)
}
