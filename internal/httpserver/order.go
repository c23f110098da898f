package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/grocery_shop/internal/service"
	"github.com/Skotchmaster/grocery_shop/internal/transport"
	"github.com/Skotchmaster/grocery_shop/internal/util"
	"github.com/Skotchmaster/grocery_shop/pkg/logging"
	"github.com/labstack/echo/v4"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_orders")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized()
	}

	orders, err := h.Svc.ListForUser(ctx, userID)
	if err != nil {
		return fail(l, "get_orders_failed", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": orders})
}

// GetCheckout returns the order lines one checkout produced.
func (h *OrderHTTP) GetCheckout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_checkout")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized()
	}
	checkoutID, err := paramUUID(c, "checkout_id")
	if err != nil {
		return badRequest(l, "get_checkout_failed", "checkout_id is not a uuid", err)
	}

	orders, err := h.Svc.ListByCheckout(ctx, userID, checkoutID)
	if err != nil {
		return fail(l, "get_checkout_failed", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": orders})
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	limit := util.ParseIntDefault(c.QueryParam("limit"), service.DefaultOrderListLimit)
	orders, err := h.Svc.ListAll(ctx, limit)
	if err != nil {
		return fail(l, "list_orders_failed", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": orders})
}

func (h *OrderHTTP) SetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.set_status")

	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(l, "set_order_status_failed", "id is not a uuid", err)
	}

	var req transport.SetStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "set_order_status_failed", "invalid body", err)
	}

	order, err := h.Svc.SetStatus(ctx, id, req.Status)
	if err != nil {
		return fail(l, "set_order_status_failed", err)
	}

	l.Info("set_order_status_success", "order_id", id, "status", order.Status)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.stats")

	st, err := h.Svc.Stats(ctx)
	if err != nil {
		return fail(l, "stats_failed", err)
	}
	return c.JSON(http.StatusOK, st)
}
