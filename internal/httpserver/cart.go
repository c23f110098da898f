package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/grocery_shop/internal/service"
	"github.com/Skotchmaster/grocery_shop/internal/transport"
	"github.com/Skotchmaster/grocery_shop/pkg/logging"
	"github.com/labstack/echo/v4"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_cart")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized()
	}

	lines, err := h.Svc.ListForUser(ctx, userID)
	if err != nil {
		return fail(l, "get_cart_failed", err)
	}
	totals, err := h.Svc.Totals(ctx, userID)
	if err != nil {
		return fail(l, "get_cart_failed", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"lines":  lines,
		"totals": totals,
	})
}

func (h *CartHTTP) GetCount(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_count")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized()
	}

	n, err := h.Svc.Count(ctx, userID)
	if err != nil {
		return fail(l, "get_cart_count_failed", err)
	}
	return c.JSON(http.StatusOK, map[string]int{"count": n})
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized()
	}
	productID, err := paramUUID(c, "product_id")
	if err != nil {
		return badRequest(l, "add_to_cart_failed", "product_id is not a uuid", err)
	}

	upd, err := h.Svc.Add(ctx, userID, productID)
	if err != nil {
		return fail(l, "add_to_cart_failed", err)
	}

	l.Info("add_to_cart_success", "product_id", productID, "quantity", upd.NewQuantity)
	return c.JSON(http.StatusOK, upd)
}

func (h *CartHTTP) SetQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_quantity")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized()
	}
	productID, err := paramUUID(c, "product_id")
	if err != nil {
		return badRequest(l, "set_quantity_failed", "product_id is not a uuid", err)
	}

	var req transport.SetQuantityRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "set_quantity_failed", "invalid body", err)
	}

	upd, err := h.Svc.SetQuantity(ctx, userID, productID, req.Action)
	if err != nil {
		return fail(l, "set_quantity_failed", err)
	}
	return c.JSON(http.StatusOK, upd)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized()
	}
	productID, err := paramUUID(c, "product_id")
	if err != nil {
		return badRequest(l, "remove_from_cart_failed", "product_id is not a uuid", err)
	}

	upd, err := h.Svc.Remove(ctx, userID, productID)
	if err != nil {
		return fail(l, "remove_from_cart_failed", err)
	}

	l.Info("remove_from_cart_success", "product_id", productID)
	return c.JSON(http.StatusOK, upd)
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear_cart")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized()
	}

	if err := h.Svc.ClearForUser(ctx, userID); err != nil {
		return fail(l, "clear_cart_failed", err)
	}

	l.Info("clear_cart_success")
	return c.NoContent(http.StatusNoContent)
}
