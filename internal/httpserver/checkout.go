package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/grocery_shop/internal/service"
	"github.com/Skotchmaster/grocery_shop/internal/transport"
	"github.com/Skotchmaster/grocery_shop/pkg/logging"
	"github.com/labstack/echo/v4"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type CheckoutHTTP struct {
	Svc *service.CheckoutService
}

func (h *CheckoutHTTP) Preview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.preview")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized()
	}

	pv, err := h.Svc.Preview(ctx, userID)
	if err != nil {
		return fail(l, "checkout_preview_failed", err)
	}
	return c.JSON(http.StatusOK, pv)
}

// PlaceOrder answers 201 for a new checkout and 200 when an idempotency key
// replays an earlier one.
func (h *CheckoutHTTP) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.place_order")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized()
	}

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "place_order_failed", "invalid body", err)
	}

	receipt, err := h.Svc.PlaceOrder(ctx, userID, service.CheckoutRequest{
		Address:        req.Address,
		Phone:          req.Phone,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: c.Request().Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		return fail(l, "place_order_failed", err)
	}

	if receipt.Replayed {
		l.Info("place_order_replayed", "checkout_id", receipt.CheckoutID)
		return c.JSON(http.StatusOK, receipt)
	}
	l.Info("place_order_success", "checkout_id", receipt.CheckoutID, "total", receipt.Total.String())
	return c.JSON(http.StatusCreated, receipt)
}
