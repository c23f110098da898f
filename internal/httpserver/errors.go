package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/grocery_shop/internal/service"
	"github.com/labstack/echo/v4"
)

// fail logs err under event and turns it into the HTTP error the client sees.
// Client errors are logged at warn, everything else at error.
func fail(l *slog.Logger, event string, err error) error {
	var stock *service.InsufficientStockError

	switch {
	case errors.As(err, &stock):
		l.Warn(event, "status", http.StatusConflict, "reason", "insufficient stock", "product", stock.ProductName, "error", err)
		return echo.NewHTTPError(http.StatusConflict,
			fmt.Sprintf("not enough stock for %s: %d requested, %d available", stock.ProductName, stock.Requested, stock.Available))
	case errors.Is(err, service.ErrValidation):
		l.Warn(event, "status", http.StatusBadRequest, "reason", "validation", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		l.Warn(event, "status", http.StatusNotFound, "reason", "not found", "error", err)
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrEmptyCart):
		l.Warn(event, "status", http.StatusUnprocessableEntity, "reason", "empty cart", "error", err)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "cart is empty")
	case errors.Is(err, service.ErrInsufficientStock):
		l.Warn(event, "status", http.StatusConflict, "reason", "insufficient stock", "error", err)
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrConflict):
		l.Warn(event, "status", http.StatusConflict, "reason", "conflict", "error", err)
		return echo.NewHTTPError(http.StatusConflict, "request conflicted with another update, try again")
	default:
		l.Error(event, "status", http.StatusInternalServerError, "reason", "internal", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, reason)
}
