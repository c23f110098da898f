package httpserver

import (
	"errors"
	"net/http"

	middleware "github.com/Skotchmaster/grocery_shop/pkg/middleware/auth"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var errUnauthorized = errors.New("unauthorized")

// GetID returns the user id the auth middleware put on the context.
func GetID(c echo.Context) (uuid.UUID, error) {
	s, ok := c.Get(middleware.UserIDKey).(string)
	if !ok || s == "" {
		return uuid.Nil, errUnauthorized
	}

	userID, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errUnauthorized
	}
	return userID, nil
}

func unauthorized() error {
	return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
}

func paramUUID(c echo.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}
