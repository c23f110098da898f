package csrf

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/grocery_shop/pkg/tokens"
)

const (
	CookieName = "XSRF-TOKEN"
	HeaderName = "X-CSRF-Token"
)

type Config struct {
	Secure bool
	MaxAge time.Duration
}

// Middleware guards cookie-authenticated requests with a double-submit token:
// the XSRF-TOKEN cookie has to be echoed back in X-CSRF-Token on every
// unsafe method. Requests that carry no access cookie (bearer clients and
// anonymous callers) are skipped, since a browser cannot be tricked into
// sending a header it does not have.
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 24 * time.Hour
	}

	return echomw.CSRFWithConfig(echomw.CSRFConfig{
		Skipper:        usesBearer,
		TokenLookup:    "header:" + HeaderName,
		CookieName:     CookieName,
		CookiePath:     "/",
		CookieMaxAge:   int(cfg.MaxAge.Seconds()),
		CookieSecure:   cfg.Secure,
		CookieHTTPOnly: false,
		CookieSameSite: http.SameSiteLaxMode,
	})
}

func usesBearer(c echo.Context) bool {
	if _, err := c.Cookie(tokens.AccessCookie); err != nil {
		return true
	}
	return c.Request().Header.Get(echo.HeaderAuthorization) != ""
}
