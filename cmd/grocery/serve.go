package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/grocery_shop/internal/httpserver"
	"github.com/Skotchmaster/grocery_shop/pkg/metrics"
	"github.com/Skotchmaster/grocery_shop/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/grocery_shop/pkg/middleware/logging"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.close()

		if autoMigrate {
			if err := a.repo.Migrate(a.withLogger(cmd.Context())); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}

		e := echo.New()
		e.HideBanner = true
		e.Use(echomw.Recover())
		e.Use(echomw.RequestID())
		e.Use(loggingmw.RequestLogger(a.logger))
		e.Use(metrics.Middleware())
		e.Use(echomw.CORS())
		e.Use(echomw.Secure())
		e.Use(csrf.Middleware(csrf.Config{}))

		httpserver.Register(e, &httpserver.Deps{
			DB:              a.db,
			CatalogHandler:  &httpserver.CatalogHTTP{Svc: a.catalog},
			CartHandler:     &httpserver.CartHTTP{Svc: a.cart},
			CheckoutHandler: &httpserver.CheckoutHTTP{Svc: a.checkout},
			OrderHandler:    &httpserver.OrderHTTP{Svc: a.orders},
			JWTSecret:       a.cfg.JWTAccessSecret,
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
			Handler:           e,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      15 * time.Second,
			ReadHeaderTimeout: 3 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("server_listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(stop)

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
		case <-stop:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("server_shutdown_failed", "error", err)
		}

		a.logger.Info("server_stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "run schema migrations before serving")
}
