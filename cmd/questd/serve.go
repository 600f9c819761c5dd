package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/agent"
	"github.com/fyrsmithlabs/questd/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the questd HTTP daemon",
	Long: `Start the HTTP daemon.

Endpoints:
  POST /v1/answer   Answer a competition question
  GET  /healthz     Liveness probe
  GET  /metrics     Prometheus metrics`,
	RunE: runServe,
}

// answerer is the engine surface the HTTP layer needs.
type answerer interface {
	Answer(ctx context.Context, query agent.Query) (engine.Outcome, error)
}

// newEchoServer builds the HTTP server around the engine.
func newEchoServer(eng answerer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/v1/answer", func(c echo.Context) error {
		var query agent.Query
		if err := c.Bind(&query); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		out, err := eng.Answer(c.Request().Context(), query)
		if err != nil {
			if errors.Is(err, engine.ErrEmptyQuery) {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		return c.JSON(http.StatusOK, out)
	})

	return e
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	e := newEchoServer(app.engine)
	addr := fmt.Sprintf(":%d", app.cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()

	app.logger.Info(ctx, "server listening",
		zap.String("addr", addr),
		zap.String("health_endpoint", "/healthz"),
		zap.String("metrics_endpoint", "/metrics"))

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info(context.Background(), "shutting down",
		zap.Duration("timeout", app.cfg.Server.ShutdownTimeout.Duration()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
