package main

import (
	"context"
	"fmt"
	"os"

	"github.com/duette-app/duette/cmd/server/container"
	servermw "github.com/duette-app/duette/cmd/server/middleware"
	"github.com/duette-app/duette/cmd/server/repository"
	"github.com/duette-app/duette/cmd/server/routes"
	"github.com/duette-app/duette/common/bootstrap"
	commonmw "github.com/duette-app/duette/common/middleware"
	"github.com/duette-app/duette/common/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const serviceName = "duette-server"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap common components (DB, redis, logger, queue, cache, telemetry)
	components, err := bootstrap.Setup(ctx, serviceName,
		bootstrap.WithDBInitHook(repository.ApplySchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap %s: %v\n", serviceName, err)
		os.Exit(1)
	}
	defer components.Shutdown(context.Background())

	serviceContainer, err := container.NewContainer(ctx, components)
	if err != nil {
		components.Logger.Error("failed to initialize service container", "error", err)
		os.Exit(1)
	}
	if err := serviceContainer.Start(ctx); err != nil {
		components.Logger.Error("failed to start background workers", "error", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e, serviceContainer)
	routes.Register(e, serviceContainer)

	srv := server.New(serviceName, components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(ctx); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, c *container.Container) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(servermw.RequestContext())
	e.Use(servermw.ExtractUsername())

	cfg := c.Components.Config.RateLimit
	if cfg.Enabled && c.Limiter != nil {
		c.Components.Logger.Info("rate limiting enabled",
			"global_limit", cfg.GlobalLimit,
			"user_limit", cfg.UserLimit)
		e.Use(commonmw.GlobalRateLimitMiddleware(c.Limiter, cfg.GlobalLimit, cfg.InternalSecret))
		e.Use(commonmw.UserRateLimitMiddleware(c.Limiter, cfg.UserLimit, cfg.InternalSecret))
	}
}
