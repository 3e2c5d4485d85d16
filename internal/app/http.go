package app

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	httpapi "github.com/i474232898/weather-prediction/internal/api/http"
	"github.com/i474232898/weather-prediction/internal/config"
	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/metrics"
	"github.com/i474232898/weather-prediction/internal/query"
)

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHTTPApp builds the Fiber app with middleware, health, metrics and API
// routes.
func NewHTTPApp(cfg *config.AppConfig, svc *query.Service, st Pinger, rec *metrics.Recorder) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-prediction",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Self-healing forecast reads may run a full refresh.
		WriteTimeout: 30 * time.Second,
		ErrorHandler: httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status, code := "ok", fiber.StatusOK
		if err := st.Ping(ctx); err != nil {
			logger.Warnf("app: health check failed: %v", err)
			status, code = "degraded", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":  status,
			"service": "weather-prediction",
		})
	})

	if reg := rec.Registry(); reg != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	// API routes.
	httpapi.RegisterRoutes(app, svc, httpapi.Options{
		DefaultLocation: cfg.Location,
		UpdateInterval:  int(cfg.IngestInterval / time.Second),
	})
	return app
}

func runHTTPServer(lc fx.Lifecycle, cfg *config.AppConfig, app *fiber.App) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Infof("app: listening on :%s", cfg.Port)
				if err := app.Listen(":" + cfg.Port); err != nil {
					logger.Errorf("fiber server stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}
