package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/aqi-forecast/internal/airquality"
	httpapi "github.com/i474232898/aqi-forecast/internal/api/http"
	"github.com/i474232898/aqi-forecast/internal/config"
	"github.com/i474232898/aqi-forecast/internal/forecast"
	"github.com/i474232898/aqi-forecast/internal/metrics"
	"github.com/i474232898/aqi-forecast/internal/platform"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	loc, err := cfg.ResolveLocation()
	if err != nil {
		log.Fatalf("failed to resolve location: %v", err)
	}

	loginCtx, cancelLogin := context.WithTimeout(context.Background(), 30*time.Second)
	project, err := platform.Login(loginCtx, cfg.Platform, cfg.APIKey)
	cancelLogin()
	if err != nil {
		log.Fatalf("failed to log in: %v", err)
	}
	defer project.Close()

	reg, err := project.ModelRegistry(cfg.RegistryDir)
	if err != nil {
		log.Fatalf("failed to open model registry: %v", err)
	}

	// Shared HTTP client for outbound forecast calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client := airquality.NewOpenMeteoClient(httpClient,
		airquality.WithBaseURL(cfg.AQAPIURL),
		airquality.WithAPIKey(cfg.AQAPIKey),
		airquality.WithRetries(cfg.AQMaxRetries),
	)

	rec := metrics.New()
	renderer := forecast.NewRenderer(client,
		forecast.RegistryLoader{Registry: reg, Name: cfg.ModelName},
		loc,
		forecast.WithRecorder(rec),
	)

	app := fiber.New(fiber.Config{
		AppName:               "aqi-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * cfg.HTTPTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "aqi-dashboard",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{})))

	httpapi.RegisterRoutes(app, renderer, reg, httpapi.Options{
		Title:       "AQI Forecast: " + loc.Name,
		ModelName:   cfg.ModelName,
		DefaultDays: cfg.ForecastDays,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: dashboard listening on :%s", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
