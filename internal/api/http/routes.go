package httpapi

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jszwec/csvutil"

	"github.com/i474232898/aqi-forecast/internal/forecast"
	"github.com/i474232898/aqi-forecast/internal/registry"
)

var validate = validator.New()

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboard = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

// Renderer produces forecasts for the requested number of days.
type Renderer interface {
	Render(ctx context.Context, days int) (forecast.Forecast, error)
}

// ModelLister lists registered versions of a model.
type ModelLister interface {
	List(ctx context.Context, name string) ([]registry.ModelVersion, error)
}

// Options configures the dashboard routes.
type Options struct {
	Title       string
	ModelName   string
	DefaultDays int
}

// RegisterRoutes wires the dashboard and API handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, renderer Renderer, models ModelLister, opts Options) {
	if opts.DefaultDays == 0 {
		opts.DefaultDays = 3
	}

	app.Get("/", func(c *fiber.Ctx) error {
		view := dashboardView{Title: opts.Title}
		status := fiber.StatusOK

		fc, err := renderer.Render(c.UserContext(), opts.DefaultDays)
		if err != nil {
			log.Printf("ERROR: render forecast: %v", err)
			view.Error = err.Error()
			status = fiber.StatusServiceUnavailable
		} else {
			view.Forecast = fc
		}

		var buf bytes.Buffer
		if err := dashboard.Execute(&buf, view); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render dashboard")
		}
		c.Type("html", "utf-8")
		return c.Status(status).Send(buf.Bytes())
	})

	v1 := app.Group("/api/v1")

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		q, err := parseDaysQuery(c, opts.DefaultDays)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		fc, err := renderer.Render(c.UserContext(), q.Days)
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return c.JSON(fc)
	})

	v1.Get("/forecast/raw.csv", func(c *fiber.Ctx) error {
		q, err := parseDaysQuery(c, opts.DefaultDays)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		fc, err := renderer.Render(c.UserContext(), q.Days)
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		data, err := csvutil.Marshal(fc.Raw)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to encode forecast data")
		}
		c.Type("csv")
		return c.Send(data)
	})

	v1.Get("/models", func(c *fiber.Ctx) error {
		versions, err := models.List(c.UserContext(), opts.ModelName)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list models")
		}
		return c.JSON(fiber.Map{
			"name":     opts.ModelName,
			"versions": versions,
		})
	})
}

type dashboardView struct {
	Title    string
	Error    string
	Forecast forecast.Forecast
}

// daysQuery holds the forecast horizon query parameter.
type daysQuery struct {
	Days int `validate:"gte=1,lte=7"`
}

func parseDaysQuery(c *fiber.Ctx, def int) (daysQuery, error) {
	q := daysQuery{Days: def}
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, errors.New("days must be an integer")
		}
		q.Days = n
	}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}
