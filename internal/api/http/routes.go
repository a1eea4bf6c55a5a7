package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-relay/internal/controller"
	"github.com/i474232898/weather-relay/internal/store"
	"github.com/i474232898/weather-relay/internal/weather"
)

var validate = validator.New()

// Fetcher is the controller surface the routes need.
type Fetcher interface {
	Fetch(location string)
	DefaultLocation() string
	Phase() controller.Phase
	LastOutcome() controller.Outcome
	Cell() controller.Observable
}

// History is the snapshot store the read endpoints query.
type History interface {
	weather.Store
	Locations() []string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, ctrl Fetcher, history History) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		st := ctrl.Cell().Load()
		resp := fiber.Map{
			"phase":       ctrl.Phase().String(),
			"lastOutcome": ctrl.LastOutcome().String(),
			"version":     ctrl.Cell().Version(),
			"state":       st,
		}
		if packet, ok := st.Packet(); ok {
			resp["lines"] = weather.Describe(packet)
			resp["metrics"] = []weather.Metric{
				weather.DoubledHumidity(packet),
				weather.FahrenheitTemperature(packet),
			}
		}
		return c.JSON(resp)
	})

	v1.Post("/weather/fetch", func(c *fiber.Ctx) error {
		q := fetchQuery{Location: c.Query("location")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		location := q.Location
		if location == "" {
			location = ctrl.DefaultLocation()
		}
		ctrl.Fetch(location)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"accepted": true,
			"location": location,
		})
	})

	v1.Get("/weather/latest", func(c *fiber.Ctx) error {
		q := latestQuery{Location: c.Query("location")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshot, err := history.GetLatest(q.Location)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather recorded for location")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch latest weather")
		}
		return c.JSON(snapshot)
	})

	v1.Get("/weather/locations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"locations": history.Locations()})
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshots, err := history.GetRange(req.Location, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}

		return c.JSON(fiber.Map{
			"location":  req.Location,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})
}

// fetchQuery holds query parameters for triggering a fetch. An empty
// location means the controller's default.
type fetchQuery struct {
	Location string `validate:"omitempty,max=128"`
}

// latestQuery holds query parameters for the latest-snapshot endpoint.
type latestQuery struct {
	Location string `validate:"required,max=128"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location string    `validate:"required,max=128"`
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.Location = c.Query("location")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
