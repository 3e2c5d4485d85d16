package httpapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-prediction/internal/query"
	"github.com/i474232898/weather-prediction/internal/weather"
)

var validate = validator.New()

// Service is the read side the handlers serve.
type Service interface {
	Latest(ctx context.Context, loc weather.Location) (query.LatestView, error)
	History(ctx context.Context, loc weather.Location, limit, hours int) (query.HistoryView, error)
	WeeklyStats(ctx context.Context, loc weather.Location) (query.WeeklyView, error)
	DayPrediction(ctx context.Context, loc weather.Location, day int) (query.DayView, error)
	Forecast(ctx context.Context, loc weather.Location) (query.ForecastView, error)
	Zone() *time.Location
}

// Options configures the API routes.
type Options struct {
	// DefaultLocation is used when a request names no coordinates.
	DefaultLocation weather.Location
	// UpdateInterval is advertised to clients polling history, in seconds.
	UpdateInterval int
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service Service, opts Options) {
	h := &handlers{service: service, opts: opts}
	if h.opts.UpdateInterval <= 0 {
		h.opts.UpdateInterval = 1
	}

	api := app.Group("/api", noCache)
	api.Get("/latest", h.latest)
	api.Get("/history", h.history)
	api.Get("/weekly-stats", h.weeklyStats)
	api.Get("/predict", h.predict)
	api.Get("/forecast", h.forecast)
}

// noCache marks API responses as uncacheable.
func noCache(c *fiber.Ctx) error {
	err := c.Next()
	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate, post-check=0, pre-check=0, max-age=0")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "-1")
	return err
}

type handlers struct {
	service Service
	opts    Options
}

func (h *handlers) latest(c *fiber.Ctx) error {
	loc, err := h.parseLocationQuery(c)
	if err != nil {
		return err
	}

	v, err := h.service.Latest(c.UserContext(), loc)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"time":               weather.FormatTimestamp(v.Time),
		"temperature":        v.Temperature,
		"current_hour_avg":   v.CurrentHourAvg,
		"previous_hour_avg":  v.PreviousHourAvg,
		"readings_this_hour": v.ReadingsThisHour,
		"trend":              v.Trend,
		"is_live":            true,
	})
}

func (h *handlers) history(c *fiber.Ctx) error {
	loc, err := h.parseLocationQuery(c)
	if err != nil {
		return err
	}
	var q historyQuery
	if err := q.bind(c); err != nil {
		return err
	}

	v, err := h.service.History(c.UserContext(), loc, q.Limit, q.Hours)
	if err != nil {
		return err
	}

	timestamps := make([]string, len(v.Readings))
	temps := make([]float64, len(v.Readings))
	for i, r := range v.Readings {
		timestamps[i] = weather.FormatTimestamp(r.Timestamp)
		temps[i] = r.Temperature
	}

	return c.JSON(fiber.Map{
		"lastTimestamps":   timestamps,
		"lastTemperatures": temps,
		"updateInterval":   h.opts.UpdateInterval,
		"count":            len(v.Readings),
		"isHourlyAverage":  false,
	})
}

func (h *handlers) weeklyStats(c *fiber.Ctx) error {
	loc, err := h.parseLocationQuery(c)
	if err != nil {
		return err
	}

	v, err := h.service.WeeklyStats(c.UserContext(), loc)
	if err != nil {
		return err
	}

	n := len(v.Days)
	dates := make([]string, n)
	mins, maxs, avgs := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, d := range v.Days {
		dates[i] = d.Date
		mins[i], maxs[i], avgs[i] = d.Min, d.Max, d.Mean
	}

	return c.JSON(fiber.Map{
		"dates":    dates,
		"minTemps": mins,
		"maxTemps": maxs,
		"avgTemps": avgs,
	})
}

func (h *handlers) predict(c *fiber.Ctx) error {
	loc, err := h.parseLocationQuery(c)
	if err != nil {
		return err
	}
	day, err := intQuery(c, "day", 1)
	if err != nil {
		return err
	}

	v, err := h.service.DayPrediction(c.UserContext(), loc, day)
	if err != nil {
		return err
	}

	zone := h.service.Zone()
	hourly := hourlyEntries(v.Hourly, zone)
	timestamps := make([]string, len(v.Hourly))
	temps := make([]float64, len(v.Hourly))
	for i, p := range v.Hourly {
		timestamps[i] = p.TargetDate.In(zone).Format(time.RFC3339)
		temps[i] = p.Temperature
	}

	date := v.Date.In(zone)
	resp := fiber.Map{
		"day":         v.Day,
		"date":        date.Format(time.DateOnly),
		"day_of_week": date.Weekday().String(),
		"timestamps":  timestamps,
		"predictions": temps,
		"hourly":      hourly,
	}
	addStats(resp, v.Stats)
	return c.JSON(resp)
}

func (h *handlers) forecast(c *fiber.Ctx) error {
	loc, err := h.parseLocationQuery(c)
	if err != nil {
		return err
	}

	v, err := h.service.Forecast(c.UserContext(), loc)
	if err != nil {
		return err
	}

	zone := h.service.Zone()
	days := make([]fiber.Map, 0, len(v.Days))
	for _, d := range v.Days {
		date := d.Date.In(zone)
		day := fiber.Map{
			"day_number":       d.DayNumber,
			"date":             date.Format(time.DateOnly),
			"day_of_week":      date.Weekday().String(),
			"prediction_count": len(d.Hourly),
			"hourly":           hourlyEntries(d.Hourly, zone),
		}
		addStats(day, d.Stats)
		days = append(days, day)
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"days":             len(days),
		"last_updated":     v.LastUpdated.In(zone).Format(time.RFC3339),
		"next_update":      v.NextUpdate.In(zone).Format(time.RFC3339),
		"update_frequency": "daily",
		"forecast":         days,
	})
}

type hourlyEntry struct {
	Hour        int     `json:"hour"`
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature"`
	Timestamp   string  `json:"timestamp"`
}

func hourlyEntries(preds []weather.Prediction, zone *time.Location) []hourlyEntry {
	out := make([]hourlyEntry, len(preds))
	for i, p := range preds {
		t := p.TargetDate.In(zone)
		out[i] = hourlyEntry{
			Hour:        p.Hour,
			Time:        t.Format("15:00"),
			Temperature: p.Temperature,
			Timestamp:   t.Format(time.RFC3339),
		}
	}
	return out
}

// addStats sets min/max/avg, or nulls when there are no values.
func addStats(m fiber.Map, st weather.Stats) {
	if st.Count == 0 {
		m["min_temp"], m["max_temp"], m["avg_temp"] = nil, nil, nil
		return
	}
	m["min_temp"], m["max_temp"], m["avg_temp"] = st.Min, st.Max, st.Mean
}

// locationQuery holds the optional coordinates of a request.
type locationQuery struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}

func (h *handlers) parseLocationQuery(c *fiber.Ctx) (weather.Location, error) {
	q := locationQuery{
		Latitude:  h.opts.DefaultLocation.Latitude,
		Longitude: h.opts.DefaultLocation.Longitude,
	}

	var err error
	if q.Latitude, err = floatQuery(c, "latitude", q.Latitude); err != nil {
		return weather.Location{}, err
	}
	if q.Longitude, err = floatQuery(c, "longitude", q.Longitude); err != nil {
		return weather.Location{}, err
	}
	if err := validate.Struct(q); err != nil {
		return weather.Location{}, invalidParam(err.Error())
	}
	return weather.NewLocation(q.Latitude, q.Longitude), nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Limit int `validate:"gte=0,lte=500"`
	Hours int `validate:"gte=0,lte=240"`
}

func (q *historyQuery) bind(c *fiber.Ctx) error {
	var err error
	if q.Limit, err = intQuery(c, "limit", 0); err != nil {
		return err
	}
	if q.Hours, err = intQuery(c, "hours", 0); err != nil {
		return err
	}
	if err := validate.Struct(q); err != nil {
		return invalidParam(err.Error())
	}
	return nil
}

func floatQuery(c *fiber.Ctx, key string, def float64) (float64, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, invalidParam(key + " must be a number")
	}
	return v, nil
}

func intQuery(c *fiber.Ctx, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalidParam(key + " must be an integer")
	}
	return v, nil
}

func invalidParam(msg string) error {
	return fmt.Errorf("%w: %s", weather.ErrInvalidParameter, msg)
}
