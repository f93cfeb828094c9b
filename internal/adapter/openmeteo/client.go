// Package openmeteo fetches hourly forecast and current-instant samples
// from the Open-Meteo API, trying forecast models in preference order and
// taking the first well-formed response.
package openmeteo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/transport"
)

const defaultBaseURL = "https://api.open-meteo.com/v1/forecast"

const hourlyVars = "temperature_2m,relative_humidity_2m,wind_speed_10m,wind_gusts_10m"

// Forecast is a normalized Open-Meteo response.
type Forecast struct {
	// Model is the forecast model that produced the response.
	Model string
	// Hourly is the ascending, possibly gapped sample sequence. Hours with
	// a null temperature, humidity, or mean wind are dropped; a null gust
	// alone falls back to the mean wind so window continuity is preserved.
	Hourly []domain.Sample
	// Current is the current-instant snapshot when requested and complete.
	Current *domain.Sample
}

// Client fetches forecasts for a fixed coordinate.
type Client struct {
	transport *transport.Client
	baseURL   string
	lat, lon  float64
	models    []string
	timezone  string
	loc       *time.Location
	logger    *slog.Logger
	fetched   prometheus.Counter
	dropped   prometheus.Counter
}

// NewClient creates an Open-Meteo client. models is the ordered provider
// preference list; the first well-formed response wins. The counters may
// be nil.
func NewClient(t *transport.Client, lat, lon float64, models []string, timezone string, logger *slog.Logger, fetched, dropped prometheus.Counter) *Client {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("unknown timezone, falling back to local", "timezone", timezone)
		loc = time.Local
	}
	return &Client{
		transport: t,
		baseURL:   defaultBaseURL,
		lat:       lat,
		lon:       lon,
		models:    models,
		timezone:  timezone,
		loc:       loc,
		logger:    logger,
		fetched:   fetched,
		dropped:   dropped,
	}
}

// Fetch queries each preferred model in order and returns the first
// response carrying a non-empty hourly series. startDate/endDate
// (YYYY-MM-DD, may be empty) bound the forecast range; wantCurrent adds
// the current-instant snapshot.
func (c *Client) Fetch(ctx context.Context, wantCurrent bool, startDate, endDate string) (Forecast, error) {
	for _, model := range c.models {
		raw, err := c.fetchModel(ctx, model, wantCurrent, startDate, endDate)
		if err != nil {
			c.logger.Warn("forecast model failed, trying next", "model", model, "error", err)
			continue
		}
		if len(raw.Hourly.Time) == 0 {
			c.logger.Warn("forecast model returned no hourly series, trying next", "model", model)
			continue
		}
		return c.normalize(model, raw, wantCurrent), nil
	}
	return Forecast{}, fmt.Errorf("no forecast model returned a well-formed response")
}

func (c *Client) fetchModel(ctx context.Context, model string, wantCurrent bool, startDate, endDate string) (response, error) {
	query := url.Values{
		"latitude":        {fmt.Sprintf("%.5f", c.lat)},
		"longitude":       {fmt.Sprintf("%.5f", c.lon)},
		"hourly":          {hourlyVars},
		"wind_speed_unit": {"kmh"},
		"timezone":        {c.timezone},
		"models":          {model},
	}
	if wantCurrent {
		query.Set("current", hourlyVars)
	}
	if startDate != "" && endDate != "" {
		query.Set("start_date", startDate)
		query.Set("end_date", endDate)
	}

	var raw response
	if err := c.transport.GetJSON(ctx, c.baseURL, query, &raw); err != nil {
		return response{}, err
	}
	return raw, nil
}

// normalize aligns the hourly arrays to their shortest length and applies
// the null handling policy.
func (c *Client) normalize(model string, raw response, wantCurrent bool) Forecast {
	h := raw.Hourly
	n := len(h.Time)
	for _, l := range []int{len(h.Temperature), len(h.Humidity), len(h.WindMean), len(h.WindGust)} {
		if l < n {
			n = l
		}
	}

	samples := make([]domain.Sample, 0, n)
	dropped := 0
	for i := 0; i < n; i++ {
		ts := c.parseLocal(h.Time[i])
		if ts.IsZero() || h.Temperature[i] == nil || h.Humidity[i] == nil || h.WindMean[i] == nil {
			dropped++
			continue
		}
		gust := h.WindMean[i]
		if h.WindGust[i] != nil {
			gust = h.WindGust[i]
		}
		samples = append(samples, domain.Sample{
			Time:     ts,
			Temp:     *h.Temperature[i],
			Humidity: *h.Humidity[i],
			WindMean: *h.WindMean[i],
			WindGust: *gust,
		})
	}
	if dropped > 0 {
		c.logger.Info("dropped incomplete forecast hours", "model", model, "count", dropped)
		if c.dropped != nil {
			c.dropped.Add(float64(dropped))
		}
	}
	if c.fetched != nil {
		c.fetched.Add(float64(len(samples)))
	}

	f := Forecast{Model: model, Hourly: samples}
	if wantCurrent && raw.Current != nil {
		cur := raw.Current
		if cur.Temperature != nil && cur.Humidity != nil && cur.WindMean != nil {
			gust := cur.WindMean
			if cur.WindGust != nil {
				gust = cur.WindGust
			}
			f.Current = &domain.Sample{
				Time:     c.parseLocal(cur.Time),
				Temp:     *cur.Temperature,
				Humidity: *cur.Humidity,
				WindMean: *cur.WindMean,
				WindGust: *gust,
			}
		}
	}
	return f
}

// parseLocal parses Open-Meteo's offset-less local timestamps in the
// configured zone. Zero time means unparseable.
func (c *Client) parseLocal(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Open-Meteo API response types. Value arrays use pointers because the
// API encodes missing hours as nulls.

type response struct {
	Hourly  hourly   `json:"hourly"`
	Current *instant `json:"current"`
}

type hourly struct {
	Time        []string   `json:"time"`
	Temperature []*float64 `json:"temperature_2m"`
	Humidity    []*float64 `json:"relative_humidity_2m"`
	WindMean    []*float64 `json:"wind_speed_10m"`
	WindGust    []*float64 `json:"wind_gusts_10m"`
}

type instant struct {
	Time        string   `json:"time"`
	Temperature *float64 `json:"temperature_2m"`
	Humidity    *float64 `json:"relative_humidity_2m"`
	WindMean    *float64 `json:"wind_speed_10m"`
	WindGust    *float64 `json:"wind_gusts_10m"`
}
