// Package pegel reads river gauge levels from the PEGELONLINE REST API.
package pegel

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/transport"
)

const defaultBaseURL = "https://www.pegelonline.wsv.de/webservices/rest-api/v2"

// Client queries gauge stations.
type Client struct {
	transport *transport.Client
	baseURL   string
	logger    *slog.Logger
}

// NewClient creates a PEGELONLINE client.
func NewClient(t *transport.Client, logger *slog.Logger) *Client {
	return &Client{transport: t, baseURL: defaultBaseURL, logger: logger}
}

// CurrentLevel returns the current water level in cm for the named
// station on the given water body. The station name is matched exactly
// on the upstream shortname first; if no exact match carries a level
// timeseries, the first station with one is used. Umlaut spelling
// variants are tried because the upstream fuzzy search is inconsistent
// about them.
func (c *Client) CurrentLevel(ctx context.Context, water, station string) (domain.GaugeReading, error) {
	for _, fuzzy := range nameVariants(station) {
		query := url.Values{
			"waters":                    {strings.ToUpper(water)},
			"fuzzyId":                   {fuzzy},
			"includeTimeseries":         {"true"},
			"includeCurrentMeasurement": {"true"},
		}

		var stations []stationJSON
		if err := c.transport.GetJSON(ctx, c.baseURL+"/stations.json", query, &stations); err != nil {
			c.logger.Warn("pegelonline query failed", "fuzzy", fuzzy, "error", err)
			continue
		}

		if r, ok := pickReading(stations, station); ok {
			r.Gauge = station
			return r, nil
		}
	}
	return domain.GaugeReading{}, fmt.Errorf("station %q on %s: %w", station, water, domain.ErrNotFound)
}

// pickReading searches an exact shortname match with a level ("W")
// timeseries, then falls back to any station carrying one.
func pickReading(stations []stationJSON, wanted string) (domain.GaugeReading, bool) {
	upper := strings.ToUpper(wanted)
	for _, st := range stations {
		if strings.ToUpper(st.Shortname) == upper {
			if r, ok := levelReading(st); ok {
				return r, true
			}
		}
	}
	for _, st := range stations {
		if r, ok := levelReading(st); ok {
			return r, true
		}
	}
	return domain.GaugeReading{}, false
}

func levelReading(st stationJSON) (domain.GaugeReading, bool) {
	for _, ts := range st.Timeseries {
		if ts.Shortname != "W" || ts.CurrentMeasurement == nil || ts.CurrentMeasurement.Value == nil {
			continue
		}
		return domain.GaugeReading{
			LevelCM:   int(math.Round(*ts.CurrentMeasurement.Value)),
			Timestamp: parseTimestamp(ts.CurrentMeasurement.Timestamp),
		}, true
	}
	return domain.GaugeReading{}, false
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// nameVariants returns the spellings tried against the fuzzy search: the
// name as configured, with umlauts folded to their two-letter forms, and
// lowercased without the fold.
func nameVariants(name string) []string {
	folded := foldUmlauts(name)
	variants := []string{name}
	if folded != name {
		variants = append(variants, folded)
	}
	lower := strings.ToLower(folded)
	if lower != folded {
		variants = append(variants, lower)
	}
	return variants
}

var umlautFolder = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
)

func foldUmlauts(s string) string {
	return umlautFolder.Replace(s)
}

// PEGELONLINE API response types.

type stationJSON struct {
	Shortname  string           `json:"shortname"`
	Timeseries []timeseriesJSON `json:"timeseries"`
}

type timeseriesJSON struct {
	Shortname          string           `json:"shortname"`
	CurrentMeasurement *measurementJSON `json:"currentMeasurement"`
}

type measurementJSON struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
}
