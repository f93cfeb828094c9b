// Package dwd fetches weather warnings from the DWD WFS endpoint and
// normalizes the GeoJSON features into domain warning records.
package dwd

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/transport"
)

const defaultBaseURL = "https://maps.dwd.de/geoserver/dwd/ows"

// Client queries the DWD warnings layer for a set of warncells.
type Client struct {
	transport *transport.Client
	baseURL   string
	logger    *slog.Logger
	fetched   prometheus.Counter
	dropped   prometheus.Counter
}

// NewClient creates a DWD warnings client. The counters may be nil.
func NewClient(t *transport.Client, logger *slog.Logger, fetched, dropped prometheus.Counter) *Client {
	return &Client{
		transport: t,
		baseURL:   defaultBaseURL,
		logger:    logger,
		fetched:   fetched,
		dropped:   dropped,
	}
}

// Fetch returns the current warnings for the given warncell ids. On
// transient upstream failure it returns an empty slice and logs; the run
// continues with zero records. Features missing the minimal field set
// (a usable timestamp plus headline or event) are dropped and counted.
func (c *Client) Fetch(ctx context.Context, warncells []string) []domain.Warning {
	query := url.Values{
		"service":      {"WFS"},
		"version":      {"2.0.0"},
		"request":      {"GetFeature"},
		"typeName":     {"dwd:Warnungen_Gemeinden"},
		"outputFormat": {"application/json"},
	}
	if len(warncells) > 0 {
		quoted := make([]string, len(warncells))
		for i, id := range warncells {
			quoted[i] = "'" + id + "'"
		}
		query.Set("CQL_FILTER", "WARNCELLID IN ("+strings.Join(quoted, ",")+")")
	}

	var payload featureCollection
	if err := c.transport.GetJSON(ctx, c.baseURL, query, &payload); err != nil {
		c.logger.Warn("dwd fetch failed, continuing with zero warnings", "error", err)
		return nil
	}

	warnings := make([]domain.Warning, 0, len(payload.Features))
	dropped := 0
	for _, f := range payload.Features {
		w, ok := normalize(f.Properties)
		if !ok {
			dropped++
			continue
		}
		warnings = append(warnings, w)
	}
	if dropped > 0 {
		c.logger.Info("dropped malformed dwd features", "count", dropped)
		if c.dropped != nil {
			c.dropped.Add(float64(dropped))
		}
	}
	if c.fetched != nil {
		c.fetched.Add(float64(len(warnings)))
	}
	return warnings
}

// normalize maps one WFS property bag to a Warning. It reports false when
// the minimal field set is missing.
func normalize(p properties) (domain.Warning, bool) {
	w := domain.Warning{
		Identifier:  strings.TrimSpace(p.Identifier),
		Headline:    strings.TrimSpace(p.Headline),
		Event:       strings.TrimSpace(p.Event),
		Severity:    domain.ParseSeverity(p.Severity),
		Urgency:     p.Urgency,
		Certainty:   p.Certainty,
		Description: strings.TrimSpace(p.Description),
		Instruction: strings.TrimSpace(p.Instruction),
		Sent:        parseISO(p.Sent),
		Effective:   parseISO(p.Effective),
		Onset:       parseISO(p.Onset),
		Expires:     parseISO(p.Expires),
		AreaName:    strings.TrimSpace(p.Name),
		AreaID:      p.WarncellID.String(),
		Web:         p.Web,
	}
	if w.Web == "" {
		w.Web = "https://www.dwd.de/warnungen"
	}
	if w.Sent.IsZero() && w.Onset.IsZero() {
		return domain.Warning{}, false
	}
	if w.Headline == "" && w.Event == "" {
		return domain.Warning{}, false
	}
	return w, true
}

// parseISO parses the upstream ISO-8601 timestamps, tolerating a missing
// zone offset. Zero time means absent.
func parseISO(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties `json:"properties"`
}

type properties struct {
	Identifier  string      `json:"IDENTIFIER"`
	Headline    string      `json:"HEADLINE"`
	Event       string      `json:"EVENT"`
	Severity    string      `json:"SEVERITY"`
	Urgency     string      `json:"URGENCY"`
	Certainty   string      `json:"CERTAINTY"`
	Description string      `json:"DESCRIPTION"`
	Instruction string      `json:"INSTRUCTION"`
	Sent        string      `json:"SENT"`
	Effective   string      `json:"EFFECTIVE"`
	Onset       string      `json:"ONSET"`
	Expires     string      `json:"EXPIRES"`
	Name        string      `json:"NAME"`
	WarncellID  json.Number `json:"WARNCELLID"`
	Web         string      `json:"WEB"`
}
