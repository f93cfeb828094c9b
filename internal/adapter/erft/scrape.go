// Package erft scrapes the Erftverband live-values table for gauge
// levels. The table has one fixed layout; anything that does not match it
// is reported as a malformed response, never as a raw parse panic.
package erft

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/transport"
)

const defaultTableURL = "https://www.erftverband.de/mapserver/arcshp/flussgebiet/klima_abfluss/howis/html/ev_w_tab_aktwerte.html"

// Client scrapes the live-values table.
type Client struct {
	transport *transport.Client
	tableURL  string
	logger    *slog.Logger
}

// NewClient creates an Erftverband table scraper.
func NewClient(t *transport.Client, logger *slog.Logger) *Client {
	return &Client{transport: t, tableURL: defaultTableURL, logger: logger}
}

// CurrentLevel extracts the named station's row: a local "dd.mm.yy HH:MM"
// timestamp followed by the level in cm. A row that is absent yields
// domain.ErrNotFound; a row that does not parse yields domain.ErrMalformed.
func (c *Client) CurrentLevel(ctx context.Context, station string) (domain.GaugeReading, error) {
	html, err := c.transport.GetText(ctx, c.tableURL)
	if err != nil {
		return domain.GaugeReading{}, fmt.Errorf("fetch gauge table: %w", err)
	}

	m := rowPattern(station).FindStringSubmatch(html)
	if m == nil {
		// The table sometimes spells the station without umlauts.
		m = rowPattern(foldUmlauts(station)).FindStringSubmatch(html)
	}
	if m == nil {
		return domain.GaugeReading{}, fmt.Errorf("station %q: %w", station, domain.ErrNotFound)
	}

	level, err := strconv.Atoi(m[2])
	if err != nil {
		return domain.GaugeReading{}, fmt.Errorf("station %q level %q: %w", station, m[2], domain.ErrMalformed)
	}

	ts, err := time.ParseInLocation("02.01.06 15:04", strings.Join(strings.Fields(m[1]), " "), time.Local)
	if err != nil {
		// A broken timestamp still leaves a usable level.
		c.logger.Warn("gauge table timestamp unparseable", "station", station)
		ts = time.Time{}
	}

	return domain.GaugeReading{Gauge: station, LevelCM: level, Timestamp: ts}, nil
}

// rowPattern matches the station's table row: name, then the first
// dd.mm.yy HH:MM timestamp, then the first integer after it.
func rowPattern(station string) *regexp.Regexp {
	return regexp.MustCompile(`(?si)` + regexp.QuoteMeta(station) +
		`.*?(\d{2}\.\d{2}\.\d{2}\s+\d{2}:\d{2}).*?(\d+)\s`)
}

var umlautFolder = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
)

func foldUmlauts(s string) string {
	return umlautFolder.Replace(s)
}
