// Package report caches the secondary situation-report text attached to
// warning notifications. Reuse is decided in two tiers: an "issued at"
// marker parsed from the page is authoritative when present; without a
// marker, reuse requires an identical content fingerprint and an
// unexpired TTL. Either way an unchanged report is never re-sent as new.
package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// Entry is the persisted cache record.
type Entry struct {
	IssueMarker string    `json:"issue_marker,omitempty"`
	HasMarker   bool      `json:"has_marker"`
	Text        string    `json:"text"`
	Fingerprint string    `json:"fingerprint"`
	SavedAt     time.Time `json:"saved_at"`
}

// Store persists the single cache entry between runs.
type Store interface {
	Load() (Entry, bool, error)
	Save(Entry) error
}

// Fetcher retrieves the raw report page. Satisfied by transport.Client.
type Fetcher interface {
	GetText(ctx context.Context, url string) (string, error)
}

var (
	// markerRe matches the German "issued at" line of the report page,
	// e.g. "Stand: 23.08.2026, 07:30 Uhr" or "aktualisiert am 23.08.2026 07:30 Uhr".
	markerRe = regexp.MustCompile(`(?i)(?:Stand|ausgegeben am|aktualisiert(?:\s+am)?)\s*:?\s*(\d{1,2}\.\d{1,2}\.\d{4},?\s*\d{1,2}[:.]\d{2}\s*Uhr)`)

	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`[ \t]+`)
	blankRe = regexp.MustCompile(`\n{3,}`)
)

// preferredHeading is the section pulled out of the page when present.
// Without it a bounded block of the full text is used instead.
const preferredHeading = "Wetterlage"

// maxSegment bounds the extracted text in runes.
const maxSegment = 3000

// Cache implements the two-tier reuse strategy over a Store and Fetcher.
type Cache struct {
	fetcher Fetcher
	store   Store
	clock   clockwork.Clock
	logger  *slog.Logger
	lookups *prometheus.CounterVec
}

// New creates a Cache. The lookup counter may be nil.
func New(fetcher Fetcher, store Store, clock clockwork.Clock, logger *slog.Logger, lookups *prometheus.CounterVec) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{fetcher: fetcher, store: store, clock: clock, logger: logger, lookups: lookups}
}

// Get returns the current report text for the source URL, refetching only
// when the cached copy can no longer be proven current. On fetch failure
// the last cached text is served; with nothing cached it returns "".
func (c *Cache) Get(ctx context.Context, sourceURL string, ttl time.Duration) string {
	cached, ok, err := c.store.Load()
	if err != nil {
		c.logger.Warn("report cache load failed, treating as empty", "error", err)
		ok = false
	}

	now := c.clock.Now()

	// Marker-less entries within TTL are served without touching the network.
	if ok && !cached.HasMarker && now.Sub(cached.SavedAt) < ttl {
		c.count("hit")
		return cached.Text
	}

	raw, err := c.fetcher.GetText(ctx, sourceURL)
	if err != nil {
		if ok {
			c.logger.Warn("report fetch failed, serving cached text", "error", err)
			c.count("stale")
			return cached.Text
		}
		c.logger.Warn("report fetch failed, nothing cached", "error", err)
		return ""
	}

	marker, hasMarker := extractMarker(raw)
	text := extractSegment(raw)

	if hasMarker {
		if ok && cached.HasMarker && cached.IssueMarker == marker {
			c.count("hit")
			return cached.Text
		}
		c.replace(Entry{
			IssueMarker: marker,
			HasMarker:   true,
			Text:        text,
			Fingerprint: fingerprint(text),
			SavedAt:     now,
		})
		return text
	}

	fp := fingerprint(text)
	if ok && cached.Fingerprint == fp && now.Sub(cached.SavedAt) < ttl {
		c.count("hit")
		return cached.Text
	}
	c.replace(Entry{
		Text:        text,
		Fingerprint: fp,
		SavedAt:     now,
	})
	return text
}

func (c *Cache) replace(e Entry) {
	c.count("miss")
	if err := c.store.Save(e); err != nil {
		// A failed save only costs a refetch next run.
		c.logger.Warn("report cache save failed", "error", err)
	}
}

func (c *Cache) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

// extractMarker pulls the issued/updated timestamp string from the page.
func extractMarker(raw string) (string, bool) {
	m := markerRe.FindStringSubmatch(raw)
	if len(m) != 2 {
		return "", false
	}
	return strings.Join(strings.Fields(m[1]), " "), true
}

// extractSegment returns the preferred section when the known heading is
// present, otherwise a bounded block of the cleaned full text.
func extractSegment(raw string) string {
	text := cleanText(raw)

	if idx := strings.Index(text, preferredHeading); idx >= 0 {
		text = text[idx:]
	}

	runes := []rune(text)
	if len(runes) > maxSegment {
		text = string(runes[:maxSegment])
	}
	return strings.TrimSpace(text)
}

// cleanText strips markup tags and collapses whitespace. The report page
// has one fixed layout; this is deliberately not a general HTML parser.
func cleanText(raw string) string {
	text := tagRe.ReplaceAllString(raw, "\n")
	text = spaceRe.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = strings.Join(lines, "\n")
	text = blankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
