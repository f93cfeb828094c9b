// Package divera reads alarm records from the Divera 24/7 central-unit
// API. Field names in the last-alarm payload vary between installations,
// so extraction walks fallback chains instead of binding a fixed schema.
package divera

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/transport"
)

const defaultBaseURL = "https://app.divera247.com"

// Client polls the central unit's last-alarm endpoint.
type Client struct {
	transport *transport.Client
	baseURL   string
	accessKey string
	logger    *slog.Logger
}

// NewClient creates a read client for the central unit.
func NewClient(t *transport.Client, accessKey string, logger *slog.Logger) *Client {
	return &Client{
		transport: t,
		baseURL:   defaultBaseURL,
		accessKey: accessKey,
		logger:    logger,
	}
}

// LastAlarm fetches and normalizes the most recent alarm. It reports
// ok=false with a nil error when the endpoint returned no usable alarm;
// transport failures surface as errors.
func (c *Client) LastAlarm(ctx context.Context) (domain.Alarm, bool, error) {
	query := url.Values{"accesskey": {c.accessKey}}

	var payload map[string]any
	if err := c.transport.GetJSON(ctx, c.baseURL+"/api/last-alarm", query, &payload); err != nil {
		return domain.Alarm{}, false, fmt.Errorf("fetch last alarm: %w", err)
	}
	if len(payload) == 0 {
		return domain.Alarm{}, false, nil
	}

	// The keyword falls back to a default during extraction, so usability
	// is judged on the raw payload: some id or keyword field must exist.
	if firstString(payload, "id", "alarm_id", "uuid", "keyword", "title", "tacticalMode", "einsatzstichwort") == "" {
		c.logger.Warn("last-alarm payload carried no usable fields")
		return domain.Alarm{}, false, nil
	}
	return extract(payload), true, nil
}

// extract pulls the alarm fields out of the loosely-typed payload using
// per-field fallback chains.
func extract(p map[string]any) domain.Alarm {
	return domain.Alarm{
		ID:         firstString(p, "id", "alarm_id", "uuid"),
		Keyword:    firstStringDefault("Einsatz", p, "keyword", "title", "tacticalMode", "einsatzstichwort"),
		Message:    firstString(p, "message", "text", "notes", "meldebild"),
		Address:    firstString(p, "address", "location", "place"),
		Recipients: recipientNames(p),
		Time:       firstTime(p, "time", "timestamp", "created"),
	}
}

// firstString returns the first non-empty value among the keys,
// stringifying numbers so numeric ids survive.
func firstString(p map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := p[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func firstStringDefault(def string, p map[string]any, keys ...string) string {
	if s := firstString(p, keys...); s != "" {
		return s
	}
	return def
}

// firstTime parses the first timestamp-like value among the keys,
// accepting RFC 3339 strings and unix seconds.
func firstTime(p map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		switch v := p[k].(type) {
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t
			}
		case float64:
			if v > 0 {
				return time.Unix(int64(v), 0)
			}
		}
	}
	return time.Time{}
}

// recipientNames flattens the group lists found under any of the known
// keys into a sorted, deduplicated name list. Entries may be plain
// strings or objects with a name/title field.
func recipientNames(p map[string]any) []string {
	set := map[string]struct{}{}
	for _, key := range []string{"groups", "recipients", "target_groups", "alarm_groups"} {
		list, ok := p[key].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			switch v := item.(type) {
			case string:
				if v != "" {
					set[v] = struct{}{}
				}
			case map[string]any:
				if name := firstStringDefault("Gruppe", v, "name", "title"); name != "" {
					set[name] = struct{}{}
				}
			}
		}
	}
	if len(set) == 0 {
		return nil
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
