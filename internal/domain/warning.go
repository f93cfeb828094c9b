package domain

import (
	"fmt"
	"time"
)

// Warning is a normalized weather warning record.
type Warning struct {
	Identifier  string
	Headline    string
	Event       string
	Severity    Severity
	Urgency     string
	Certainty   string
	Description string
	Instruction string

	Sent      time.Time
	Effective time.Time
	Onset     time.Time
	Expires   time.Time

	AreaName string
	AreaID   string
	Web      string
}

// Identity returns the stable dedup identity for the warning: the upstream
// identifier when present, otherwise a headline|sent|area composite. The
// composite is deterministic, so repeated fetches of the same event yield
// the same identity.
func (w Warning) Identity() string {
	if w.Identifier != "" {
		return w.Identifier
	}
	return fmt.Sprintf("%s|%s|%s", w.Headline, w.Sent.UTC().Format(time.RFC3339), w.AreaID)
}

// Alarm is a normalized upstream alarm record mirrored from the central
// unit's last-alarm endpoint.
type Alarm struct {
	ID         string
	Keyword    string
	Message    string
	Address    string
	Recipients []string
	Time       time.Time
}

// Identity returns the alarm's dedup identity, prefixed to keep alarm keys
// distinct from warning identifiers in the shared seen set. Alarms without
// an upstream id fall back to a keyword|time|address composite.
func (a Alarm) Identity() string {
	id := a.ID
	if id == "" {
		id = fmt.Sprintf("%s|%s|%s", a.Keyword, a.Time.UTC().Format(time.RFC3339), a.Address)
	}
	return "alarm:" + id
}

// GaugeReading is one (value, timestamp) measurement for a named gauge.
type GaugeReading struct {
	Gauge     string
	LevelCM   int
	Timestamp time.Time
}

// Notification is the channel-independent payload handed to the
// dispatcher. Title and text are clamped per channel on send.
type Notification struct {
	// Identity is the dedup identity of the underlying record. Combined
	// with the channel name it forms the delivery key.
	Identity string

	Title string
	Text  string

	// Groups optionally routes the notification to named recipient groups.
	Groups []string

	// Private marks the notification as visible to members only.
	Private bool
}
