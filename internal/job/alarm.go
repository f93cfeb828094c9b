package job

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brandwacht/warnmelder/internal/dispatch"
	"github.com/brandwacht/warnmelder/internal/domain"
)

// AlarmSource reads the most recent upstream alarm. ok is false when
// there is none.
type AlarmSource interface {
	LastAlarm(ctx context.Context) (domain.Alarm, bool, error)
}

// Alarm mirrors the latest upstream alarm into notifications, targeted at
// the alarm's own recipient groups.
type Alarm struct {
	source     AlarmSource
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewAlarm creates the alarm mirror job.
func NewAlarm(source AlarmSource, dispatcher Dispatcher, logger *slog.Logger) *Alarm {
	return &Alarm{source: source, dispatcher: dispatcher, logger: logger}
}

// Run fetches the latest alarm and dispatches it once. Deduplication is by
// alarm identity, so polling the same alarm repeatedly sends nothing new.
func (j *Alarm) Run(ctx context.Context) dispatch.Summary {
	a, ok, err := j.source.LastAlarm(ctx)
	if err != nil {
		j.logger.Warn("alarm fetch failed, skipping run", "error", err)
		return dispatch.Summary{}
	}
	if !ok {
		j.logger.Info("no alarm available")
		return dispatch.Summary{}
	}

	title := a.Keyword
	if a.Address != "" {
		title += " – " + a.Address
	}

	var lines []string
	if a.Message != "" {
		lines = append(lines, a.Message)
	}
	if a.Address != "" {
		lines = append(lines, fmt.Sprintf("Adresse: %s", a.Address))
	}
	if len(a.Recipients) > 0 {
		lines = append(lines, fmt.Sprintf("Alarmiert: %s", strings.Join(a.Recipients, ", ")))
	}
	if !a.Time.IsZero() {
		lines = append(lines, fmt.Sprintf("Alarmzeit: %s", fmtGerman(a.Time)))
	}

	n := domain.Notification{
		Identity: a.Identity(),
		Title:    "🚨 " + title,
		Text:     strings.Join(lines, "\n"),
		Groups:   a.Recipients,
		Private:  true,
	}
	return j.dispatcher.Dispatch(ctx, n)
}
