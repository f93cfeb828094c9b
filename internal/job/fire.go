package job

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brandwacht/warnmelder/internal/adapter/openmeteo"
	"github.com/brandwacht/warnmelder/internal/dispatch"
	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/observability"
)

// ForecastSource fetches a normalized forecast, optionally with the
// current-instant snapshot.
type ForecastSource interface {
	Fetch(ctx context.Context, wantCurrent bool, startDate, endDate string) (openmeteo.Forecast, error)
}

// FireDaily sends at most one fire-danger summary per calendar date,
// covering every hour of today's forecast that matches the thresholds.
type FireDaily struct {
	source     ForecastSource
	thresholds domain.Thresholds
	dispatcher Dispatcher
	loc        *time.Location
	logger     *slog.Logger
}

// NewFireDaily creates the daily summary job. loc is the zone calendar
// dates are computed in.
func NewFireDaily(source ForecastSource, thresholds domain.Thresholds, dispatcher Dispatcher, loc *time.Location, logger *slog.Logger) *FireDaily {
	return &FireDaily{
		source:     source,
		thresholds: thresholds,
		dispatcher: dispatcher,
		loc:        loc,
		logger:     logger,
	}
}

// Run evaluates today's forecast. The notification identity is derived
// from the calendar date, so reruns on the same day dedup to nothing even
// when later forecast runs shift the windows.
func (j *FireDaily) Run(ctx context.Context) dispatch.Summary {
	today := domain.Now().In(j.loc).Format("2006-01-02")

	f, err := j.source.Fetch(ctx, false, today, today)
	if err != nil {
		j.logger.Warn("forecast unavailable, skipping run", "error", err)
		return dispatch.Summary{}
	}

	samples := make([]domain.Sample, 0, len(f.Hourly))
	for _, s := range f.Hourly {
		if s.Time.In(j.loc).Format("2006-01-02") == today {
			samples = append(samples, s)
		}
	}

	wins := j.thresholds.Windows(samples, samplePeriod)
	if len(wins) == 0 {
		j.logger.Info("no fire-danger windows today", "model", f.Model, "samples", len(samples))
		return dispatch.Summary{}
	}

	// Samples mark the start of their hour, so validity runs to the end of
	// the last matching hour.
	start := wins[0].Start
	end := wins[len(wins)-1].End.Truncate(samplePeriod).Add(samplePeriod)

	n := domain.Notification{
		Identity: "fire-daily|" + today,
		Title:    "🚩 Warnung: Waldbrandgefahr (Vorhersage)",
		Text:     j.summaryText(f.Model, wins, start, end),
		Private:  false,
	}
	j.logger.Info("fire-danger windows found", "model", f.Model, "windows", len(wins), "from", start, "to", end)
	return j.dispatcher.Dispatch(ctx, n)
}

func (j *FireDaily) summaryText(model string, wins []domain.Window, start, end time.Time) string {
	lines := []string{
		fmt.Sprintf("Gültig von %s bis %s.", fmtGerman(start), fmtGerman(end)),
		"",
		fmt.Sprintf("Kriterien: Temperatur > %.0f °C, Luftfeuchte < %.0f %%, Wind > %.0f km/h oder Böen > %.0f km/h.",
			j.thresholds.TempAbove, j.thresholds.HumidityBelow, j.thresholds.WindMeanAbove, j.thresholds.WindGustAbove),
		fmt.Sprintf("Modell: %s", model),
	}
	if len(wins) > 1 {
		parts := make([]string, 0, len(wins))
		for _, w := range wins {
			parts = append(parts, fmt.Sprintf("%s–%s", w.Start.Format("15:04"), w.End.Truncate(samplePeriod).Add(samplePeriod).Format("15:04")))
		}
		lines = append(lines, fmt.Sprintf("Zeitfenster: %s", strings.Join(parts, ", ")))
	}
	return strings.Join(lines, "\n")
}

// FireAcute alerts on the rising edge of the current conditions crossing
// the thresholds, with hysteresis so a continuing event does not re-alert.
type FireAcute struct {
	source     ForecastSource
	thresholds domain.Thresholds
	dispatcher Dispatcher
	edges      EdgeStates
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// edgeFire keys the acute fire hysteresis state in the edge store.
const edgeFire = "fire"

// NewFireAcute creates the acute edge job. metrics may be nil.
func NewFireAcute(source ForecastSource, thresholds domain.Thresholds, dispatcher Dispatcher, edges EdgeStates, logger *slog.Logger, metrics *observability.Metrics) *FireAcute {
	return &FireAcute{
		source:     source,
		thresholds: thresholds,
		dispatcher: dispatcher,
		edges:      edges,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run evaluates the current-instant snapshot against the thresholds and
// fires on a rising edge. The state disarms only after confirmed
// delivery, so a failed send retries on the next run; it rearms on the
// first run where the conditions no longer hold.
func (j *FireAcute) Run(ctx context.Context) dispatch.Summary {
	f, err := j.source.Fetch(ctx, true, "", "")
	if err != nil {
		j.logger.Warn("forecast unavailable, skipping run", "error", err)
		return dispatch.Summary{}
	}
	if f.Current == nil {
		j.logger.Warn("current snapshot incomplete, skipping run", "model", f.Model)
		return dispatch.Summary{}
	}

	active := j.thresholds.Match(*f.Current)
	st := j.edges.Get(edgeFire)

	if !active {
		if st.Rearm() {
			if err := j.edges.Put(edgeFire, st); err != nil {
				j.logger.Error("edge state save failed", "edge", edgeFire, "error", err)
			}
			j.logger.Info("conditions cleared, rearmed", "edge", edgeFire)
		}
		return dispatch.Summary{}
	}
	if !st.RisingEdge(active) {
		j.logger.Debug("conditions persisting, already alerted", "edge", edgeFire)
		return dispatch.Summary{}
	}

	eventStart := domain.Now().Truncate(samplePeriod)
	eventEnd := eventStart.Add(samplePeriod)
	if w, ok := domain.WindowContaining(j.thresholds.Windows(f.Hourly, samplePeriod), eventStart); ok {
		eventEnd = w.End.Truncate(samplePeriod).Add(samplePeriod)
	}

	n := domain.Notification{
		Identity: "fire-acute|" + eventStart.UTC().Format("2006-01-02T15:04"),
		Title:    "🚩 Warnung: Akute Waldbrandgefahr",
		Text:     j.acuteText(f, eventEnd),
		Private:  false,
	}

	sum := j.dispatcher.Dispatch(ctx, n)
	if delivered(sum) {
		st.Disarm(eventStart)
		if err := j.edges.Put(edgeFire, st); err != nil {
			j.logger.Error("edge state save failed", "edge", edgeFire, "error", err)
		}
		if j.metrics != nil {
			j.metrics.EdgeAlertsFired.WithLabelValues(edgeFire).Inc()
		}
	}
	return sum
}

func (j *FireAcute) acuteText(f openmeteo.Forecast, eventEnd time.Time) string {
	cur := f.Current
	return strings.Join([]string{
		fmt.Sprintf("Aktuell: %.1f °C, %.0f %% Luftfeuchte, Wind %.0f km/h, Böen %.0f km/h.",
			cur.Temp, cur.Humidity, cur.WindMean, cur.WindGust),
		fmt.Sprintf("Voraussichtlich bis %s.", fmtGerman(eventEnd)),
		fmt.Sprintf("Modell: %s", f.Model),
	}, "\n")
}
