package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brandwacht/warnmelder/internal/config"
	"github.com/brandwacht/warnmelder/internal/dispatch"
	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/observability"
)

// LevelFunc reads the current level of one gauge.
type LevelFunc func(ctx context.Context) (domain.GaugeReading, error)

// GaugeMonitor pairs one gauge definition with its reader.
type GaugeMonitor struct {
	Def  config.Gauge
	Read LevelFunc
}

// Gauges alerts on the rising edge of a gauge level crossing its
// threshold, one independent hysteresis state per gauge.
type Gauges struct {
	monitors   []GaugeMonitor
	dispatcher Dispatcher
	edges      EdgeStates
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewGauges creates the gauge job. metrics may be nil.
func NewGauges(monitors []GaugeMonitor, dispatcher Dispatcher, edges EdgeStates, logger *slog.Logger, metrics *observability.Metrics) *Gauges {
	return &Gauges{
		monitors:   monitors,
		dispatcher: dispatcher,
		edges:      edges,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run reads every monitored gauge. A read failure is isolated to its
// gauge; the others still run.
func (j *Gauges) Run(ctx context.Context) dispatch.Summary {
	var sum dispatch.Summary
	for _, m := range j.monitors {
		sum.Add(j.runOne(ctx, m))
	}
	return sum
}

func (j *Gauges) runOne(ctx context.Context, m GaugeMonitor) dispatch.Summary {
	edge := "gauge|" + m.Def.Name

	r, err := m.Read(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			j.logger.Warn("gauge not found upstream", "gauge", m.Def.Name)
		} else {
			j.logger.Warn("gauge read failed", "gauge", m.Def.Name, "error", err)
		}
		return dispatch.Summary{}
	}
	j.logger.Info("gauge read", "gauge", m.Def.Name, "level_cm", r.LevelCM, "threshold_cm", m.Def.ThresholdCM)

	above := r.LevelCM >= m.Def.ThresholdCM
	st := j.edges.Get(edge)

	if !above {
		if st.Rearm() {
			if err := j.edges.Put(edge, st); err != nil {
				j.logger.Error("edge state save failed", "edge", edge, "error", err)
			}
			j.logger.Info("level back below threshold, rearmed", "gauge", m.Def.Name)
		}
		return dispatch.Summary{}
	}
	if !st.RisingEdge(above) {
		j.logger.Debug("level persisting above threshold, already alerted", "gauge", m.Def.Name)
		return dispatch.Summary{}
	}

	n := domain.Notification{
		Identity: gaugeIdentity(m.Def.Name, r.Timestamp),
		Title:    "⚠️ Hochwasser: " + m.Def.Name,
		Text:     j.gaugeText(m.Def, r),
		Private:  false,
	}

	sum := j.dispatcher.Dispatch(ctx, n)
	if delivered(sum) {
		st.Disarm(r.Timestamp)
		if err := j.edges.Put(edge, st); err != nil {
			j.logger.Error("edge state save failed", "edge", edge, "error", err)
		}
		if j.metrics != nil {
			j.metrics.EdgeAlertsFired.WithLabelValues(edge).Inc()
		}
	}
	return sum
}

// gaugeIdentity keys one cross-up event. The reading timestamp makes a
// re-fetched reading dedup while a later, separate cross-up still alerts.
func gaugeIdentity(name string, ts time.Time) string {
	if ts.IsZero() {
		return "gauge|" + name + "|" + domain.Now().UTC().Format("2006-01-02")
	}
	return "gauge|" + name + "|" + ts.UTC().Format(time.RFC3339)
}

func (j *Gauges) gaugeText(def config.Gauge, r domain.GaugeReading) string {
	lines := []string{
		fmt.Sprintf("Pegelstand: %d cm (Schwelle: %d cm)", r.LevelCM, def.ThresholdCM),
	}
	if !r.Timestamp.IsZero() {
		lines = append(lines, fmt.Sprintf("Stand: %s", fmtGerman(r.Timestamp)))
	}
	lines = append(lines, fmt.Sprintf("Quelle: %s, Station %s", def.Source, def.Station))
	return strings.Join(lines, "\n")
}
