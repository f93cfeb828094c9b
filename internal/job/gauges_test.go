package job_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandwacht/warnmelder/internal/config"
	"github.com/brandwacht/warnmelder/internal/dispatch"
	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/job"
)

func rheinGauge() config.Gauge {
	return config.Gauge{
		Name:        "Rhein – Pegel Düsseldorf",
		Source:      config.GaugeSourcePegelonline,
		Water:       "RHEIN",
		Station:     "DÜSSELDORF",
		ThresholdCM: 710,
	}
}

func fixedLevel(cm int) job.LevelFunc {
	return func(context.Context) (domain.GaugeReading, error) {
		return domain.GaugeReading{
			Gauge:     "DÜSSELDORF",
			LevelCM:   cm,
			Timestamp: time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
		}, nil
	}
}

func TestGauges_CrossUpFiresOnce(t *testing.T) {
	def := rheinGauge()
	level := 700
	mon := job.GaugeMonitor{Def: def, Read: func(context.Context) (domain.GaugeReading, error) {
		return domain.GaugeReading{LevelCM: level, Timestamp: time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)}, nil
	}}
	disp := &mockDispatcher{result: dispatch.Summary{Sent: 1}}
	edges := newMemEdges()
	j := job.NewGauges([]job.GaugeMonitor{mon}, disp, edges, slog.Default(), nil)

	// Below threshold: nothing.
	assert.Equal(t, dispatch.Summary{}, j.Run(context.Background()))

	// Crosses up: one alert, then silence while it stays high.
	level = 715
	assert.Equal(t, dispatch.Summary{Sent: 1}, j.Run(context.Background()))
	assert.Equal(t, dispatch.Summary{}, j.Run(context.Background()))
	require.Len(t, disp.notes, 1)

	n := disp.notes[0]
	assert.Contains(t, n.Title, "Rhein – Pegel Düsseldorf")
	assert.Contains(t, n.Text, "715 cm")
	assert.Contains(t, n.Text, "710 cm")

	// Falls below and crosses again: a second alert.
	level = 690
	assert.Equal(t, dispatch.Summary{}, j.Run(context.Background()))
	level = 712
	assert.Equal(t, dispatch.Summary{Sent: 1}, j.Run(context.Background()))
	assert.Len(t, disp.notes, 2)
}

func TestGauges_ThresholdIsInclusive(t *testing.T) {
	mon := job.GaugeMonitor{Def: rheinGauge(), Read: fixedLevel(710)}
	disp := &mockDispatcher{result: dispatch.Summary{Sent: 1}}
	j := job.NewGauges([]job.GaugeMonitor{mon}, disp, newMemEdges(), slog.Default(), nil)

	assert.Equal(t, dispatch.Summary{Sent: 1}, j.Run(context.Background()))
}

func TestGauges_ReadFailureIsIsolated(t *testing.T) {
	broken := job.GaugeMonitor{
		Def: config.Gauge{Name: "Erft – Pegel Neubrück", Source: config.GaugeSourceErftverband, Station: "Neubrück (Erft)", ThresholdCM: 145},
		Read: func(context.Context) (domain.GaugeReading, error) {
			return domain.GaugeReading{}, fmt.Errorf("station: %w", domain.ErrNotFound)
		},
	}
	working := job.GaugeMonitor{Def: rheinGauge(), Read: fixedLevel(720)}
	disp := &mockDispatcher{result: dispatch.Summary{Sent: 1}}
	j := job.NewGauges([]job.GaugeMonitor{broken, working}, disp, newMemEdges(), slog.Default(), nil)

	sum := j.Run(context.Background())
	assert.Equal(t, dispatch.Summary{Sent: 1}, sum)
	require.Len(t, disp.notes, 1)
	assert.Contains(t, disp.notes[0].Title, "Rhein")
}

func TestGauges_FailedDeliveryRetriesNextRun(t *testing.T) {
	mon := job.GaugeMonitor{Def: rheinGauge(), Read: fixedLevel(720)}
	disp := &mockDispatcher{result: dispatch.Summary{Failed: 1}}
	edges := newMemEdges()
	j := job.NewGauges([]job.GaugeMonitor{mon}, disp, edges, slog.Default(), nil)

	j.Run(context.Background())
	assert.True(t, edges.Get("gauge|Rhein – Pegel Düsseldorf").Armed)

	disp.result = dispatch.Summary{Sent: 1}
	j.Run(context.Background())
	require.Len(t, disp.notes, 2)
	// Same reading, same identity: the seen store would dedup a double send.
	assert.Equal(t, disp.notes[0].Identity, disp.notes[1].Identity)
	assert.False(t, edges.Get("gauge|Rhein – Pegel Düsseldorf").Armed)
}

func TestGauges_IndependentStatePerGauge(t *testing.T) {
	a := job.GaugeMonitor{Def: rheinGauge(), Read: fixedLevel(720)}
	b := job.GaugeMonitor{
		Def: config.Gauge{Name: "Erft – Pegel Neubrück", Source: config.GaugeSourceErftverband, Station: "Neubrück (Erft)", ThresholdCM: 145},
		Read: func(context.Context) (domain.GaugeReading, error) {
			return domain.GaugeReading{LevelCM: 100, Timestamp: time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)}, nil
		},
	}
	disp := &mockDispatcher{result: dispatch.Summary{Sent: 1}}
	edges := newMemEdges()
	j := job.NewGauges([]job.GaugeMonitor{a, b}, disp, edges, slog.Default(), nil)

	j.Run(context.Background())
	assert.False(t, edges.Get("gauge|Rhein – Pegel Düsseldorf").Armed)
	assert.True(t, edges.Get("gauge|Erft – Pegel Neubrück").Armed)
	require.Len(t, disp.notes, 1)
}

func TestGauges_ErrorsOtherThanNotFound(t *testing.T) {
	mon := job.GaugeMonitor{Def: rheinGauge(), Read: func(context.Context) (domain.GaugeReading, error) {
		return domain.GaugeReading{}, errors.New("upstream 503")
	}}
	disp := &mockDispatcher{}
	j := job.NewGauges([]job.GaugeMonitor{mon}, disp, newMemEdges(), slog.Default(), nil)

	assert.Equal(t, dispatch.Summary{}, j.Run(context.Background()))
	assert.Empty(t, disp.notes)
}
