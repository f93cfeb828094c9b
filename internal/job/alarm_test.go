package job_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandwacht/warnmelder/internal/dispatch"
	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/job"
)

// --- mocks ---

type mockAlarms struct {
	alarm domain.Alarm
	ok    bool
	err   error
}

func (m *mockAlarms) LastAlarm(_ context.Context) (domain.Alarm, bool, error) {
	return m.alarm, m.ok, m.err
}

// --- tests ---

func TestAlarm_DispatchesLatest(t *testing.T) {
	src := &mockAlarms{
		alarm: domain.Alarm{
			ID:         "4711",
			Keyword:    "F2 Wohnungsbrand",
			Message:    "Rauchentwicklung aus dem 2. OG",
			Address:    "Hauptstr. 1, Dormagen",
			Recipients: []string{"Führungsdienst", "Löschzug 1"},
			Time:       time.Date(2026, 8, 23, 3, 15, 0, 0, time.UTC),
		},
		ok: true,
	}
	disp := &mockDispatcher{result: dispatch.Summary{Sent: 1}}

	sum := job.NewAlarm(src, disp, slog.Default()).Run(context.Background())
	assert.Equal(t, dispatch.Summary{Sent: 1}, sum)

	require.Len(t, disp.notes, 1)
	n := disp.notes[0]
	assert.Equal(t, "alarm:4711", n.Identity)
	assert.Equal(t, "🚨 F2 Wohnungsbrand – Hauptstr. 1, Dormagen", n.Title)
	assert.Contains(t, n.Text, "Rauchentwicklung aus dem 2. OG")
	assert.Contains(t, n.Text, "Alarmiert: Führungsdienst, Löschzug 1")
	assert.Equal(t, []string{"Führungsdienst", "Löschzug 1"}, n.Groups)
	assert.True(t, n.Private)
}

func TestAlarm_NoAlarmAvailable(t *testing.T) {
	disp := &mockDispatcher{}
	sum := job.NewAlarm(&mockAlarms{ok: false}, disp, slog.Default()).Run(context.Background())
	assert.Equal(t, dispatch.Summary{}, sum)
	assert.Empty(t, disp.notes)
}

func TestAlarm_FetchFailureIsSilent(t *testing.T) {
	disp := &mockDispatcher{}
	src := &mockAlarms{err: errors.New("unauthorized")}
	sum := job.NewAlarm(src, disp, slog.Default()).Run(context.Background())
	assert.Equal(t, dispatch.Summary{}, sum)
	assert.Empty(t, disp.notes)
}

func TestAlarm_TitleWithoutAddress(t *testing.T) {
	src := &mockAlarms{alarm: domain.Alarm{ID: "1", Keyword: "Einsatz"}, ok: true}
	disp := &mockDispatcher{result: dispatch.Summary{Sent: 1}}

	job.NewAlarm(src, disp, slog.Default()).Run(context.Background())
	require.Len(t, disp.notes, 1)
	assert.Equal(t, "🚨 Einsatz", disp.notes[0].Title)
}
