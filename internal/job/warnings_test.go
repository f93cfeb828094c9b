package job_test

import (
	"context"
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

type mockWarnings struct {
	warnings []domain.Warning
}

func (m *mockWarnings) Fetch(_ context.Context, _ []string) []domain.Warning {
	return m.warnings
}

type mockReport struct {
	text  string
	calls int
}

func (m *mockReport) Get(_ context.Context, _ string, _ time.Duration) string {
	m.calls++
	return m.text
}

func warning(id string, sev domain.Severity) domain.Warning {
	return domain.Warning{
		Identifier:  id,
		Headline:    "Amtliche WARNUNG vor GEWITTER",
		Event:       "GEWITTER",
		Severity:    sev,
		Description: "Es treten Gewitter auf.",
		Instruction: "Aufenthalt im Freien vermeiden.",
		Onset:       time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		Expires:     time.Date(2026, 8, 23, 18, 0, 0, 0, time.UTC),
		AreaName:    "Stadt Dormagen",
		Web:         "https://www.dwd.de/warnungen",
	}
}

// --- tests ---

func TestWarnings_DispatchesEligible(t *testing.T) {
	src := &mockWarnings{warnings: []domain.Warning{warning("w-1", domain.SeveritySevere)}}
	disp := &mockDispatcher{result: dispatch.Summary{Sent: 1}}

	j := job.NewWarnings(src, nil, "", 0, disp, []string{"105162000"}, domain.SeverityModerate, slog.Default())
	sum := j.Run(context.Background())

	assert.Equal(t, dispatch.Summary{Sent: 1}, sum)
	require.Len(t, disp.notes, 1)
	n := disp.notes[0]
	assert.Equal(t, "w-1", n.Identity)
	assert.Equal(t, "⚠️ Amtliche WARNUNG vor GEWITTER", n.Title)
	assert.Contains(t, n.Text, "Es treten Gewitter auf.")
	assert.Contains(t, n.Text, "Aufenthalt im Freien vermeiden.")
	assert.Contains(t, n.Text, "Gültig von 23.08.2026 12:00 Uhr bis 23.08.2026 18:00 Uhr")
	assert.Contains(t, n.Text, "Gebiet: Stadt Dormagen")
	assert.Contains(t, n.Text, "Stufe: severe")
	assert.True(t, n.Private)
}

func TestWarnings_FiltersBelowMinSeverity(t *testing.T) {
	src := &mockWarnings{warnings: []domain.Warning{
		warning("w-minor", domain.SeverityMinor),
		warning("w-moderate", domain.SeverityModerate),
		warning("w-unknown", domain.SeverityUnknown),
	}}
	disp := &mockDispatcher{result: dispatch.Summary{Sent: 1}}

	j := job.NewWarnings(src, nil, "", 0, disp, nil, domain.SeverityModerate, slog.Default())
	j.Run(context.Background())

	require.Len(t, disp.notes, 1)
	assert.Equal(t, "w-moderate", disp.notes[0].Identity)
}

func TestWarnings_AppendsReportOnce(t *testing.T) {
	src := &mockWarnings{warnings: []domain.Warning{
		warning("w-1", domain.SeveritySevere),
		warning("w-2", domain.SeverityExtreme),
	}}
	disp := &mockDispatcher{result: dispatch.Summary{Sent: 1}}
	rep := &mockReport{text: "Wetterlage: Ein Hoch bestimmt das Wetter."}

	j := job.NewWarnings(src, rep, "https://example.test/report", 6*time.Hour, disp, nil, domain.SeverityModerate, slog.Default())
	j.Run(context.Background())

	require.Len(t, disp.notes, 2)
	for _, n := range disp.notes {
		assert.Contains(t, n.Text, "Ein Hoch bestimmt das Wetter.")
	}
	// The report is fetched once per run, not once per warning.
	assert.Equal(t, 1, rep.calls)
}

func TestWarnings_NoEligibleSkipsReportFetch(t *testing.T) {
	src := &mockWarnings{warnings: []domain.Warning{warning("w-1", domain.SeverityMinor)}}
	disp := &mockDispatcher{}
	rep := &mockReport{text: "Bericht"}

	j := job.NewWarnings(src, rep, "https://example.test/report", 6*time.Hour, disp, nil, domain.SeverityModerate, slog.Default())
	sum := j.Run(context.Background())

	assert.Equal(t, dispatch.Summary{}, sum)
	assert.Equal(t, 0, rep.calls)
}

func TestWarnings_EventFallbackTitle(t *testing.T) {
	w := warning("w-1", domain.SeveritySevere)
	w.Headline = ""
	src := &mockWarnings{warnings: []domain.Warning{w}}
	disp := &mockDispatcher{result: dispatch.Summary{Sent: 1}}

	j := job.NewWarnings(src, nil, "", 0, disp, nil, domain.SeverityModerate, slog.Default())
	j.Run(context.Background())

	require.Len(t, disp.notes, 1)
	assert.Equal(t, "⚠️ GEWITTER", disp.notes[0].Title)
}
