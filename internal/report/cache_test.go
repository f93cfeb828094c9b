package report_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandwacht/warnmelder/internal/report"
	"github.com/brandwacht/warnmelder/internal/store"
)

// --- mocks ---

type mockFetcher struct {
	body  string
	err   error
	calls int
}

func (m *mockFetcher) GetText(_ context.Context, _ string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.body, nil
}

type memStore struct {
	entry report.Entry
	has   bool
	saves int
}

func (m *memStore) Load() (report.Entry, bool, error) { return m.entry, m.has, nil }

func (m *memStore) Save(e report.Entry) error {
	m.entry, m.has = e, true
	m.saves++
	return nil
}

const pageV1 = `<html><body>
<p>Stand: 23.08.2026, 07:30 Uhr</p>
<h2>Wetterlage</h2>
<p>Ein Hoch bestimmt das Wetter.</p>
</body></html>`

const pageV2 = `<html><body>
<p>Stand: 23.08.2026, 13:30 Uhr</p>
<h2>Wetterlage</h2>
<p>Von Westen zieht ein Tief heran.</p>
</body></html>`

const pageNoMarker = `<html><body>
<h2>Wetterlage</h2>
<p>Ruhiges Spaetsommerwetter.</p>
</body></html>`

// --- tests ---

func TestCache_FirstFetchPopulates(t *testing.T) {
	fetcher := &mockFetcher{body: pageV1}
	st := &memStore{}
	c := report.New(fetcher, st, clockwork.NewFakeClock(), slog.Default(), nil)

	got := c.Get(context.Background(), "https://example.test/report", 6*time.Hour)

	assert.Contains(t, got, "Wetterlage")
	assert.Contains(t, got, "Ein Hoch bestimmt das Wetter.")
	assert.NotContains(t, got, "<p>")
	require.True(t, st.has)
	assert.True(t, st.entry.HasMarker)
	assert.Equal(t, "23.08.2026, 07:30 Uhr", st.entry.IssueMarker)
}

func TestCache_SameMarkerIsReusedBeyondTTL(t *testing.T) {
	fetcher := &mockFetcher{body: pageV1}
	st := &memStore{}
	clock := clockwork.NewFakeClock()
	c := report.New(fetcher, st, clock, slog.Default(), nil)

	first := c.Get(context.Background(), "https://example.test/report", time.Hour)

	// Far beyond the TTL: the marker alone proves the page is unchanged.
	clock.Advance(48 * time.Hour)
	second := c.Get(context.Background(), "https://example.test/report", time.Hour)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, st.saves)
	assert.Equal(t, 2, fetcher.calls)
}

func TestCache_NewMarkerReplaces(t *testing.T) {
	fetcher := &mockFetcher{body: pageV1}
	st := &memStore{}
	c := report.New(fetcher, st, clockwork.NewFakeClock(), slog.Default(), nil)

	first := c.Get(context.Background(), "https://example.test/report", time.Hour)

	fetcher.body = pageV2
	second := c.Get(context.Background(), "https://example.test/report", time.Hour)

	assert.NotEqual(t, first, second)
	assert.Contains(t, second, "Tief")
	assert.Equal(t, "23.08.2026, 13:30 Uhr", st.entry.IssueMarker)
	assert.Equal(t, 2, st.saves)
}

func TestCache_MarkerlessUsesFingerprintAndTTL(t *testing.T) {
	fetcher := &mockFetcher{body: pageNoMarker}
	st := &memStore{}
	clock := clockwork.NewFakeClock()
	c := report.New(fetcher, st, clock, slog.Default(), nil)

	c.Get(context.Background(), "https://example.test/report", time.Hour)
	require.Equal(t, 1, fetcher.calls)
	assert.False(t, st.entry.HasMarker)

	// Within TTL: served from cache without a fetch.
	clock.Advance(30 * time.Minute)
	c.Get(context.Background(), "https://example.test/report", time.Hour)
	assert.Equal(t, 1, fetcher.calls)

	// Past TTL: refetched, and the entry's timestamp is refreshed.
	clock.Advance(2 * time.Hour)
	c.Get(context.Background(), "https://example.test/report", time.Hour)
	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, 2, st.saves)
}

func TestCache_FetchFailureServesCachedText(t *testing.T) {
	fetcher := &mockFetcher{body: pageV1}
	st := &memStore{}
	clock := clockwork.NewFakeClock()
	c := report.New(fetcher, st, clock, slog.Default(), nil)

	first := c.Get(context.Background(), "https://example.test/report", time.Hour)

	clock.Advance(2 * time.Hour)
	fetcher.err = errors.New("upstream down")
	second := c.Get(context.Background(), "https://example.test/report", time.Hour)

	assert.Equal(t, first, second)
}

func TestCache_FetchFailureWithoutCacheIsEmpty(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("upstream down")}
	c := report.New(fetcher, &memStore{}, clockwork.NewFakeClock(), slog.Default(), nil)

	assert.Empty(t, c.Get(context.Background(), "https://example.test/report", time.Hour))
}

func TestCache_WithFileBackedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	fetcher := &mockFetcher{body: pageV1}
	clock := clockwork.NewFakeClock()

	c := report.New(fetcher, store.NewReportStore(path), clock, slog.Default(), nil)
	first := c.Get(context.Background(), "https://example.test/report", time.Hour)

	// A fresh cache over the same file reuses the persisted entry.
	c2 := report.New(fetcher, store.NewReportStore(path), clock, slog.Default(), nil)
	second := c2.Get(context.Background(), "https://example.test/report", time.Hour)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, fetcher.calls)
}
