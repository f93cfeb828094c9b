package pegel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/transport"
)

func testClient(baseURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Client{
		transport: transport.New(transport.Config{
			Retries:        1,
			ConnectTimeout: time.Second,
			ReadTimeout:    5 * time.Second,
		}, nil, logger, nil),
		baseURL: baseURL,
		logger:  logger,
	}
}

const stationsBody = `[
  {
    "shortname": "DÜSSELDORF",
    "timeseries": [
      {"shortname": "Q", "currentMeasurement": {"timestamp": "2026-08-23T10:00:00+02:00", "value": 2100}},
      {"shortname": "W", "currentMeasurement": {"timestamp": "2026-08-23T10:15:00+02:00", "value": 712.4}}
    ]
  },
  {
    "shortname": "DÜSSELDORF-HAFEN",
    "timeseries": [
      {"shortname": "W", "currentMeasurement": {"timestamp": "2026-08-23T10:00:00+02:00", "value": 650}}
    ]
  }
]`

func TestClient_CurrentLevel_ExactMatchWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "RHEIN", q.Get("waters"))
		assert.Equal(t, "true", q.Get("includeCurrentMeasurement"))
		w.Write([]byte(stationsBody))
	}))
	defer srv.Close()

	r, err := testClient(srv.URL).CurrentLevel(context.Background(), "Rhein", "DÜSSELDORF")
	require.NoError(t, err)
	assert.Equal(t, "DÜSSELDORF", r.Gauge)
	assert.Equal(t, 712, r.LevelCM) // rounded from 712.4
	assert.False(t, r.Timestamp.IsZero())
}

func TestClient_CurrentLevel_FallsBackToAnyLevelStation(t *testing.T) {
	// The wanted shortname has no W timeseries; the other station's is used.
	body := `[
	  {"shortname": "NEUSS", "timeseries": [{"shortname": "Q", "currentMeasurement": {"timestamp": "", "value": 5}}]},
	  {"shortname": "NEUSS-OT", "timeseries": [{"shortname": "W", "currentMeasurement": {"timestamp": "2026-08-23T10:00:00+02:00", "value": 300}}]}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	r, err := testClient(srv.URL).CurrentLevel(context.Background(), "RHEIN", "NEUSS")
	require.NoError(t, err)
	assert.Equal(t, 300, r.LevelCM)
}

func TestClient_CurrentLevel_TriesUmlautVariants(t *testing.T) {
	var fuzzies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fuzzy := r.URL.Query().Get("fuzzyId")
		fuzzies = append(fuzzies, fuzzy)
		if fuzzy != "duesseldorf" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(stationsBody))
	}))
	defer srv.Close()

	r, err := testClient(srv.URL).CurrentLevel(context.Background(), "RHEIN", "DÜSSELDORF")
	require.NoError(t, err)
	assert.Equal(t, 712, r.LevelCM)
	assert.Equal(t, []string{"DÜSSELDORF", "DUeSSELDORF", "duesseldorf"}, fuzzies)
}

func TestClient_CurrentLevel_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CurrentLevel(context.Background(), "RHEIN", "NIRGENDWO")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestNameVariants(t *testing.T) {
	assert.Equal(t, []string{"KÖLN", "KOeLN", "koeln"}, nameVariants("KÖLN"))
	assert.Equal(t, []string{"BONN", "bonn"}, nameVariants("BONN"))
}
