package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/river-level-etl/internal/adapter/http"
	"github.com/couchcryptid/river-level-etl/internal/adapter/feed"
	"github.com/couchcryptid/river-level-etl/internal/domain"
	"github.com/couchcryptid/river-level-etl/internal/observability"
	"github.com/couchcryptid/river-level-etl/internal/pipeline"
	"github.com/couchcryptid/river-level-etl/internal/store"
)

const liveFeed = "Date/Time (UTC),Level (m),Type\n" +
	"2024-06-01 10:00,1.70,Observed\n" +
	"2024-06-01 11:45,2.05,observed\n" +
	"2024-06-01 14:00,2.40,Forecast\n"

func TestAPI_RefreshThenRead(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(liveFeed))
	}))
	defer upstream.Close()

	metrics := observability.NewMetricsForTesting()
	client := feed.NewClient(upstream.URL, 5*time.Second, metrics, discardLogger())
	repo := store.New(store.NewMemorySlots(), upstream.URL, discardLogger())
	refresher := pipeline.New(client, repo, nil,
		pipeline.Settings{SafeLevel: 1.9, Window: domain.WindowDay}, discardLogger(), metrics)
	srv := httpadapter.NewServer(":0", refresher, discardLogger())

	rec := serve(t, srv, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(t, srv, http.MethodPost, "/api/v1/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	var result pipeline.RefreshResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Parsed)
	assert.Equal(t, domain.LabelUnsafe, result.Status.Label)

	rec = serve(t, srv, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, srv, http.MethodGet, "/api/v1/points")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)

	rec = serve(t, srv, http.MethodGet, "/api/v1/cache")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)
}

func TestAPI_UpstreamFailureIs502(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	metrics := observability.NewMetricsForTesting()
	client := feed.NewClient(upstream.URL, 5*time.Second, metrics, discardLogger())
	repo := store.New(store.NewMemorySlots(), upstream.URL, discardLogger())
	refresher := pipeline.New(client, repo, nil,
		pipeline.Settings{SafeLevel: 1.9, Window: domain.WindowDay}, discardLogger(), metrics)
	srv := httpadapter.NewServer(":0", refresher, discardLogger())

	rec := serve(t, srv, http.MethodPost, "/api/v1/refresh")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "status 503")

	rec = serve(t, srv, http.MethodGet, "/api/v1/cache")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
