package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveFetch("ids-index", nil)
	m.ObserveFetch("ids-index", errors.New("boom"))
	m.ObserveFetch("ids-index", nil)
	m.ObserveMutation("apply", nil)
	m.ObserveBackfill(errors.New("404"))
	m.ObserveStale("applications-list")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetches.WithLabelValues("ids-index", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("ids-index", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("apply", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backfills.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.staleDiscarded.WithLabelValues("applications-list")))
}

func TestSetCanonicalResets(t *testing.T) {
	m := New()
	m.SetCanonical(map[string]int{"optimistic": 2, "ids-index": 1})
	m.SetCanonical(map[string]int{"ids-index": 3})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.canonical.WithLabelValues("ids-index")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.canonical))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFetch("x", nil)
	m.ObserveMutation("apply", nil)
	m.ObserveBackfill(nil)
	m.ObserveStale("x")
	m.SetCanonical(map[string]int{"x": 1})
	m.ObserveHTTP("/", 200)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/projects/{id}", 200)

	ts := httptest.NewServer(m.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "applytrack_sandbox_http_requests_total")
}
