package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DocsIndexedTotal.Inc()
	m.SearchQueriesTotal.WithLabelValues("hit").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")))

	// A second set on a fresh registry must not collide.
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}

func TestServerServesMetricsAndMounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.DocumentCount.Set(3)

	srv := NewServer(0, reg, func(mux *http.ServeMux) {
		mux.HandleFunc("/extra", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "pageindex_documents 3")

	resp, err = http.Get(ts.URL + "/extra")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
