package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NewServer builds the operational HTTP server: /metrics, an index page, and
// whatever extra routes mount registers.
func NewServer(port int, g prometheus.Gatherer, mount func(mux *http.ServeMux)) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>Page Index</h1><p><a href="/metrics">/metrics</a> | <a href="/health/ready">/health/ready</a></p></body></html>`)
	})
	if mount != nil {
		mount(mux)
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
