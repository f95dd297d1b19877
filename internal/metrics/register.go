package metrics

import (
	"database/sql"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once    sync.Once
	dbOnce  sync.Once
	pending []prometheus.Collector
)

// register is called by init() in each metrics file to enqueue collectors.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister registers all enqueued collectors with Prometheus exactly once.
func MustRegister() {
	once.Do(func() {
		if len(pending) > 0 {
			prometheus.MustRegister(pending...)
		}
	})
}

// RegisterDBStats exports connection pool statistics of db.
func RegisterDBStats(db *sql.DB) {
	dbOnce.Do(func() {
		prometheus.MustRegister(collectors.NewDBStatsCollector(db, "clip"))
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
