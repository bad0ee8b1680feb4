package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// PrometheusHandler exposes Metrics in Prometheus' text exposition format.
//
// All event counters are exported as a single metric with an `event` label,
// which keeps the in-process registry simple while still allowing scraping.
// Registered gauges are exported under their own names.
func PrometheusHandler(m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		snap := m.Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = fmt.Fprintln(w, "# HELP vstream_signaling_events_total Internal signaling event counters.")
		_, _ = fmt.Fprintln(w, "# TYPE vstream_signaling_events_total counter")
		for _, k := range keys {
			escaped := strings.NewReplacer("\\", "\\\\", "\"", "\\\"").Replace(k)
			_, _ = fmt.Fprintf(w, "vstream_signaling_events_total{event=\"%s\"} %d\n", escaped, snap[k])
		}

		gauges := m.Gauges()
		names := make([]string, 0, len(gauges))
		for k := range gauges {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "# TYPE vstream_%s gauge\n", name)
			_, _ = fmt.Fprintf(w, "vstream_%s %d\n", name, gauges[name]())
		}
	})
}
