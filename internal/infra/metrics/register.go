package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors enqueue themselves from init() in each file of this package.
// MustRegister flushes the queue into the default registry exactly once, so
// tests that never scrape can skip registration entirely.

var (
	registerOnce sync.Once
	queued       []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	queued = append(queued, cs...)
}

func MustRegister() {
	registerOnce.Do(func() {
		for _, c := range queued {
			prometheus.DefaultRegisterer.MustRegister(c)
		}
		queued = nil
	})
}

// norm keeps label values lowercase and trimmed so cardinality never splits
// on formatting.
func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
