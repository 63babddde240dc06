package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rss_sift"

// Register exposes the counters and the cache size on reg. The collectors read the
// atomic counters on scrape, so Metrics stays the single source of truth.
func (m *Metrics) Register(reg prometheus.Registerer, cacheSizeBytes func() int64) error {
	for name, counter := range m.counters() {
		c := counter
		collector := prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      name + "_total",
				Help:      fmt.Sprintf("Total number of %s.", humanize(name)),
			},
			func() float64 { return float64(c.Load()) },
		)
		if err := reg.Register(collector); err != nil {
			return fmt.Errorf("failed to register %s collector: %w", name, err)
		}
	}

	if cacheSizeBytes != nil {
		gauge := prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_size_bytes",
				Help:      "Current size of the on-disk feed cache in bytes.",
			},
			func() float64 { return float64(cacheSizeBytes()) },
		)
		if err := reg.Register(gauge); err != nil {
			return fmt.Errorf("failed to register cache size collector: %w", err)
		}
	}

	return nil
}

func humanize(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
