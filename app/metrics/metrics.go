// Package metrics holds the process-wide request, cache and filter counters.
package metrics

import (
	"go.uber.org/atomic"
)

// Metrics is safe for concurrent use. Counters only ever increase.
type Metrics struct {
	RequestsTotal         *atomic.Int64
	RequestsAccepted      *atomic.Int64
	RequestsRateLimited   *atomic.Int64
	RequestsSuccess       *atomic.Int64
	RequestsError         *atomic.Int64
	CacheHits             *atomic.Int64
	CacheMisses           *atomic.Int64
	CacheWriteErrors      *atomic.Int64
	SuspiciousContentType *atomic.Int64
	FiltersApplied        *atomic.Int64
	ItemsRemoved          *atomic.Int64
}

func New() *Metrics {
	return &Metrics{
		RequestsTotal:         atomic.NewInt64(0),
		RequestsAccepted:      atomic.NewInt64(0),
		RequestsRateLimited:   atomic.NewInt64(0),
		RequestsSuccess:       atomic.NewInt64(0),
		RequestsError:         atomic.NewInt64(0),
		CacheHits:             atomic.NewInt64(0),
		CacheMisses:           atomic.NewInt64(0),
		CacheWriteErrors:      atomic.NewInt64(0),
		SuspiciousContentType: atomic.NewInt64(0),
		FiltersApplied:        atomic.NewInt64(0),
		ItemsRemoved:          atomic.NewInt64(0),
	}
}

type Snapshot struct {
	RequestsTotal         int64 `json:"requests_total"`
	RequestsAccepted      int64 `json:"requests_accepted"`
	RequestsRateLimited   int64 `json:"requests_rate_limited"`
	RequestsSuccess       int64 `json:"requests_success"`
	RequestsError         int64 `json:"requests_error"`
	CacheHits             int64 `json:"cache_hits"`
	CacheMisses           int64 `json:"cache_misses"`
	CacheWriteErrors      int64 `json:"cache_write_errors"`
	SuspiciousContentType int64 `json:"suspicious_content_type"`
	FiltersApplied        int64 `json:"filters_applied"`
	ItemsRemoved          int64 `json:"items_removed"`
}

// Snapshot reads every counter. Counters are read one by one, so the snapshot is not
// a single consistent cut across concurrent updates.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RequestsTotal:         m.RequestsTotal.Load(),
		RequestsAccepted:      m.RequestsAccepted.Load(),
		RequestsRateLimited:   m.RequestsRateLimited.Load(),
		RequestsSuccess:       m.RequestsSuccess.Load(),
		RequestsError:         m.RequestsError.Load(),
		CacheHits:             m.CacheHits.Load(),
		CacheMisses:           m.CacheMisses.Load(),
		CacheWriteErrors:      m.CacheWriteErrors.Load(),
		SuspiciousContentType: m.SuspiciousContentType.Load(),
		FiltersApplied:        m.FiltersApplied.Load(),
		ItemsRemoved:          m.ItemsRemoved.Load(),
	}
}

func (m *Metrics) counters() map[string]*atomic.Int64 {
	return map[string]*atomic.Int64{
		"requests":                m.RequestsTotal,
		"requests_accepted":       m.RequestsAccepted,
		"requests_rate_limited":   m.RequestsRateLimited,
		"requests_success":        m.RequestsSuccess,
		"requests_error":          m.RequestsError,
		"cache_hits":              m.CacheHits,
		"cache_misses":            m.CacheMisses,
		"cache_write_errors":      m.CacheWriteErrors,
		"suspicious_content_type": m.SuspiciousContentType,
		"filters_applied":         m.FiltersApplied,
		"items_removed":           m.ItemsRemoved,
	}
}
