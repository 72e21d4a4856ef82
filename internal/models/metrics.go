package models

import "time"

// SystemMetrics is a JSON summary of the instrumentation counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	ActiveWizards            int       `json:"active_wizards"`
	SubmissionsSucceeded     uint64    `json:"submissions_succeeded"`
	SubmissionsFailed        uint64    `json:"submissions_failed"`
	StaleLookupsDiscarded    uint64    `json:"stale_lookups_discarded"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
