package models

import "time"

// SystemMetrics is a lightweight JSON snapshot of process counters.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cacheHitRatio"`
	CacheHits                uint64            `json:"cacheHits"`
	CacheMisses              uint64            `json:"cacheMisses"`
	RequestsTotal            uint64            `json:"requestsTotal"`
	AverageRequestDurationMs float64           `json:"averageRequestDurationMs"`
	DBQueryCount             uint64            `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64           `json:"averageDbQueryDurationMs"`
	TxRetries                uint64            `json:"txRetries"`
	AllocationOutcomes       map[string]uint64 `json:"allocationOutcomes"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generatedAt"`
}
