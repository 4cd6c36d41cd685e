package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status  string `json:"status"` // healthy, degraded
	Backend string `json:"backend"`
}

// SummaryMetrics is returned by GET /v1/metrics/summary.
type SummaryMetrics struct {
	SubmitsTotal       int64   `json:"submitsTotal"`
	SubmitErrors       int64   `json:"submitErrors"`
	SnapshotsApplied   int64   `json:"snapshotsApplied"`
	StaleSnapshots     int64   `json:"staleSnapshots"`
	SubscriptionErrors int64   `json:"subscriptionErrors"`
	CacheHitRate       float64 `json:"cacheHitRate"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
