// internal/models/response.go
package models

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type TrackUsageResponse struct {
	Message  string   `json:"message"`
	RecordID string   `json:"record_id"`
	CostUSD  *float64 `json:"cost_usd,omitempty"`
}
