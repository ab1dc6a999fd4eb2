// internal/models/usage.go
package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operation types classify what kind of billable work a call performed.
// The set is a convention, not closed: unknown types are stored as-is and
// simply carry no cost.
const (
	OpFileConversionToText = "FileConversionToText"
	OpAudioConversion      = "AudioConversion"
	OpAudioTranscription   = "AudioTranscription"
	OpProjectInit          = "ProjectInit"
	OpSeoDataRetrieval     = "SeoDataRetrieval"
	OpReportGeneration     = "ReportGeneration"
)

// Well-known metadata keys. Callers may attach arbitrary extra string pairs.
const (
	MetadataKeyFilename      = "filename"
	MetadataKeyFormats       = "formats"
	MetadataKeyLanguage      = "language"
	MetadataKeyTimestamps    = "timestamps"
	MetadataKeyAudioDuration = "audio_duration_seconds"
	MetadataKeyRegion        = "region"
)

// UsageRecord is one immutable entry describing a single billable API call.
// Records are only ever appended; corrections are made by appending
// compensating records, never by editing history.
type UsageRecord struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp        time.Time          `bson:"timestamp" json:"timestamp"`
	CustomerID       string             `bson:"customer_id,omitempty" json:"customer_id,omitempty"`
	TeamID           string             `bson:"team_id,omitempty" json:"team_id,omitempty"`
	OrganizationName string             `bson:"organization_name,omitempty" json:"organization_name,omitempty"`
	FunctionName     string             `bson:"function_name" json:"function_name"`
	OperationType    string             `bson:"operation_type" json:"operation_type"`
	InputSizeBytes   int64              `bson:"input_size_bytes" json:"input_size_bytes"`
	OutputSizeBytes  int64              `bson:"output_size_bytes" json:"output_size_bytes"`
	DurationMs       int64              `bson:"duration_ms" json:"duration_ms"`
	StatusCode       int                `bson:"status_code" json:"status_code"`
	Success          bool               `bson:"success" json:"success"`
	ErrorMessage     string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	APIKeyHash       string             `bson:"api_key_hash,omitempty" json:"api_key_hash,omitempty"`
	ClientIPAddress  string             `bson:"client_ip_address,omitempty" json:"client_ip_address,omitempty"`
	UserAgent        string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	Metadata         map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CostUSD          *float64           `bson:"cost_usd,omitempty" json:"cost_usd,omitempty"`
}

// TrackUsageRequest describes a completed operation to be recorded.
type TrackUsageRequest struct {
	CustomerID       string
	TeamID           string
	OrganizationName string
	FunctionName     string
	OperationType    string
	InputSizeBytes   int64
	OutputSizeBytes  int64
	DurationMs       int64
	StatusCode       int
	Success          bool
	ErrorMessage     string
	APIKeyHash       string
	ClientIPAddress  string
	UserAgent        string
	Metadata         map[string]string
}

func (r *TrackUsageRequest) Validate() error {
	if r.FunctionName == "" {
		return errors.New("function_name is required")
	}
	if r.OperationType == "" {
		return errors.New("operation_type is required")
	}
	if r.InputSizeBytes < 0 || r.OutputSizeBytes < 0 {
		return errors.New("input_size_bytes and output_size_bytes must be non-negative")
	}
	if r.DurationMs < 0 {
		return errors.New("duration_ms must be non-negative")
	}
	if !r.Success && r.ErrorMessage == "" {
		return errors.New("error_message is required when success is false")
	}
	return nil
}

// ScanFilter narrows a store scan. Zero-value string fields mean "no filter";
// nil times mean an unbounded range. Start and End are both inclusive.
type ScanFilter struct {
	CustomerID       string
	OrganizationName string
	Start            *time.Time
	End              *time.Time
	Limit            int
	Offset           int
}

// OperationUsage is one aggregation pipeline row: totals for a single
// operation type over the filtered record set.
type OperationUsage struct {
	OperationType    string  `bson:"_id" json:"operation_type"`
	TotalCalls       int64   `bson:"total_calls" json:"total_calls"`
	SuccessCalls     int64   `bson:"success_calls" json:"success_calls"`
	FailedCalls      int64   `bson:"failed_calls" json:"failed_calls"`
	TotalCostUSD     float64 `bson:"total_cost_usd" json:"total_cost_usd"`
	TotalInputBytes  int64   `bson:"total_input_bytes" json:"total_input_bytes"`
	TotalOutputBytes int64   `bson:"total_output_bytes" json:"total_output_bytes"`
	TotalDurationMs  int64   `bson:"total_duration_ms" json:"total_duration_ms"`
}

// OperationCost is the per-operation-type slice of a billing summary.
type OperationCost struct {
	Count   int64   `json:"count"`
	CostUSD float64 `json:"cost_usd"`
}

// BillingSummary aggregates cost and count totals over a filtered record set.
type BillingSummary struct {
	TotalCalls       int64                    `json:"total_calls"`
	TotalCostUSD     float64                  `json:"total_cost_usd"`
	PerOperationType map[string]OperationCost `json:"per_operation_type"`
	TotalInputBytes  int64                    `json:"total_input_bytes"`
	TotalOutputBytes int64                    `json:"total_output_bytes"`
}

// UsageAnalytics aggregates operational metrics over a filtered record set.
type UsageAnalytics struct {
	TotalCalls            int64            `json:"total_calls"`
	SuccessRate           float64          `json:"success_rate"`
	AverageDurationMs     float64          `json:"average_duration_ms"`
	DurationP50Ms         float64          `json:"duration_p50_ms"`
	DurationP95Ms         float64          `json:"duration_p95_ms"`
	DurationP99Ms         float64          `json:"duration_p99_ms"`
	CallsPerOperationType map[string]int64 `json:"calls_per_operation_type"`
	ErrorsByType          map[string]int64 `json:"errors_by_type"`
}

// Pagination describes one page of a records listing.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Count   int  `json:"count"`
	HasMore bool `json:"has_more"`
}
