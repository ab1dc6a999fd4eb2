// internal/handlers/track.go
package handlers

import (
	"net/http"
	"strings"

	"usage-metering-backend/internal/middleware"
	"usage-metering-backend/internal/models"
	"usage-metering-backend/internal/services"
	apperrors "usage-metering-backend/pkg/errors"
	"usage-metering-backend/pkg/utils"
)

// Attribution headers supplied by callers for billing grouping. All optional:
// missing attribution never blocks tracking.
const (
	CustomerIDHeader       = "x-customer-id"
	TeamIDHeader           = "x-team-id"
	OrganizationNameHeader = "x-organization-name"
)

type TrackHandler struct {
	usageService services.UsageService
}

func NewTrackHandler(usageService services.UsageService) *TrackHandler {
	return &TrackHandler{
		usageService: usageService,
	}
}

// TrackUsageBody is the completed-operation descriptor reported by a
// business operation after it finishes.
type TrackUsageBody struct {
	FunctionName    string            `json:"function_name"`
	OperationType   string            `json:"operation_type"`
	InputSizeBytes  int64             `json:"input_size_bytes"`
	OutputSizeBytes int64             `json:"output_size_bytes"`
	DurationMs      int64             `json:"duration_ms"`
	StatusCode      int               `json:"status_code"`
	Success         bool              `json:"success"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// TrackUsage ingests one completed operation. The endpoint's purpose is the
// append itself, so store failures surface as 500 here; in-process callers
// that must not fail their response use the service's async variant instead.
func (h *TrackHandler) TrackUsage(w http.ResponseWriter, r *http.Request) {
	var body TrackUsageBody
	if err := utils.DecodeJSONBody(r, &body); err != nil {
		utils.SendErrorResponse(w, err)
		return
	}

	req := &models.TrackUsageRequest{
		CustomerID:       r.Header.Get(CustomerIDHeader),
		TeamID:           r.Header.Get(TeamIDHeader),
		OrganizationName: r.Header.Get(OrganizationNameHeader),
		FunctionName:     body.FunctionName,
		OperationType:    body.OperationType,
		InputSizeBytes:   body.InputSizeBytes,
		OutputSizeBytes:  body.OutputSizeBytes,
		DurationMs:       body.DurationMs,
		StatusCode:       body.StatusCode,
		Success:          body.Success,
		ErrorMessage:     body.ErrorMessage,
		ClientIPAddress:  getClientIP(r),
		UserAgent:        r.UserAgent(),
		Metadata:         body.Metadata,
	}
	if hash, ok := middleware.GetAPIKeyHashFromContext(r.Context()); ok {
		req.APIKeyHash = hash
	}

	record, err := h.usageService.TrackUsage(r.Context(), req)
	if err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrValidation) {
			utils.SendErrorResponse(w, err)
			return
		}
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrInternalServer,
			http.StatusInternalServerError,
			"failed to record usage: "+err.Error(),
		))
		return
	}

	utils.SendJSONResponse(w, http.StatusCreated, models.TrackUsageResponse{
		Message:  "usage recorded",
		RecordID: record.ID.Hex(),
		CostUSD:  record.CostUSD,
	})
}

func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}

	// Strip the port from RemoteAddr
	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}
