// internal/handlers/usage.go
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"usage-metering-backend/internal/models"
	"usage-metering-backend/internal/services"
	apperrors "usage-metering-backend/pkg/errors"
	"usage-metering-backend/pkg/utils"
)

const (
	defaultSummaryRangeDays = 30
	defaultRecordsRangeDays = 7

	defaultRecordsLimit = 100
	maxRecordsLimit     = 1000
)

type UsageHandler struct {
	usageService services.UsageService
}

func NewUsageHandler(usageService services.UsageService) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
	}
}

// GetBillingSummary serves aggregated cost totals for exactly one of
// customerId or organizationName over a date range (default last 30 days).
func (h *UsageHandler) GetBillingSummary(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")
	organizationName := r.URL.Query().Get("organizationName")
	if (customerID == "") == (organizationName == "") {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrValidation,
			http.StatusBadRequest,
			"exactly one of customerId or organizationName is required",
		))
		return
	}

	start, end, err := parseDateRange(r, defaultSummaryRangeDays)
	if err != nil {
		utils.SendErrorResponse(w, err)
		return
	}

	summary, err := h.usageService.GetBillingSummary(r.Context(), customerID, organizationName, start, end)
	if err != nil {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrInternalServer,
			http.StatusInternalServerError,
			"failed to get billing summary: "+err.Error(),
		))
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"date_range": map[string]interface{}{
			"start_date": start,
			"end_date":   end,
		},
	})
}

// GetUsageAnalytics serves operational metrics for one customer over a date
// range (default last 30 days).
func (h *UsageHandler) GetUsageAnalytics(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrValidation,
			http.StatusBadRequest,
			"customerId is required",
		))
		return
	}

	start, end, err := parseDateRange(r, defaultSummaryRangeDays)
	if err != nil {
		utils.SendErrorResponse(w, err)
		return
	}

	analytics, err := h.usageService.GetUsageAnalytics(r.Context(), customerID, start, end)
	if err != nil {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrInternalServer,
			http.StatusInternalServerError,
			"failed to get usage analytics: "+err.Error(),
		))
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"customer_id": customerID,
		"analytics":   analytics,
		"date_range": map[string]interface{}{
			"start_date": start,
			"end_date":   end,
		},
	})
}

// ListUsageRecords serves one page of a customer's records, most recent
// first (default last 7 days).
func (h *UsageHandler) ListUsageRecords(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrValidation,
			http.StatusBadRequest,
			"customerId is required",
		))
		return
	}

	limit := parseIntQuery(r, "limit", defaultRecordsLimit)
	offset := parseIntQuery(r, "offset", 0)
	if limit < 1 || limit > maxRecordsLimit {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrValidation,
			http.StatusBadRequest,
			"limit must be between 1 and 1000",
		))
		return
	}
	if offset < 0 {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrValidation,
			http.StatusBadRequest,
			"offset must be non-negative",
		))
		return
	}

	start, end, err := parseDateRange(r, defaultRecordsRangeDays)
	if err != nil {
		utils.SendErrorResponse(w, err)
		return
	}

	records, err := h.usageService.ListUsageRecords(r.Context(), customerID, start, end, limit, offset)
	if err != nil {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrInternalServer,
			http.StatusInternalServerError,
			"failed to list usage records: "+err.Error(),
		))
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"customer_id": customerID,
		"records":     records,
		"pagination": models.Pagination{
			Limit:   limit,
			Offset:  offset,
			Count:   len(records),
			HasMore: len(records) == limit,
		},
	})
}

// GetOperationStats serves per-operation-type totals across all customers.
func (h *UsageHandler) GetOperationStats(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, defaultSummaryRangeDays)
	if err != nil {
		utils.SendErrorResponse(w, err)
		return
	}

	stats, err := h.usageService.GetOperationStats(r.Context(), start, end)
	if err != nil {
		utils.SendErrorResponse(w, apperrors.NewAppError(
			apperrors.ErrInternalServer,
			http.StatusInternalServerError,
			"failed to get operation stats: "+err.Error(),
		))
		return
	}

	utils.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"stats":            stats,
		"total_operations": len(stats),
		"date_range": map[string]interface{}{
			"start_date": start,
			"end_date":   end,
		},
	})
}

// parseDateRange reads startDate/endDate (YYYY-MM-DD) from the query.
// The end day is included in full; malformed dates are a validation error.
func parseDateRange(r *http.Request, defaultDays int) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -defaultDays)
	end := now

	if startStr := r.URL.Query().Get("startDate"); startStr != "" {
		parsed, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewAppError(
				apperrors.ErrValidation,
				http.StatusBadRequest,
				"startDate must be in YYYY-MM-DD format",
			)
		}
		start = parsed
	}

	if endStr := r.URL.Query().Get("endDate"); endStr != "" {
		parsed, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewAppError(
				apperrors.ErrValidation,
				http.StatusBadRequest,
				"endDate must be in YYYY-MM-DD format",
			)
		}
		// Include the entire end day
		end = parsed.Add(24*time.Hour - time.Millisecond)
	}

	return start, end, nil
}

func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	if str := r.URL.Query().Get(key); str != "" {
		if val, err := strconv.Atoi(str); err == nil {
			return val
		}
	}
	return defaultValue
}
