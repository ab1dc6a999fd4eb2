// internal/services/usage_service.go
package services

import (
	"context"
	"net/http"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"usage-metering-backend/internal/models"
	"usage-metering-backend/internal/repository"
	apperrors "usage-metering-backend/pkg/errors"
)

// trackTimeout bounds a detached tracking write. It deliberately does not
// inherit the caller's context: a cancelled inbound request must not abort an
// in-flight append.
const trackTimeout = 5 * time.Second

type UsageService interface {
	TrackUsage(ctx context.Context, req *models.TrackUsageRequest) (*models.UsageRecord, error)
	TrackUsageAsync(req *models.TrackUsageRequest)
	GetBillingSummary(ctx context.Context, customerID, organizationName string, start, end time.Time) (*models.BillingSummary, error)
	GetUsageAnalytics(ctx context.Context, customerID string, start, end time.Time) (*models.UsageAnalytics, error)
	GetOperationStats(ctx context.Context, start, end time.Time) ([]models.OperationUsage, error)
	ListUsageRecords(ctx context.Context, customerID string, start, end time.Time, limit, offset int) ([]models.UsageRecord, error)
}

type usageService struct {
	usageRepo  repository.UsageRepository
	calculator CostCalculator
}

func NewUsageService(usageRepo repository.UsageRepository, calculator CostCalculator) UsageService {
	return &usageService{
		usageRepo:  usageRepo,
		calculator: calculator,
	}
}

// TrackUsage appends exactly one record, or fails loudly. Missing attribution
// never blocks tracking; an undeterminable cost is stored as absent.
func (s *usageService) TrackUsage(ctx context.Context, req *models.TrackUsageRequest) (*models.UsageRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrValidation, http.StatusBadRequest, err.Error())
	}

	errorMessage := req.ErrorMessage
	if req.Success {
		// success implies an empty error message
		errorMessage = ""
	}

	record := &models.UsageRecord{
		CustomerID:       req.CustomerID,
		TeamID:           req.TeamID,
		OrganizationName: req.OrganizationName,
		FunctionName:     req.FunctionName,
		OperationType:    req.OperationType,
		InputSizeBytes:   req.InputSizeBytes,
		OutputSizeBytes:  req.OutputSizeBytes,
		DurationMs:       req.DurationMs,
		StatusCode:       req.StatusCode,
		Success:          req.Success,
		ErrorMessage:     errorMessage,
		APIKeyHash:       req.APIKeyHash,
		ClientIPAddress:  req.ClientIPAddress,
		UserAgent:        req.UserAgent,
		Metadata:         req.Metadata,
	}

	if cost := s.calculator.ComputeCost(req.OperationType, req.InputSizeBytes, req.Metadata); cost != nil {
		costUSD, _ := cost.Round(6).Float64()
		record.CostUSD = &costUSD
	}

	if err := s.usageRepo.Append(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// TrackUsageAsync records usage without blocking or failing the caller.
// Errors are logged and swallowed; the write runs on its own detached
// context so it completes independently of the triggering request.
func (s *usageService) TrackUsageAsync(req *models.TrackUsageRequest) {
	go func() {
		trackCtx, cancel := context.WithTimeout(context.Background(), trackTimeout)
		defer cancel()

		if _, err := s.TrackUsage(trackCtx, req); err != nil {
			zap.L().Error("Failed to track usage",
				zap.String("function_name", req.FunctionName),
				zap.String("operation_type", req.OperationType),
				zap.Error(err))
		}
	}()
}

// GetBillingSummary folds matching records into cost and count totals.
// An empty match yields a zero-valued summary, never an error.
func (s *usageService) GetBillingSummary(ctx context.Context, customerID, organizationName string, start, end time.Time) (*models.BillingSummary, error) {
	filter := models.ScanFilter{
		CustomerID:       customerID,
		OrganizationName: organizationName,
		Start:            &start,
		End:              &end,
	}

	rows, err := s.usageRepo.AggregateByOperation(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary := &models.BillingSummary{
		PerOperationType: make(map[string]models.OperationCost, len(rows)),
	}
	for _, row := range rows {
		summary.TotalCalls += row.TotalCalls
		summary.TotalCostUSD += row.TotalCostUSD
		summary.TotalInputBytes += row.TotalInputBytes
		summary.TotalOutputBytes += row.TotalOutputBytes
		summary.PerOperationType[row.OperationType] = models.OperationCost{
			Count:   row.TotalCalls,
			CostUSD: row.TotalCostUSD,
		}
	}

	return summary, nil
}

// GetUsageAnalytics projects the same fold into operational metrics, plus
// duration percentiles over the raw durations. The two store reads run
// concurrently; aggregation itself is order-independent.
func (s *usageService) GetUsageAnalytics(ctx context.Context, customerID string, start, end time.Time) (*models.UsageAnalytics, error) {
	filter := models.ScanFilter{
		CustomerID: customerID,
		Start:      &start,
		End:        &end,
	}

	var (
		rows      []models.OperationUsage
		durations []float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.usageRepo.AggregateByOperation(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		durations, err = s.usageRepo.DurationsMs(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	analytics := &models.UsageAnalytics{
		CallsPerOperationType: make(map[string]int64, len(rows)),
		ErrorsByType:          make(map[string]int64),
	}

	var successCalls, totalDurationMs int64
	for _, row := range rows {
		analytics.TotalCalls += row.TotalCalls
		successCalls += row.SuccessCalls
		totalDurationMs += row.TotalDurationMs
		analytics.CallsPerOperationType[row.OperationType] = row.TotalCalls
		if row.FailedCalls > 0 {
			analytics.ErrorsByType[row.OperationType] = row.FailedCalls
		}
	}

	if analytics.TotalCalls > 0 {
		analytics.SuccessRate = float64(successCalls) / float64(analytics.TotalCalls)
		analytics.AverageDurationMs = float64(totalDurationMs) / float64(analytics.TotalCalls)
	}

	if len(durations) > 0 {
		analytics.DurationP50Ms = percentile(durations, 50)
		analytics.DurationP95Ms = percentile(durations, 95)
		analytics.DurationP99Ms = percentile(durations, 99)
	}

	return analytics, nil
}

// GetOperationStats returns per-operation totals across all customers.
func (s *usageService) GetOperationStats(ctx context.Context, start, end time.Time) ([]models.OperationUsage, error) {
	filter := models.ScanFilter{
		Start: &start,
		End:   &end,
	}
	return s.usageRepo.AggregateByOperation(ctx, filter)
}

func (s *usageService) ListUsageRecords(ctx context.Context, customerID string, start, end time.Time, limit, offset int) ([]models.UsageRecord, error) {
	filter := models.ScanFilter{
		CustomerID: customerID,
		Start:      &start,
		End:        &end,
		Limit:      limit,
		Offset:     offset,
	}
	return s.usageRepo.Scan(ctx, filter)
}

func percentile(durations []float64, p float64) float64 {
	value, err := stats.Percentile(durations, p)
	if err != nil {
		return 0
	}
	return value
}
