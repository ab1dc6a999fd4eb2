// internal/services/cost_calculator.go
package services

import (
	"strconv"

	"github.com/shopspring/decimal"

	"usage-metering-backend/internal/config"
	"usage-metering-backend/internal/models"
)

// PricingModel selects how an operation type is metered.
type PricingModel string

const (
	PricingPerMB     PricingModel = "per_mb"
	PricingPerMinute PricingModel = "per_minute"
	PricingFlat      PricingModel = "flat"
)

// RateTier applies Rate to the whole quantity when it falls inside the
// bracket. UpTo is in bytes for per-MB pricing and in seconds for per-minute
// pricing; UpTo == 0 marks the unbounded top bracket.
type RateTier struct {
	UpTo int64
	Rate decimal.Decimal
}

// OperationPricing is the pricing entry for one operation type.
type OperationPricing struct {
	Model   PricingModel
	Tiers   []RateTier
	FlatUSD decimal.Decimal
}

// CostPolicy maps operation types to pricing. Tier values are business
// configuration and swappable; nothing in the calculator hard-codes them.
type CostPolicy struct {
	PerOperation map[string]OperationPricing
}

// CostCalculator computes the monetary cost of one tracked operation.
// Pure and deterministic: same inputs, same output, no I/O.
type CostCalculator interface {
	ComputeCost(operationType string, inputSizeBytes int64, metadata map[string]string) *decimal.Decimal
}

type costCalculator struct {
	policy CostPolicy
}

func NewCostCalculator(policy CostPolicy) CostCalculator {
	return &costCalculator{policy: policy}
}

// ComputeCost returns nil rather than guessing when the policy has no entry
// for the operation type or the metadata is insufficient to price it.
func (c *costCalculator) ComputeCost(operationType string, inputSizeBytes int64, metadata map[string]string) *decimal.Decimal {
	pricing, ok := c.policy.PerOperation[operationType]
	if !ok {
		return nil
	}

	switch pricing.Model {
	case PricingPerMB:
		if inputSizeBytes <= 0 {
			return nil
		}
		rate, ok := tierRate(pricing.Tiers, inputSizeBytes)
		if !ok {
			return nil
		}
		megabytes := decimal.NewFromInt(inputSizeBytes).Div(decimal.NewFromInt(1024 * 1024))
		cost := megabytes.Mul(rate)
		return &cost

	case PricingPerMinute:
		seconds, ok := audioDurationSeconds(metadata)
		if !ok {
			return nil
		}
		rate, ok := tierRate(pricing.Tiers, int64(seconds))
		if !ok {
			return nil
		}
		minutes := decimal.NewFromFloat(seconds).Div(decimal.NewFromInt(60))
		cost := minutes.Mul(rate)
		return &cost

	case PricingFlat:
		cost := pricing.FlatUSD
		return &cost
	}

	return nil
}

// tierRate picks the bracket containing quantity.
func tierRate(tiers []RateTier, quantity int64) (decimal.Decimal, bool) {
	for _, tier := range tiers {
		if tier.UpTo == 0 || quantity <= tier.UpTo {
			return tier.Rate, true
		}
	}
	return decimal.Decimal{}, false
}

func audioDurationSeconds(metadata map[string]string) (float64, bool) {
	raw, ok := metadata[models.MetadataKeyAudioDuration]
	if !ok || raw == "" {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return seconds, true
}

// DefaultCostPolicy is the built-in tier table. Rates are USD.
func DefaultCostPolicy() CostPolicy {
	return CostPolicy{
		PerOperation: map[string]OperationPricing{
			models.OpFileConversionToText: {
				Model: PricingPerMB,
				Tiers: []RateTier{
					{UpTo: 10 * 1024 * 1024, Rate: decimal.NewFromFloat(0.02)},
					{UpTo: 100 * 1024 * 1024, Rate: decimal.NewFromFloat(0.015)},
					{UpTo: 0, Rate: decimal.NewFromFloat(0.01)},
				},
			},
			models.OpAudioConversion: {
				Model: PricingPerMB,
				Tiers: []RateTier{
					{UpTo: 0, Rate: decimal.NewFromFloat(0.01)},
				},
			},
			models.OpAudioTranscription: {
				Model: PricingPerMinute,
				Tiers: []RateTier{
					{UpTo: 1800, Rate: decimal.NewFromFloat(0.006)},
					{UpTo: 0, Rate: decimal.NewFromFloat(0.004)},
				},
			},
			models.OpProjectInit: {
				Model:   PricingFlat,
				FlatUSD: decimal.NewFromFloat(0.10),
			},
			models.OpSeoDataRetrieval: {
				Model:   PricingFlat,
				FlatUSD: decimal.NewFromFloat(0.05),
			},
			models.OpReportGeneration: {
				Model:   PricingFlat,
				FlatUSD: decimal.NewFromFloat(0.25),
			},
		},
	}
}

// PolicyFromConfig starts from the default tables and applies any rate
// overrides set in the billing config.
func PolicyFromConfig(cfg config.BillingConfig) CostPolicy {
	policy := DefaultCostPolicy()

	if cfg.ConversionRatePerMB > 0 {
		rate := decimal.NewFromFloat(cfg.ConversionRatePerMB)
		policy.PerOperation[models.OpFileConversionToText] = OperationPricing{
			Model: PricingPerMB,
			Tiers: []RateTier{{UpTo: 0, Rate: rate}},
		}
		policy.PerOperation[models.OpAudioConversion] = OperationPricing{
			Model: PricingPerMB,
			Tiers: []RateTier{{UpTo: 0, Rate: rate}},
		}
	}
	if cfg.TranscriptionRatePerMinute > 0 {
		rate := decimal.NewFromFloat(cfg.TranscriptionRatePerMinute)
		policy.PerOperation[models.OpAudioTranscription] = OperationPricing{
			Model: PricingPerMinute,
			Tiers: []RateTier{{UpTo: 0, Rate: rate}},
		}
	}

	return policy
}
