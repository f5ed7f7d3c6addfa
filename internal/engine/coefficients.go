// Package engine implements the compensation projection: given a validated
// advisor profile and a set of firm deals it computes upfront and backend
// packages, a year-by-year cumulative comparison and headline metrics.
package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/faaxis/advisor-calc/internal/config"
)

// DefaultCoefficients returns the engine defaults. The fee-based thresholds
// and shifts match the calculator's published tooltip; every other value is
// provisional.
func DefaultCoefficients() config.EngineConfig {
	return config.EngineConfig{
		FeeBasedHighThreshold: 85,
		FeeBasedLowThreshold:  65,
		FeeBasedHighUpfront:   5,
		FeeBasedHighBackend:   10,
		FeeBasedLowUpfront:    -5,
		FeeBasedLowBackend:    -5,
		MaxAdjustment:         10,

		BandPosition:         0.5,
		RetentionPivot:       90,
		RetentionSensitivity: 0.025,

		DefaultDealLength:    10,
		MaxDealLength:        15,
		DefaultGridPayout:    45,
		DefaultCurrentPayout: 40,
		DefaultGrowthRate:    5,
		DefaultRetention:     90,

		// Weights (sum = 100).
		BackendGrowthWeight:  40,
		BackendAssetsWeight:  35,
		BackendServiceWeight: 25,
	}
}

// ValidateCoefficients checks that a coefficient set is internally consistent.
func ValidateCoefficients(c config.EngineConfig) error {
	var errs []string

	if c.FeeBasedLowThreshold > c.FeeBasedHighThreshold {
		errs = append(errs, "fee_based_low_threshold must be <= fee_based_high_threshold")
	}
	for name, th := range map[string]float64{
		"fee_based_high_threshold": c.FeeBasedHighThreshold,
		"fee_based_low_threshold":  c.FeeBasedLowThreshold,
	} {
		if th < 0 || th > 100 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 100", name))
		}
	}
	if c.MaxAdjustment < 0 {
		errs = append(errs, "max_adjustment must be >= 0")
	}
	if c.BandPosition < 0 || c.BandPosition > 1 {
		errs = append(errs, "band_position must be between 0 and 1")
	}
	if c.RetentionSensitivity < 0 {
		errs = append(errs, "retention_sensitivity must be >= 0")
	}
	if c.DefaultDealLength < 1 {
		errs = append(errs, "default_deal_length must be >= 1")
	}
	if c.MaxDealLength < c.DefaultDealLength {
		errs = append(errs, "max_deal_length must be >= default_deal_length")
	}
	for name, pct := range map[string]float64{
		"default_grid_payout":    c.DefaultGridPayout,
		"default_current_payout": c.DefaultCurrentPayout,
		"default_growth_rate":    c.DefaultGrowthRate,
		"default_retention":      c.DefaultRetention,
	} {
		if pct < 0 || pct > 100 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 100", name))
		}
	}

	weights := []float64{c.BackendGrowthWeight, c.BackendAssetsWeight, c.BackendServiceWeight}
	var sum float64
	for _, w := range weights {
		if w < 0 {
			errs = append(errs, "backend weights must be >= 0")
			break
		}
		sum += w
	}
	if sum <= 0 {
		errs = append(errs, "backend weight sum must be > 0")
	}

	for flag, adj := range c.FlagAdjustments {
		if math.Abs(adj.Upfront) > 100 || math.Abs(adj.Backend) > 100 {
			errs = append(errs, fmt.Sprintf("flag_adjustments.%s out of range", flag))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("engine: coefficient validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// withDefaults fills zero-valued structural settings so a partially
// populated config still produces a projection.
func withDefaults(c config.EngineConfig) config.EngineConfig {
	d := DefaultCoefficients()
	if c.DefaultDealLength <= 0 {
		c.DefaultDealLength = d.DefaultDealLength
	}
	if c.MaxDealLength < c.DefaultDealLength {
		c.MaxDealLength = max(d.MaxDealLength, c.DefaultDealLength)
	}
	if c.BackendGrowthWeight+c.BackendAssetsWeight+c.BackendServiceWeight <= 0 {
		c.BackendGrowthWeight = d.BackendGrowthWeight
		c.BackendAssetsWeight = d.BackendAssetsWeight
		c.BackendServiceWeight = d.BackendServiceWeight
	}
	return c
}
