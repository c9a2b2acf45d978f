/*

This file holds the risk and market policy parameters for the sentinel. The
thresholds decide when and how aggressively the engine unwinds collateral, so
they are loaded once at startup, validated, and passed explicitly into the risk
engine to keep it pure and unit-testable.

*/

package config

import (
	"github.com/aegis-protocol/sentinel/internal/types"
)

// RiskPolicy holds every threshold the risk engine uses for sizing and pacing
// unwinds. Immutable after LoadConfig.
type RiskPolicy struct {
	// DangerHF is the health factor below which the engine considers unwinding.
	DangerHF float64
	// TargetHF is the health factor an unwind aims to restore exactly.
	TargetHF float64
	// EmergencyHF is the health factor below which urgency escalates.
	EmergencyHF float64
	// LiquidationThreshold risk-adjusts collateral value in the health factor.
	LiquidationThreshold float64
	// MaxUnwindFraction caps the fraction of collateral sold per action.
	MaxUnwindFraction float64
	// CooldownSlots is the minimum slot spacing between two executed unwinds.
	CooldownSlots uint64
	// MaxSlippageBPS is the slippage tolerance applied to sizing and quotes.
	MaxSlippageBPS uint64
	// FeeFloor and FeeCeiling clamp the dynamic priority fee, in microlamports.
	FeeFloor   uint64
	FeeCeiling uint64
}

// MarketPolicy holds the live source's selection knobs: the percentile taken
// over recent fee samples and the price fallback ordering.
type MarketPolicy struct {
	// FeePercentile picks the percentile taken over recent fee samples.
	FeePercentile float64
	// DefaultPriorityFee is used when the ledger returns no fee samples.
	DefaultPriorityFee uint64
	// PrimaryPriceSource is queried first; the other source is the fallback.
	// Either "pyth" or "jupiter".
	PrimaryPriceSource string
}

// Risk is the active risk policy, populated by LoadConfig.
var Risk RiskPolicy

// Market is the active market policy, populated by LoadConfig.
var Market MarketPolicy

// DefaultRiskPolicy returns the demo-safe defaults used when no environment
// overrides are present.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		DangerHF:             1.08,
		TargetHF:             1.25,
		EmergencyHF:          1.02,
		LiquidationThreshold: 0.9,
		MaxUnwindFraction:    0.35,
		CooldownSlots:        2,
		MaxSlippageBPS:       60,
		FeeFloor:             10_000,
		FeeCeiling:           200_000,
	}
}

// Validate rejects parameter combinations the sizing math cannot work with.
func (p RiskPolicy) Validate() error {
	if p.DangerHF <= 0 || p.TargetHF <= 0 || p.EmergencyHF <= 0 {
		return types.Errorf(types.ErrConfig, "risk policy", "health factor thresholds must be positive")
	}
	if p.LiquidationThreshold <= 0 || p.LiquidationThreshold > 1 {
		return types.Errorf(types.ErrConfig, "risk policy", "liquidation threshold must be in (0, 1], got %v", p.LiquidationThreshold)
	}
	if p.MaxUnwindFraction <= 0 || p.MaxUnwindFraction > 1 {
		return types.Errorf(types.ErrConfig, "risk policy", "max unwind fraction must be in (0, 1], got %v", p.MaxUnwindFraction)
	}
	if p.MaxSlippageBPS >= 10_000 {
		return types.Errorf(types.ErrConfig, "risk policy", "max slippage %d bps leaves no effective price", p.MaxSlippageBPS)
	}
	if p.FeeFloor > p.FeeCeiling {
		return types.Errorf(types.ErrConfig, "risk policy", "fee floor %d above ceiling %d", p.FeeFloor, p.FeeCeiling)
	}
	return nil
}

// loadRiskPolicy populates Risk and Market from environment variables on top of
// the defaults. Called by LoadConfig in General.go.
func loadRiskPolicy() error {
	def := DefaultRiskPolicy()
	var err error

	if Risk.DangerHF, err = getEnvAsFloat64("AEGIS_DANGER_HF", def.DangerHF); err != nil {
		return err
	}
	if Risk.TargetHF, err = getEnvAsFloat64("AEGIS_TARGET_HF", def.TargetHF); err != nil {
		return err
	}
	if Risk.EmergencyHF, err = getEnvAsFloat64("AEGIS_EMERGENCY_HF", def.EmergencyHF); err != nil {
		return err
	}
	if Risk.LiquidationThreshold, err = getEnvAsFloat64("AEGIS_LIQ_THRESHOLD", def.LiquidationThreshold); err != nil {
		return err
	}
	if Risk.MaxUnwindFraction, err = getEnvAsFloat64("AEGIS_MAX_UNWIND_PCT", def.MaxUnwindFraction); err != nil {
		return err
	}
	if Risk.CooldownSlots, err = getEnvAsUint64("AEGIS_COOLDOWN_SLOTS", def.CooldownSlots); err != nil {
		return err
	}
	if Risk.MaxSlippageBPS, err = getEnvAsUint64("AEGIS_MAX_SLIPPAGE_BPS", def.MaxSlippageBPS); err != nil {
		return err
	}
	if Risk.FeeFloor, err = getEnvAsUint64("AEGIS_FEE_FLOOR", def.FeeFloor); err != nil {
		return err
	}
	if Risk.FeeCeiling, err = getEnvAsUint64("AEGIS_FEE_CEIL", def.FeeCeiling); err != nil {
		return err
	}
	if err := Risk.Validate(); err != nil {
		return err
	}

	if Market.FeePercentile, err = getEnvAsFloat64("AEGIS_FEE_PERCENTILE", 0.75); err != nil {
		return err
	}
	if Market.FeePercentile <= 0 || Market.FeePercentile > 1 {
		return types.Errorf(types.ErrConfig, "AEGIS_FEE_PERCENTILE", "must be in (0, 1], got %v", Market.FeePercentile)
	}
	if Market.DefaultPriorityFee, err = getEnvAsUint64("AEGIS_DEFAULT_PRIORITY_FEE", 25_000); err != nil {
		return err
	}
	Market.PrimaryPriceSource = getEnvOr("AEGIS_PRIMARY_PRICE_SOURCE", "pyth")
	if Market.PrimaryPriceSource != "pyth" && Market.PrimaryPriceSource != "jupiter" {
		return types.Errorf(types.ErrConfig, "AEGIS_PRIMARY_PRICE_SOURCE", "invalid value %q, expected pyth|jupiter", Market.PrimaryPriceSource)
	}

	return nil
}
