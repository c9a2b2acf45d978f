/*

This file contains the position type tracked by the sentinel. The position is the
single leveraged account being protected: SOL collateral against USDC debt, plus a
liquid USDC balance that absorbs swap proceeds.

*/

package types

// SafeHealthFactor is the sentinel health factor reported when the position has no
// debt and therefore no liquidation risk.
const SafeHealthFactor = 999.0

// Position is the tracked leveraged account. It is mutated only by the executor as
// the direct result of an unwind; collateral, stable balance and debt never go
// negative.
type Position struct {
	Wallet        string  `json:"wallet"`
	CollateralSOL float64 `json:"collateral_sol"`
	StableUSDC    float64 `json:"stable_usdc"`
	DebtUSDC      float64 `json:"debt_usdc"`
}

// HealthFactor returns the risk-adjusted collateral value over outstanding debt.
// A position with no debt cannot be liquidated and reports SafeHealthFactor
// regardless of price.
func (p Position) HealthFactor(price, liquidationThreshold float64) float64 {
	if p.DebtUSDC <= 0 {
		return SafeHealthFactor
	}

	collateralValue := p.CollateralSOL*price + p.StableUSDC
	return (collateralValue * liquidationThreshold) / p.DebtUSDC
}
