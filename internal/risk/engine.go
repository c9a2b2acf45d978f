/*

This file contains the risk engine: the pure decision function mapping
(position, market observation, policy) to an action. The only state carried
between calls is the slot of the last executed unwind, used for cooldown
pacing. Decision and execution are deliberately decoupled: the cooldown is
armed by the caller after a confirmed execution, so a failed unwind never
falsely blocks the next attempt.

*/

package risk

import (
	"fmt"

	"github.com/aegis-protocol/sentinel/internal/config"
	"github.com/aegis-protocol/sentinel/internal/types"
)

// minSellEpsilon is the smallest unwind worth executing; anything below it
// cannot move the health factor meaningfully.
const minSellEpsilon = 1e-6

// Engine evaluates position solvency against the configured policy. Not safe
// for concurrent use; the cycle loop is its only caller.
type Engine struct {
	policy         config.RiskPolicy
	lastUnwindSlot uint64
	hasUnwound     bool
}

// New builds a risk engine around an immutable policy.
func New(policy config.RiskPolicy) *Engine {
	return &Engine{policy: policy}
}

// Decide evaluates one market observation against the position and returns the
// decision for this cycle. Pure and deterministic: identical inputs (including
// engine cooldown state) yield an identical decision and proof token.
func (e *Engine) Decide(position types.Position, obs types.MarketObservation) types.Decision {
	hf := position.HealthFactor(obs.PriceUSDC, e.policy.LiquidationThreshold)

	if hf >= e.policy.DangerHF {
		return e.hold(obs.Slot, hf, obs.PriceUSDC, "health factor above danger threshold")
	}

	if e.inCooldown(obs.Slot) {
		return e.hold(obs.Slot, hf, obs.PriceUSDC, "cooldown active; previous unwind recently executed")
	}

	if position.CollateralSOL <= 0 || position.DebtUSDC <= 0 {
		return e.hold(obs.Slot, hf, obs.PriceUSDC, "no collateral or debt to unwind")
	}

	urgency := types.UrgencyWarning
	if hf < e.policy.EmergencyHF {
		urgency = types.UrgencyEmergency
	}

	slippage := float64(e.policy.MaxSlippageBPS) / 10_000.0
	targetRepay := e.requiredRepay(position, obs.PriceUSDC)
	effectivePrice := obs.PriceUSDC * (1.0 - slippage)

	var rawSell float64
	if effectivePrice > 0 {
		rawSell = targetRepay / effectivePrice
	}

	maxSell := position.CollateralSOL * e.policy.MaxUnwindFraction
	sellSOL := clamp(rawSell, 0, maxSell)
	if sellSOL > position.CollateralSOL {
		sellSOL = position.CollateralSOL
	}

	if sellSOL <= minSellEpsilon {
		return e.hold(obs.Slot, hf, obs.PriceUSDC, "insufficient delta to improve health factor")
	}

	repay := sellSOL * effectivePrice
	priorityFee := DynamicPriorityFee(obs.PriorityFee, urgency, e.policy.FeeFloor, e.policy.FeeCeiling)

	action := types.Action{
		Kind:            types.ActionPartialUnwind,
		SellSOL:         sellSOL,
		TargetRepayUSDC: repay,
		PriorityFee:     priorityFee,
	}

	return types.Decision{
		Slot:         obs.Slot,
		HealthFactor: hf,
		Price:        obs.PriceUSDC,
		Reason: fmt.Sprintf("hf %.4f < %.2f; urgency=%s; sell %.4f SOL to repay %.2f USDC",
			hf, e.policy.DangerHF, urgency, sellSOL, repay),
		Action: action,
		Proof:  proofToken(obs.Slot, hf, obs.PriceUSDC, action, e.policy),
	}
}

// MarkUnwindExecuted arms the cooldown at the given slot. Called by the cycle
// loop only after the executor confirms a successful unwind.
func (e *Engine) MarkUnwindExecuted(slot uint64) {
	e.lastUnwindSlot = slot
	e.hasUnwound = true
}

func (e *Engine) inCooldown(slot uint64) bool {
	if !e.hasUnwound {
		return false
	}
	if slot < e.lastUnwindSlot {
		return true
	}
	return slot-e.lastUnwindSlot <= e.policy.CooldownSlots
}

// requiredRepay computes how much debt must be repaid so the position lands
// exactly on the target health factor at the given price.
func (e *Engine) requiredRepay(position types.Position, price float64) float64 {
	collateralValue := position.CollateralSOL*price + position.StableUSDC
	safetyValue := collateralValue * e.policy.LiquidationThreshold
	desiredDebt := safetyValue / e.policy.TargetHF

	if position.DebtUSDC <= desiredDebt {
		return 0
	}
	return position.DebtUSDC - desiredDebt
}

func (e *Engine) hold(slot uint64, hf, price float64, reason string) types.Decision {
	action := types.Action{Kind: types.ActionHold}
	return types.Decision{
		Slot:         slot,
		HealthFactor: hf,
		Price:        price,
		Reason:       reason,
		Action:       action,
		Proof:        proofToken(slot, hf, price, action, e.policy),
	}
}

// DynamicPriorityFee scales the observed network fee by urgency and clamps it
// into the configured band: x2 for emergency, x1.2 for warning.
func DynamicPriorityFee(observed uint64, urgency types.Urgency, floor, ceiling uint64) uint64 {
	var scaled uint64
	if urgency == types.UrgencyEmergency {
		scaled = observed * 2
	} else {
		scaled = observed * 6 / 5
	}

	if scaled < floor {
		return floor
	}
	if scaled > ceiling {
		return ceiling
	}
	return scaled
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
