/*

This file contains the decision and receipt types produced by each sentinel cycle.
A Decision is the pure output of one risk evaluation; an ExecutionReceipt is the
outcome of applying it. Both are immutable once produced and feed the audit log,
the dashboard and the optional database history.

*/

package types

// ActionKind enumerates the closed set of actions the risk engine can decide.
type ActionKind string

const (
	ActionHold          ActionKind = "hold"
	ActionPartialUnwind ActionKind = "partial_unwind"
)

// Urgency classifies how aggressively an unwind should be priced.
type Urgency string

const (
	UrgencyWarning   Urgency = "warning"
	UrgencyEmergency Urgency = "emergency"
)

// Action is the chosen side effect of a decision. The unwind fields are only
// meaningful when Kind is ActionPartialUnwind.
type Action struct {
	Kind            ActionKind `json:"kind"`
	SellSOL         float64    `json:"sell_sol,omitempty"`
	TargetRepayUSDC float64    `json:"target_repay_usdc,omitempty"`
	PriorityFee     uint64     `json:"priority_fee,omitempty"`
}

// Decision is the output of one risk engine evaluation.
type Decision struct {
	Slot         uint64  `json:"slot"`
	HealthFactor float64 `json:"health_factor"`
	Price        float64 `json:"price"`
	Reason       string  `json:"reason"`
	Action       Action  `json:"action"`
	// Proof is a deterministic token binding every numeric input of the
	// decision. Identical inputs always produce an identical token.
	Proof string `json:"proof"`
}

// ExecutionReceipt is the outcome of applying a Decision to the position.
type ExecutionReceipt struct {
	Slot              uint64  `json:"slot"`
	Action            string  `json:"action"`
	TxID              string  `json:"tx_id"`
	RepaidUSDC        float64 `json:"repaid_usdc"`
	SoldSOL           float64 `json:"sold_sol"`
	HealthFactorAfter float64 `json:"health_factor_after"`
	// QuoteSource records where swap proceeds came from: "jupiter-ultra" for a
	// live venue quote, "mark-price" or "fallback-mark" for the model, "none"
	// for holds. Degraded execution is distinguishable from nominal execution
	// here, never hidden.
	QuoteSource string `json:"quote_source"`
}
