package executor

import (
	"github.com/aegis-protocol/sentinel/internal/types"
)

// Executor applies a decision to the position and reports the outcome. Hold
// decisions never mutate the position; unwinds mutate it exactly once and
// produce a receipt recording where the proceeds came from.
//
// Implementations are selected at startup by configuration, never by runtime
// type inspection.
type Executor interface {
	Execute(position *types.Position, obs types.MarketObservation, decision types.Decision, maxSlippageBPS uint64) (types.ExecutionReceipt, error)
}
