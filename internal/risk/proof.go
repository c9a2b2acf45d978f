package risk

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"math"

	"github.com/aegis-protocol/sentinel/internal/config"
	"github.com/aegis-protocol/sentinel/internal/types"
)

// Proof tokens and synthetic transaction ids are deterministic fingerprints
// over a decision's numeric inputs. Floats are hashed by their exact bit
// pattern, not their decimal rendering, so two evaluations with identical
// inputs always produce identical tokens and an auditor can replay any run.

// proofToken fingerprints the slot, health factor, price, the four sizing
// thresholds, and the action's numeric fields.
func proofToken(slot uint64, healthFactor, price float64, action types.Action, policy config.RiskPolicy) string {
	h := fnv.New64a()

	hashUint64(h, slot)
	hashFloat64(h, healthFactor)
	hashFloat64(h, price)
	hashFloat64(h, policy.DangerHF)
	hashFloat64(h, policy.TargetHF)
	hashFloat64(h, policy.EmergencyHF)
	hashFloat64(h, policy.MaxUnwindFraction)

	switch action.Kind {
	case types.ActionHold:
		h.Write([]byte{0})
	case types.ActionPartialUnwind:
		h.Write([]byte{1})
		hashFloat64(h, action.SellSOL)
		hashFloat64(h, action.TargetRepayUSDC)
		hashUint64(h, action.PriorityFee)
	}

	return fmt.Sprintf("proof-0x%016x", h.Sum64())
}

// SyntheticTxID derives a deterministic transaction identifier for traceability
// in non-live modes.
func SyntheticTxID(slot uint64, sellSOL, repaidUSDC float64, priorityFee uint64) string {
	h := fnv.New64a()
	hashUint64(h, slot)
	hashFloat64(h, sellSOL)
	hashFloat64(h, repaidUSDC)
	hashUint64(h, priorityFee)
	return fmt.Sprintf("tx-0x%016x", h.Sum64())
}

func hashUint64(h io.Writer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func hashFloat64(h io.Writer, v float64) {
	hashUint64(h, math.Float64bits(v))
}
