/*

This file contains the shared dashboard state: a mutex-guarded projection of
the latest cycle plus two bounded FIFO histories. The cycle loop is the only
writer; the dashboard server is the only reader. Both sides hold the lock just
long enough to copy values, so the reader always sees a fully-formed snapshot.

*/

package dashboard

import (
	"fmt"
	"sync"

	"github.com/aegis-protocol/sentinel/internal/types"
)

// State is the shared snapshot between the cycle loop and the server.
type State struct {
	mu         sync.Mutex
	view       View
	historyLen int
}

// View is the JSON projection served by the dashboard.
type View struct {
	Wallet        string   `json:"wallet"`
	Slot          uint64   `json:"slot"`
	Price         float64  `json:"price"`
	HealthFactor  float64  `json:"health_factor"`
	CollateralSOL float64  `json:"collateral_sol"`
	StableUSDC    float64  `json:"stable_usdc"`
	DebtUSDC      float64  `json:"debt_usdc"`
	LastAction    string   `json:"last_action"`
	LastReason    string   `json:"last_reason"`
	LastProof     string   `json:"last_proof"`
	LastSource    string   `json:"last_source"`
	DecisionLog   []string `json:"decision_log"`
	ReceiptLog    []string `json:"receipt_log"`
}

// NewState seeds the dashboard from the initial position.
func NewState(position types.Position, historyLen int) *State {
	return &State{
		historyLen: historyLen,
		view: View{
			Wallet:        position.Wallet,
			CollateralSOL: position.CollateralSOL,
			StableUSDC:    position.StableUSDC,
			DebtUSDC:      position.DebtUSDC,
			LastAction:    "boot",
			LastReason:    "startup",
			LastProof:     "none",
			LastSource:    "none",
			DecisionLog:   []string{"sentinel booted"},
		},
	}
}

// ApplyCycle records the outcome of one cycle. Called once per cycle by the
// owning loop.
func (s *State) ApplyCycle(obs types.MarketObservation, decision types.Decision, receipt types.ExecutionReceipt, position types.Position, hfAfter float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.Slot = obs.Slot
	s.view.Price = obs.PriceUSDC
	s.view.HealthFactor = hfAfter
	s.view.CollateralSOL = position.CollateralSOL
	s.view.StableUSDC = position.StableUSDC
	s.view.DebtUSDC = position.DebtUSDC
	s.view.LastAction = receipt.Action
	s.view.LastReason = decision.Reason
	s.view.LastProof = decision.Proof
	s.view.LastSource = obs.Source

	s.pushDecision(fmt.Sprintf("slot %d src=%s hf=%.4f action=%s reason=%s",
		obs.Slot, obs.Source, decision.HealthFactor, receipt.Action, decision.Reason))
	s.pushReceipt(fmt.Sprintf("slot %d tx=%s sold=%.4f repaid=%.2f hf_after=%.4f quote=%s",
		receipt.Slot, receipt.TxID, receipt.SoldSOL, receipt.RepaidUSDC, receipt.HealthFactorAfter, receipt.QuoteSource))
}

// Snapshot returns a copy of the current view, including copies of the history
// slices so callers never observe a concurrent mutation.
func (s *State) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.view
	view.DecisionLog = append([]string(nil), s.view.DecisionLog...)
	view.ReceiptLog = append([]string(nil), s.view.ReceiptLog...)
	return view
}

// pushDecision appends to the decision history, evicting oldest-first when the
// configured capacity is exceeded. Caller holds the lock.
func (s *State) pushDecision(line string) {
	s.view.DecisionLog = append(s.view.DecisionLog, line)
	if len(s.view.DecisionLog) > s.historyLen {
		s.view.DecisionLog = s.view.DecisionLog[len(s.view.DecisionLog)-s.historyLen:]
	}
}

func (s *State) pushReceipt(line string) {
	s.view.ReceiptLog = append(s.view.ReceiptLog, line)
	if len(s.view.ReceiptLog) > s.historyLen {
		s.view.ReceiptLog = s.view.ReceiptLog[len(s.view.ReceiptLog)-s.historyLen:]
	}
}
