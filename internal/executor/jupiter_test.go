package executor

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-protocol/sentinel/internal/types"
)

func markExecutor() *JupiterExecutor {
	return New(Config{UseLiveQuote: false, LiqThreshold: 0.9})
}

func unwindDecision(slot uint64, sellSOL, targetRepay float64) types.Decision {
	return types.Decision{
		Slot: slot,
		Action: types.Action{
			Kind:            types.ActionPartialUnwind,
			SellSOL:         sellSOL,
			TargetRepayUSDC: targetRepay,
			PriorityFee:     50_000,
		},
	}
}

func TestExecute_HoldLeavesPositionUntouched(t *testing.T) {
	exec := markExecutor()
	position := types.Position{CollateralSOL: 10, StableUSDC: 100, DebtUSDC: 1800}
	obs := types.MarketObservation{Slot: 1, PriceUSDC: 220}

	receipt, err := exec.Execute(&position, obs, types.Decision{Slot: 1, Action: types.Action{Kind: types.ActionHold}}, 60)
	require.NoError(t, err)

	assert.Equal(t, "hold", receipt.Action)
	assert.Equal(t, "none", receipt.TxID)
	assert.Equal(t, "none", receipt.QuoteSource)
	assert.Zero(t, receipt.SoldSOL)
	assert.Zero(t, receipt.RepaidUSDC)
	assert.Equal(t, types.Position{CollateralSOL: 10, StableUSDC: 100, DebtUSDC: 1800}, position)
}

func TestExecute_MarkPriceUnwind(t *testing.T) {
	exec := markExecutor()
	position := types.Position{CollateralSOL: 10, StableUSDC: 100, DebtUSDC: 1800}
	obs := types.MarketObservation{Slot: 5, PriceUSDC: 170}

	receipt, err := exec.Execute(&position, obs, unwindDecision(5, 2.0, 400), 60)
	require.NoError(t, err)

	// Proceeds at the slippage-adjusted mark: 2 * 170 * 0.994 = 337.96,
	// below the target so the whole amount goes to debt.
	assert.Equal(t, "partial_unwind", receipt.Action)
	assert.Equal(t, quoteSourceMark, receipt.QuoteSource)
	assert.InDelta(t, 2.0, receipt.SoldSOL, 1e-9)
	assert.InDelta(t, 337.96, receipt.RepaidUSDC, 1e-9)
	assert.Contains(t, receipt.TxID, "tx-0x")

	assert.InDelta(t, 8.0, position.CollateralSOL, 1e-9)
	assert.InDelta(t, 100.0, position.StableUSDC, 1e-9)
	assert.InDelta(t, 1800.0-337.96, position.DebtUSDC, 1e-9)
}

func TestExecute_SurplusAccruesToStableBalance(t *testing.T) {
	exec := markExecutor()
	position := types.Position{CollateralSOL: 10, StableUSDC: 100, DebtUSDC: 1800}
	obs := types.MarketObservation{Slot: 5, PriceUSDC: 170}

	// Target below proceeds: repay stops at the target, the rest is kept.
	receipt, err := exec.Execute(&position, obs, unwindDecision(5, 2.0, 300), 60)
	require.NoError(t, err)

	assert.InDelta(t, 300.0, receipt.RepaidUSDC, 1e-9)
	assert.InDelta(t, 100.0+37.96, position.StableUSDC, 1e-9)
	assert.InDelta(t, 1500.0, position.DebtUSDC, 1e-9)
}

func TestExecute_RepayNeverExceedsDebt(t *testing.T) {
	exec := markExecutor()
	position := types.Position{CollateralSOL: 10, StableUSDC: 0, DebtUSDC: 100}
	obs := types.MarketObservation{Slot: 5, PriceUSDC: 170}

	receipt, err := exec.Execute(&position, obs, unwindDecision(5, 2.0, 400), 60)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, receipt.RepaidUSDC, 1e-9)
	assert.Zero(t, position.DebtUSDC)
	assert.InDelta(t, 337.96-100.0, position.StableUSDC, 1e-9)
}

func TestExecute_RejectsInvalidSizing(t *testing.T) {
	exec := markExecutor()
	obs := types.MarketObservation{Slot: 5, PriceUSDC: 170}

	position := types.Position{CollateralSOL: 1, DebtUSDC: 1800}
	_, err := exec.Execute(&position, obs, unwindDecision(5, 2.0, 400), 60)
	require.Error(t, err)
	assert.Equal(t, types.ErrExecution, types.KindOf(err))

	_, err = exec.Execute(&position, obs, unwindDecision(5, 0, 400), 60)
	require.Error(t, err)
	assert.Equal(t, types.ErrExecution, types.KindOf(err))

	// Failed executions never mutate the position.
	assert.Equal(t, types.Position{CollateralSOL: 1, DebtUSDC: 1800}, position)
}

func TestExecute_LiveQuoteProceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/ultra/v1/order")
		assert.NotEmpty(t, r.URL.Query().Get("amount"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"outAmount":"340000000"}`))
	}))
	defer server.Close()

	exec := New(Config{QuoteBaseURL: server.URL, UseLiveQuote: true, LiqThreshold: 0.9})
	position := types.Position{CollateralSOL: 10, StableUSDC: 0, DebtUSDC: 1800}
	obs := types.MarketObservation{Slot: 5, PriceUSDC: 170}

	receipt, err := exec.Execute(&position, obs, unwindDecision(5, 2.0, 400), 60)
	require.NoError(t, err)

	assert.Equal(t, quoteSourceLive, receipt.QuoteSource)
	// 340_000_000 micro-USDC quoted; repay capped at the 400 target.
	assert.InDelta(t, 340.0, receipt.RepaidUSDC, 1e-9)
}

func TestExecute_QuoteFailureFallsBackToMark(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"unavailable"}`))
	}))
	defer server.Close()

	exec := New(Config{QuoteBaseURL: server.URL, UseLiveQuote: true, LiqThreshold: 0.9})
	position := types.Position{CollateralSOL: 10, StableUSDC: 0, DebtUSDC: 1800}
	obs := types.MarketObservation{Slot: 5, PriceUSDC: 170}

	receipt, err := exec.Execute(&position, obs, unwindDecision(5, 2.0, 400), 60)
	require.NoError(t, err)

	// Degraded execution is visible in the receipt, not hidden.
	assert.Equal(t, quoteSourceDegrade, receipt.QuoteSource)
	assert.InDelta(t, 337.96, receipt.RepaidUSDC, 1e-9)
}

func TestExtractOutAmount(t *testing.T) {
	tests := []struct {
		name string
		body string
		want uint64
		ok   bool
	}{
		{"string outAmount", `{"outAmount":"42000000"}`, 42_000_000, true},
		{"numeric outputAmount", `{"outputAmount":1100000}`, 1_100_000, true},
		{"slippage variant", `{"outAmountWithSlippage":"900000"}`, 900_000, true},
		{"threshold variant", `{"otherAmountThreshold":"750000"}`, 750_000, true},
		{"route plan fallback", `{"routePlan":[{"swapInfo":{"outAmount":"5000000"}}]}`, 5_000_000, true},
		{"missing amount", `{"inAmount":"1"}`, 0, false},
		{"not an object", `[1,2,3]`, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractOutAmount([]byte(tc.body))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
