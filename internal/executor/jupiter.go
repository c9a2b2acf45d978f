/*

This file contains the simulated Jupiter executor. Proceeds for an unwind come
from a live venue quote when enabled, or from the mark-price model otherwise.
A failed live quote degrades to the mark-price model rather than failing the
cycle; the receipt's quote source records which path was taken so auditing can
distinguish degraded execution from nominal execution.

*/

package executor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aegis-protocol/sentinel/internal/config"
	"github.com/aegis-protocol/sentinel/internal/datafetcher"
	"github.com/aegis-protocol/sentinel/internal/logger"
	"github.com/aegis-protocol/sentinel/internal/risk"
	"github.com/aegis-protocol/sentinel/internal/types"
)

const (
	httpTimeout        = 8 * time.Second
	lamportsPerSOL     = 1_000_000_000.0
	microUSDCPerUSDC   = 1_000_000.0
	quoteSourceLive    = "jupiter-ultra"
	quoteSourceMark    = "mark-price"
	quoteSourceDegrade = "fallback-mark"
	quoteSourceNone    = "none"
)

// Config carries the executor's venue settings, passed explicitly at startup.
type Config struct {
	QuoteBaseURL  string
	JupiterAPIKey string
	UseLiveQuote  bool
	LiqThreshold  float64
}

// JupiterExecutor simulates unwind execution against Jupiter swap quotes.
type JupiterExecutor struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

// New builds the executor.
func New(cfg Config) *JupiterExecutor {
	return &JupiterExecutor{
		cfg:    cfg,
		client: &http.Client{Timeout: httpTimeout},
		log:    logger.GetForComponent("executor"),
	}
}

// Execute implements Executor.
func (j *JupiterExecutor) Execute(position *types.Position, obs types.MarketObservation, decision types.Decision, maxSlippageBPS uint64) (types.ExecutionReceipt, error) {
	if decision.Action.Kind == types.ActionHold {
		return types.ExecutionReceipt{
			Slot:              decision.Slot,
			Action:            string(types.ActionHold),
			TxID:              "none",
			HealthFactorAfter: position.HealthFactor(obs.PriceUSDC, j.cfg.LiqThreshold),
			QuoteSource:       quoteSourceNone,
		}, nil
	}

	sellSOL := decision.Action.SellSOL
	if sellSOL <= 0 {
		return types.ExecutionReceipt{}, types.Errorf(types.ErrExecution, "unwind", "invalid unwind amount; sell_sol <= 0")
	}
	if sellSOL > position.CollateralSOL {
		return types.ExecutionReceipt{}, types.Errorf(types.ErrExecution, "unwind",
			"cannot unwind more SOL than collateral: %v > %v", sellSOL, position.CollateralSOL)
	}

	proceeds, quoteSource := j.proceedsFor(sellSOL, obs.PriceUSDC, maxSlippageBPS)

	// Repayment never exceeds the decided target, outstanding debt or the
	// realized proceeds; any surplus accrues to the stable balance.
	repay := proceeds
	if position.DebtUSDC < repay {
		repay = position.DebtUSDC
	}
	if decision.Action.TargetRepayUSDC < repay {
		repay = decision.Action.TargetRepayUSDC
	}

	position.CollateralSOL -= sellSOL
	position.StableUSDC += proceeds - repay
	position.DebtUSDC -= repay

	return types.ExecutionReceipt{
		Slot:              decision.Slot,
		Action:            string(types.ActionPartialUnwind),
		TxID:              risk.SyntheticTxID(decision.Slot, sellSOL, repay, decision.Action.PriorityFee),
		RepaidUSDC:        repay,
		SoldSOL:           sellSOL,
		HealthFactorAfter: position.HealthFactor(obs.PriceUSDC, j.cfg.LiqThreshold),
		QuoteSource:       quoteSource,
	}, nil
}

// proceedsFor obtains USDC proceeds for selling collateral: a live venue quote
// when enabled, otherwise the slippage-adjusted mark price.
func (j *JupiterExecutor) proceedsFor(sellSOL, price float64, slippageBPS uint64) (float64, string) {
	slippage := float64(slippageBPS) / 10_000.0
	markProceeds := sellSOL * price * (1.0 - slippage)

	if !j.cfg.UseLiveQuote {
		return markProceeds, quoteSourceMark
	}

	out, err := j.quoteSwapOutUSDC(sellSOL, slippageBPS)
	if err != nil {
		j.log.Warn().Err(err).
			Float64("sellSOL", sellSOL).
			Msg("Jupiter quote failed, falling back to mark-price model")
		return markProceeds, quoteSourceDegrade
	}
	return out, quoteSourceLive
}

// quoteSwapOutUSDC asks the venue how much USDC the given amount of SOL sells
// for at the given slippage tolerance.
func (j *JupiterExecutor) quoteSwapOutUSDC(sellSOL float64, slippageBPS uint64) (float64, error) {
	lamports := uint64(sellSOL * lamportsPerSOL)
	if lamports == 0 {
		return 0, nil
	}

	url := fmt.Sprintf("%s/ultra/v1/order?inputMint=%s&outputMint=%s&amount=%d&slippageBps=%d",
		trimTrailingSlash(j.cfg.QuoteBaseURL), config.SOLMint, config.USDCMint, lamports, slippageBPS)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, types.NewError(types.ErrData, "jupiter quote", err)
	}
	if j.cfg.JupiterAPIKey != "" {
		req.Header.Set("x-api-key", j.cfg.JupiterAPIKey)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return 0, types.Errorf(types.ErrData, "jupiter quote", "request failed: %v", err)
	}
	defer resp.Body.Close()

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, types.Errorf(types.ErrData, "jupiter quote", "decode failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, types.Errorf(types.ErrData, "jupiter quote", "http %d body %s", resp.StatusCode, body)
	}

	out, ok := ExtractOutAmount(body)
	if !ok {
		return 0, types.Errorf(types.ErrData, "jupiter quote", "missing out amount: %s", body)
	}
	return float64(out) / microUSDCPerUSDC, nil
}

// ExtractOutAmount pulls the output amount in micro-USDC from a swap-quote
// payload. Different quote API versions name the field differently and encode
// it as either a string or a number, so a set of synonyms is tried, including
// the per-step route plan shape.
func ExtractOutAmount(body []byte) (uint64, bool) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, false
	}

	for _, key := range []string{"outAmount", "outputAmount", "outAmountWithSlippage", "otherAmountThreshold"} {
		if raw, ok := payload[key]; ok {
			if n, err := datafetcher.JSONToUint64(raw, key); err == nil {
				return n, true
			}
		}
	}

	var routed struct {
		RoutePlan []struct {
			SwapInfo map[string]json.RawMessage `json:"swapInfo"`
		} `json:"routePlan"`
	}
	if err := json.Unmarshal(body, &routed); err != nil {
		return 0, false
	}
	for _, step := range routed.RoutePlan {
		for _, key := range []string{"outAmount", "outputAmount"} {
			if raw, ok := step.SwapInfo[key]; ok {
				if n, err := datafetcher.JSONToUint64(raw, key); err == nil {
					return n, true
				}
			}
		}
	}

	return 0, false
}

func trimTrailingSlash(s string) string {
	return strings.TrimRight(s, "/")
}
