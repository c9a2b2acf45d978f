/*

This file fetches live market observations from upstream providers with
fallback. Each observation needs three facts: the current ledger slot, a recent
priority-fee signal, and a SOL/USDC reference price. Slot and fees come from the
Solana JSON-RPC endpoint; the price comes from the primary oracle with the
aggregator as fallback. A cycle fails only when the slot or fee fetch fails, or
when both price paths fail.

*/

package datafetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aegis-protocol/sentinel/internal/config"
	"github.com/aegis-protocol/sentinel/internal/logger"
	"github.com/aegis-protocol/sentinel/internal/types"
)

const httpTimeout = 8 * time.Second

// LiveConfig carries everything the live source needs, passed explicitly so the
// source stays testable against local fakes.
type LiveConfig struct {
	RPCURL          string
	PythHermesURL   string
	PythSolFeedID   string
	JupiterPriceURL string
	JupiterAPIKey   string
	MaxCycles       int
	Policy          config.MarketPolicy
}

// Live is the multi-provider market source with fallback.
type Live struct {
	cfg     LiveConfig
	client  *http.Client
	emitted int
	log     zerolog.Logger
}

// NewLive validates the configuration and builds the live source.
func NewLive(cfg LiveConfig) (*Live, error) {
	if cfg.RPCURL == "" {
		return nil, types.Errorf(types.ErrConfig, "live source", "ledger RPC URL is required in live mode")
	}
	if cfg.Policy.FeePercentile <= 0 || cfg.Policy.FeePercentile > 1 {
		return nil, types.Errorf(types.ErrConfig, "live source", "fee percentile must be in (0, 1], got %v", cfg.Policy.FeePercentile)
	}

	return &Live{
		cfg:    cfg,
		client: &http.Client{Timeout: httpTimeout},
		log:    logger.GetForComponent("market_source"),
	}, nil
}

// Next implements Source. The stream ends after the configured cycle budget.
func (l *Live) Next() (types.MarketObservation, bool, error) {
	if l.emitted >= l.cfg.MaxCycles {
		return types.MarketObservation{}, false, nil
	}

	slot, err := l.fetchSlot()
	if err != nil {
		return types.MarketObservation{}, false, err
	}

	fee, err := l.fetchPriorityFee()
	if err != nil {
		return types.MarketObservation{}, false, err
	}

	price, err := l.fetchPrice()
	if err != nil {
		return types.MarketObservation{}, false, err
	}

	l.emitted++

	return types.MarketObservation{
		Slot:        slot,
		PriceUSDC:   price,
		PriorityFee: fee,
		TimestampMS: nowMS(),
		Source:      "live-helius-pyth",
	}, true, nil
}

// fetchPrice queries the primary price source and falls back to the secondary
// on failure. The fallback is recorded in the log, not surfaced as an error.
func (l *Live) fetchPrice() (float64, error) {
	primary, secondary := l.fetchPythPrice, l.fetchJupiterPrice
	primaryName, secondaryName := "pyth", "jupiter"
	if l.cfg.Policy.PrimaryPriceSource == "jupiter" {
		primary, secondary = l.fetchJupiterPrice, l.fetchPythPrice
		primaryName, secondaryName = "jupiter", "pyth"
	}

	price, err := primary()
	if err == nil {
		return price, nil
	}

	l.log.Warn().Err(err).
		Str("primary", primaryName).
		Str("fallback", secondaryName).
		Msg("Primary price source failed, trying fallback")

	price, fallbackErr := secondary()
	if fallbackErr != nil {
		return 0, types.Errorf(types.ErrData, "price fetch",
			"both price sources failed: %s: %v; %s: %v", primaryName, err, secondaryName, fallbackErr)
	}
	return price, nil
}

// rpcPost performs one JSON-RPC call against the ledger endpoint.
func (l *Live) rpcPost(method string, params any) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, types.NewError(types.ErrData, "rpc "+method, err)
	}

	resp, err := l.client.Post(l.cfg.RPCURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, types.Errorf(types.ErrData, "rpc "+method, "request to %s failed: %v", l.cfg.RPCURL, err)
	}
	defer resp.Body.Close()

	var body struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.Errorf(types.ErrData, "rpc "+method, "decode failed: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, types.Errorf(types.ErrData, "rpc "+method, "http %d from %s", resp.StatusCode, l.cfg.RPCURL)
	}
	if len(body.Error) > 0 && string(body.Error) != "null" {
		return nil, types.Errorf(types.ErrData, "rpc "+method, "rpc error: %s", body.Error)
	}
	if len(body.Result) == 0 {
		return nil, types.Errorf(types.ErrData, "rpc "+method, "missing result")
	}
	return body.Result, nil
}

func (l *Live) fetchSlot() (uint64, error) {
	result, err := l.rpcPost("getSlot", []any{map[string]string{"commitment": "processed"}})
	if err != nil {
		return 0, err
	}
	return JSONToUint64(result, "getSlot result")
}

// fetchPriorityFee takes the configured percentile over recent fee samples,
// falling back to the policy default when the ledger returns none.
func (l *Live) fetchPriorityFee() (uint64, error) {
	result, err := l.rpcPost("getRecentPrioritizationFees", []any{[]string{}})
	if err != nil {
		return 0, err
	}

	var rows []struct {
		PrioritizationFee json.RawMessage `json:"prioritizationFee"`
	}
	if err := json.Unmarshal(result, &rows); err != nil {
		return 0, types.Errorf(types.ErrData, "rpc getRecentPrioritizationFees", "result is not an array: %v", err)
	}

	var fees []uint64
	for _, row := range rows {
		if len(row.PrioritizationFee) == 0 {
			continue
		}
		if fee, err := JSONToUint64(row.PrioritizationFee, "prioritizationFee"); err == nil {
			fees = append(fees, fee)
		}
	}

	if len(fees) == 0 {
		return l.cfg.Policy.DefaultPriorityFee, nil
	}

	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })
	idx := int(float64(len(fees)) * l.cfg.Policy.FeePercentile)
	if idx >= len(fees) {
		idx = len(fees) - 1
	}
	return fees[idx], nil
}

// fetchPythPrice pulls the latest oracle price from the Hermes endpoint.
// Hermes reports a scaled integer plus exponent; the real price is
// price * 10^expo.
func (l *Live) fetchPythPrice() (float64, error) {
	url := fmt.Sprintf("%s/v2/updates/price/latest?ids%%5B%%5D=%s",
		trimTrailingSlash(l.cfg.PythHermesURL), l.cfg.PythSolFeedID)

	resp, err := l.client.Get(url)
	if err != nil {
		return 0, types.Errorf(types.ErrData, "pyth price", "request failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Parsed []struct {
			Price struct {
				Price json.RawMessage `json:"price"`
				Expo  json.RawMessage `json:"expo"`
			} `json:"price"`
		} `json:"parsed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, types.Errorf(types.ErrData, "pyth price", "decode failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, types.Errorf(types.ErrData, "pyth price", "http %d", resp.StatusCode)
	}
	if len(body.Parsed) == 0 {
		return 0, types.Errorf(types.ErrData, "pyth price", "parsed[0] missing")
	}

	raw, err := JSONToFloat64(body.Parsed[0].Price.Price, "pyth price.price")
	if err != nil {
		return 0, err
	}
	expo, err := JSONToInt(body.Parsed[0].Price.Expo, "pyth price.expo")
	if err != nil {
		return 0, err
	}

	return raw * math.Pow(10, float64(expo)), nil
}

// fetchJupiterPrice pulls the aggregator price keyed by the SOL mint. The
// payload exposes the price as usdPrice or price depending on the API version.
func (l *Live) fetchJupiterPrice() (float64, error) {
	url := fmt.Sprintf("%s?ids=%s", trimTrailingSlash(l.cfg.JupiterPriceURL), config.SOLMint)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, types.NewError(types.ErrData, "jupiter price", err)
	}
	if l.cfg.JupiterAPIKey != "" {
		req.Header.Set("x-api-key", l.cfg.JupiterAPIKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return 0, types.Errorf(types.ErrData, "jupiter price", "request failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data map[string]struct {
			USDPrice json.RawMessage `json:"usdPrice"`
			Price    json.RawMessage `json:"price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, types.Errorf(types.ErrData, "jupiter price", "decode failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, types.Errorf(types.ErrData, "jupiter price", "http %d", resp.StatusCode)
	}

	node, ok := body.Data[config.SOLMint]
	if !ok {
		return 0, types.Errorf(types.ErrData, "jupiter price", "data[%s] missing", config.SOLMint)
	}

	if len(node.USDPrice) > 0 {
		return JSONToFloat64(node.USDPrice, "jupiter usdPrice")
	}
	if len(node.Price) > 0 {
		return JSONToFloat64(node.Price, "jupiter price")
	}
	return 0, types.Errorf(types.ErrData, "jupiter price", "payload missing usdPrice/price")
}

func trimTrailingSlash(s string) string {
	return strings.TrimRight(s, "/")
}
