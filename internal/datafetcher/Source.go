/*

This file defines the market source contract and the scripted implementation.
The scripted source replays a fixed (price, fee) sequence so the risk engine and
executor can be exercised deterministically without network access.

*/

package datafetcher

import (
	"strconv"
	"strings"
	"time"

	"github.com/aegis-protocol/sentinel/internal/types"
)

// DefaultPriceScript is replayed when scripted mode has no AEGIS_PRICE_SCRIPT:
// a drawdown into danger territory followed by a partial recovery.
const DefaultPriceScript = "210,25000;208,25000;204,30000;198,55000;194,90000;191,150000;189,140000;193,75000;197,40000;200,22000"

// Source produces the stream of market observations driving the sentinel loop.
// Next returns ok=false when the stream is exhausted; errors are recoverable
// per-cycle failures, never fatal.
type Source interface {
	Next() (types.MarketObservation, bool, error)
}

// Scripted replays a fixed ordered list of (price, fee) pairs, one per call,
// assigning slots 1..N.
type Scripted struct {
	idx    int
	script []scriptStep
}

type scriptStep struct {
	price float64
	fee   uint64
}

// NewScripted parses a "price,fee;price,fee" script. Malformed pairs are
// skipped; an empty result falls back to a single (200, 25000) step so the
// source always yields at least one observation.
func NewScripted(raw string) *Scripted {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultPriceScript
	}

	var script []scriptStep
	for _, pair := range strings.Split(raw, ";") {
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			price = 200.0
		}
		fee, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			fee = 25_000
		}
		script = append(script, scriptStep{price: price, fee: fee})
	}

	if len(script) == 0 {
		script = append(script, scriptStep{price: 200.0, fee: 25_000})
	}

	return &Scripted{script: script}
}

// Next implements Source.
func (s *Scripted) Next() (types.MarketObservation, bool, error) {
	if s.idx >= len(s.script) {
		return types.MarketObservation{}, false, nil
	}

	step := s.script[s.idx]
	s.idx++

	return types.MarketObservation{
		Slot:        uint64(s.idx),
		PriceUSDC:   step.price,
		PriorityFee: step.fee,
		TimestampMS: nowMS(),
		Source:      "scripted",
	}, true, nil
}

func nowMS() uint64 {
	return uint64(time.Now().UnixMilli())
}
