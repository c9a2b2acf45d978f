package types

// MarketObservation is one externally-sourced market snapshot. Observations are
// immutable once produced and consumed exactly once by the risk engine.
type MarketObservation struct {
	// Slot is a monotonically non-decreasing sequence number assigned by the
	// producing source (ledger slot in live mode, 1..N in scripted mode).
	Slot uint64 `json:"slot"`
	// PriceUSDC is the reference price of one SOL in USDC. Always positive.
	PriceUSDC float64 `json:"price_usdc"`
	// PriorityFee is the observed network priority fee signal in microlamports.
	PriorityFee uint64 `json:"priority_fee"`
	// TimestampMS is the unix timestamp in milliseconds at which the observation
	// was produced.
	TimestampMS uint64 `json:"ts_ms"`
	// Source tags which source or fallback path produced this observation.
	Source string `json:"source"`
}
