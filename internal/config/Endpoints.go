package config

import (
	"github.com/rs/zerolog/log"
)

// DefaultPythSolFeedID is the Pyth Hermes feed id for SOL/USD.
const DefaultPythSolFeedID = "ef0d8b6fda2ceba41ff3ec77f091ab2cfec0015c51ffbcaad2f8478f42da64b"

// Endpoint configuration loaded from environment variables. These are populated
// at startup by the LoadConfig function.
var (
	// HeliusRPCURL is the Solana JSON-RPC endpoint for slots and fee samples.
	// Required in live mode.
	HeliusRPCURL string
	// PythHermesURL is the base URL of the Pyth Hermes price service.
	PythHermesURL string
	// PythSolFeedID is the Hermes feed id queried for the SOL/USD price.
	PythSolFeedID string
	// JupiterPriceURL is the Jupiter price API used as the price fallback.
	JupiterPriceURL string
	// JupiterQuoteURL is the base URL of the Jupiter swap-quote API.
	JupiterQuoteURL string
	// JupiterAPIKey is an optional API key sent as x-api-key.
	JupiterAPIKey string
	// LiveQuoteExecution toggles live venue quotes in the executor; when off,
	// proceeds come from the mark-price model.
	LiveQuoteExecution bool
	// PriceScript is the scripted-mode "price,fee;price,fee" sequence.
	PriceScript string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	HeliusRPCURL = getEnvOr("AEGIS_HELIUS_RPC_URL", "")
	PythHermesURL = getEnvOr("AEGIS_PYTH_HERMES_URL", "https://hermes.pyth.network")
	PythSolFeedID = getEnvOr("AEGIS_PYTH_SOL_FEED_ID", DefaultPythSolFeedID)
	JupiterPriceURL = getEnvOr("AEGIS_JUPITER_PRICE_URL", "https://lite-api.jup.ag/price/v3")
	JupiterQuoteURL = getEnvOr("AEGIS_JUPITER_QUOTE_URL", "https://lite-api.jup.ag")
	JupiterAPIKey = getEnvOr("AEGIS_JUPITER_API_KEY", "")
	LiveQuoteExecution = getEnvAsBool("AEGIS_LIVE_QUOTE_EXEC", true)
	PriceScript = getEnvOr("AEGIS_PRICE_SCRIPT", "")

	log.Debug().
		Str("PythHermesURL", PythHermesURL).
		Str("JupiterPriceURL", JupiterPriceURL).
		Str("JupiterQuoteURL", JupiterQuoteURL).
		Bool("LiveQuoteExecution", LiveQuoteExecution).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
