package config

// Canonical Solana mint addresses for the pair the sentinel trades.
const (
	// SOLMint is the wrapped SOL mint address.
	SOLMint = "So11111111111111111111111111111111111111112"
	// USDCMint is the USDC mint address.
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)
