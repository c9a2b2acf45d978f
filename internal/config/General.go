package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aegis-protocol/sentinel/internal/types"
)

// RunMode selects which market source feeds the sentinel.
type RunMode string

const (
	ModeScripted RunMode = "scripted"
	ModeLive     RunMode = "live"
)

// Application configuration loaded from environment variables. These are
// populated at startup by LoadConfig and immutable afterwards; engine logic
// receives them explicitly and never reads ambient environment state.
var (
	// Mode selects the market source variant (scripted or live).
	Mode RunMode

	// PollInterval is the sleep between cycles.
	PollInterval time.Duration
	// MaxCycles caps the number of live-mode cycles before the loop ends.
	MaxCycles int
	// HistoryLen bounds the dashboard decision/receipt histories.
	HistoryLen int

	// DashboardPort is the port the dashboard JSON server binds to.
	DashboardPort int
	// RunDashboard toggles the dashboard server thread.
	RunDashboard bool

	// AuditLogPath is the CSV audit log target.
	AuditLogPath string

	// InitialPosition is the position the sentinel protects, seeded at boot.
	InitialPosition types.Position
)

// LoadConfig loads configuration from environment variables and sets the global
// config vars. Missing variables fall back to safe demo defaults; malformed
// values are Config errors and fatal before the loop starts.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	mode := strings.ToLower(getEnvOr("AEGIS_MODE", string(ModeScripted)))
	switch RunMode(mode) {
	case ModeScripted, ModeLive:
		Mode = RunMode(mode)
	default:
		return types.Errorf(types.ErrConfig, "AEGIS_MODE", "invalid value %q, expected scripted|live", mode)
	}

	pollMS, err := getEnvAsUint64("AEGIS_POLL_MS", 700)
	if err != nil {
		return err
	}
	PollInterval = time.Duration(pollMS) * time.Millisecond

	maxCycles, err := getEnvAsUint64("AEGIS_MAX_CYCLES", 20)
	if err != nil {
		return err
	}
	MaxCycles = int(maxCycles)

	historyLen, err := getEnvAsUint64("AEGIS_HISTORY", 25)
	if err != nil {
		return err
	}
	if historyLen == 0 {
		return types.Errorf(types.ErrConfig, "AEGIS_HISTORY", "history length must be positive")
	}
	HistoryLen = int(historyLen)

	port, err := getEnvAsUint64("AEGIS_DASHBOARD_PORT", 8080)
	if err != nil {
		return err
	}
	DashboardPort = int(port)
	RunDashboard = getEnvAsBool("AEGIS_DASHBOARD", true)

	AuditLogPath = getEnvOr("AEGIS_AUDIT_LOG", "aegis_actions.csv")

	InitialPosition.Wallet = getEnvOr("AEGIS_WALLET", "demo-wallet")
	if InitialPosition.CollateralSOL, err = getEnvAsFloat64("AEGIS_COLLATERAL_SOL", 18.0); err != nil {
		return err
	}
	if InitialPosition.StableUSDC, err = getEnvAsFloat64("AEGIS_STABLE_BALANCE", 300.0); err != nil {
		return err
	}
	if InitialPosition.DebtUSDC, err = getEnvAsFloat64("AEGIS_DEBT_USDC", 3300.0); err != nil {
		return err
	}
	if InitialPosition.CollateralSOL < 0 || InitialPosition.StableUSDC < 0 || InitialPosition.DebtUSDC < 0 {
		return types.Errorf(types.ErrConfig, "AEGIS_COLLATERAL_SOL", "position balances cannot be negative")
	}

	if err := loadRiskPolicy(); err != nil {
		return err
	}

	if err := loadEndpointConfig(); err != nil {
		return err
	}

	if Mode == ModeLive && HeliusRPCURL == "" {
		return types.Errorf(types.ErrConfig, "AEGIS_HELIUS_RPC_URL", "required for AEGIS_MODE=live; set it to your Helius HTTPS RPC URL")
	}

	log.Debug().
		Str("mode", string(Mode)).
		Dur("pollInterval", PollInterval).
		Int("maxCycles", MaxCycles).
		Str("wallet", InitialPosition.Wallet).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnvOr retrieves a string environment variable with a default.
func getEnvOr(key, def string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return def
}

// getEnvAsUint64 retrieves an environment variable as a uint64 with a default.
func getEnvAsUint64(key string, def uint64) (uint64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return def, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, types.Errorf(types.ErrConfig, key, "must be a valid integer, got %q", valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64 with a default.
func getEnvAsFloat64(key string, def float64) (float64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return def, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, types.Errorf(types.ErrConfig, key, "must be a valid number, got %q", valueStr)
	}
	return value, nil
}

// getEnvAsBool retrieves an environment variable as a bool with a default.
// Accepts 1/true/yes as true, anything else as false.
func getEnvAsBool(key string, def bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return def
	}
	switch strings.ToLower(valueStr) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
