package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aegis-protocol/sentinel/internal/audit"
	"github.com/aegis-protocol/sentinel/internal/config"
	"github.com/aegis-protocol/sentinel/internal/dashboard"
	"github.com/aegis-protocol/sentinel/internal/datafetcher"
	"github.com/aegis-protocol/sentinel/internal/engine"
	"github.com/aegis-protocol/sentinel/internal/executor"
	"github.com/aegis-protocol/sentinel/internal/logger"
	"github.com/aegis-protocol/sentinel/internal/risk"
	"github.com/aegis-protocol/sentinel/internal/state"
	"github.com/aegis-protocol/sentinel/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the sentinel.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().
		Str("mode", string(config.Mode)).
		Str("wallet", config.InitialPosition.Wallet).
		Float64("collateralSOL", config.InitialPosition.CollateralSOL).
		Float64("stableUSDC", config.InitialPosition.StableUSDC).
		Float64("debtUSDC", config.InitialPosition.DebtUSDC).
		Float64("dangerHF", config.Risk.DangerHF).
		Float64("targetHF", config.Risk.TargetHF).
		Float64("emergencyHF", config.Risk.EmergencyHF).
		Uint64("cooldownSlots", config.Risk.CooldownSlots).
		Msg("Aegis sentinel starting")

	// Initialize Database Connection (optional cycle history)
	persistCycles := false
	if os.Getenv("DB_HOST") != "" {
		dbCfg := state.DBConfig{
			Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
			User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
			DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Warn().Err(err).Msg("Database unavailable; cycle history disabled")
		} else {
			defer state.CloseDB()
			if err := state.EnsureSchema(); err != nil {
				log.Fatal().Err(err).Msg("Failed to ensure database schema")
			}
			persistCycles = true
		}
	} else {
		log.Info().Msg("DB_HOST not set; cycle history persistence disabled")
	}

	// --- 2. Dashboard ---
	snapshot := dashboard.NewState(config.InitialPosition, config.HistoryLen)

	if config.RunDashboard {
		webPort := strconv.Itoa(config.DashboardPort)
		webServer := web.NewServer(webPort, snapshot, persistCycles)
		go func() {
			log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting sentinel dashboard")
			if err := webServer.Start(); err != nil {
				log.Error().Err(err).Msg("Web server failed to start")
			}
		}()
	}

	// --- 3. Market Source and Executor Selection ---
	var source datafetcher.Source
	var exec executor.Executor

	switch config.Mode {
	case config.ModeLive:
		log.Warn().Msg("Initializing sentinel in LIVE mode. Market data comes from real providers.")
		live, err := datafetcher.NewLive(datafetcher.LiveConfig{
			RPCURL:          config.HeliusRPCURL,
			PythHermesURL:   config.PythHermesURL,
			PythSolFeedID:   config.PythSolFeedID,
			JupiterPriceURL: config.JupiterPriceURL,
			JupiterAPIKey:   config.JupiterAPIKey,
			MaxCycles:       config.MaxCycles,
			Policy:          config.Market,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize live market source")
		}
		source = live
	default:
		log.Info().Msg("Initializing sentinel in scripted mode.")
		source = datafetcher.NewScripted(config.PriceScript)
	}

	exec = executor.New(executor.Config{
		QuoteBaseURL:  config.JupiterQuoteURL,
		JupiterAPIKey: config.JupiterAPIKey,
		UseLiveQuote:  config.LiveQuoteExecution && config.Mode == config.ModeLive,
		LiqThreshold:  config.Risk.LiquidationThreshold,
	})

	// --- 4. Create Sentinel Instance with Dependency Injection ---
	sentinel, err := engine.New(engine.Config{
		Source:        source,
		Executor:      exec,
		Risk:          risk.New(config.Risk),
		Dashboard:     snapshot,
		Audit:         audit.NewWriter(config.AuditLogPath),
		Policy:        config.Risk,
		Position:      config.InitialPosition,
		PollInterval:  config.PollInterval,
		PersistCycles: persistCycles,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sentinel instance")
	}

	// --- 5. Run Main Loop with Graceful Shutdown ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cycles := sentinel.Run(ctx)
	log.Info().Int("cycles", cycles).Str("auditLog", config.AuditLogPath).Msg("Sentinel run finished")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
