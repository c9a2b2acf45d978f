/*

This file contains the Sentinel orchestrator, the core cycle loop of the
service. Each cycle consumes one market observation, runs the risk engine,
applies the resulting decision through the executor, appends the audit row and
publishes the new state to the dashboard. Data and execution failures skip the
cycle; they never terminate the run.

*/

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/aegis-protocol/sentinel/internal/audit"
	"github.com/aegis-protocol/sentinel/internal/config"
	"github.com/aegis-protocol/sentinel/internal/dashboard"
	"github.com/aegis-protocol/sentinel/internal/datafetcher"
	"github.com/aegis-protocol/sentinel/internal/executor"
	"github.com/aegis-protocol/sentinel/internal/logger"
	"github.com/aegis-protocol/sentinel/internal/risk"
	"github.com/aegis-protocol/sentinel/internal/state"
	"github.com/aegis-protocol/sentinel/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds the dependencies for creating a new Sentinel instance.
type Config struct {
	Source        datafetcher.Source
	Executor      executor.Executor
	Risk          *risk.Engine
	Dashboard     *dashboard.State
	Audit         *audit.Writer
	Policy        config.RiskPolicy
	Position      types.Position
	PollInterval  time.Duration
	PersistCycles bool
}

// Sentinel drives the observe, decide, execute loop over a market source.
type Sentinel struct {
	logger    zerolog.Logger
	source    datafetcher.Source
	executor  executor.Executor
	risk      *risk.Engine
	dashboard *dashboard.State
	audit     *audit.Writer
	policy    config.RiskPolicy

	position      types.Position
	pollInterval  time.Duration
	persistCycles bool

	// Runtime state
	cycleCount int
	holds      int
	unwinds    int
	lastPrice  float64
}

// New creates a Sentinel instance with dependency injection.
func New(cfg Config) (*Sentinel, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("sentinel configuration validation failed: %w", err)
	}

	s := &Sentinel{
		logger:        logger.GetForComponent("sentinel_core"),
		source:        cfg.Source,
		executor:      cfg.Executor,
		risk:          cfg.Risk,
		dashboard:     cfg.Dashboard,
		audit:         cfg.Audit,
		policy:        cfg.Policy,
		position:      cfg.Position,
		pollInterval:  cfg.PollInterval,
		persistCycles: cfg.PersistCycles && state.Enabled(),
	}

	s.logger.Info().
		Str("wallet", s.position.Wallet).
		Float64("collateralSOL", s.position.CollateralSOL).
		Float64("debtUSDC", s.position.DebtUSDC).
		Bool("persistCycles", s.persistCycles).
		Msg("Sentinel instance created")

	return s, nil
}

func validateConfig(cfg Config) error {
	if cfg.Source == nil {
		return fmt.Errorf("market source cannot be nil")
	}
	if cfg.Executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}
	if cfg.Risk == nil {
		return fmt.Errorf("risk engine cannot be nil")
	}
	if cfg.Dashboard == nil {
		return fmt.Errorf("dashboard state cannot be nil")
	}
	if cfg.Audit == nil {
		return fmt.Errorf("audit writer cannot be nil")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return fmt.Errorf("risk policy invalid: %w", err)
	}
	return nil
}

// Position returns a copy of the current managed position.
func (s *Sentinel) Position() types.Position {
	return s.position
}

// Run executes cycles until the source is exhausted or the context is
// cancelled. It returns the number of cycles completed.
func (s *Sentinel) Run(ctx context.Context) int {
	s.logger.Info().
		Dur("pollInterval", s.pollInterval).
		Msg("Starting sentinel main loop")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Sentinel loop stopped due to context cancellation")
			s.logRunSummary()
			return s.cycleCount
		default:
		}

		obs, ok, err := s.source.Next()
		if err != nil {
			s.logger.Error().Err(err).Msg("Cycle skipped: failed to fetch market observation")
			if !s.sleep(ctx) {
				s.logRunSummary()
				return s.cycleCount
			}
			continue
		}
		if !ok {
			s.logger.Info().Msg("Market source exhausted")
			s.logRunSummary()
			return s.cycleCount
		}

		s.cycleCount++
		s.runCycle(obs)

		if !s.sleep(ctx) {
			s.logger.Info().Msg("Sentinel loop stopped due to context cancellation")
			s.logRunSummary()
			return s.cycleCount
		}
	}
}

// runCycle executes one complete observe, decide, execute cycle.
func (s *Sentinel) runCycle(obs types.MarketObservation) {
	cycleStart := time.Now()

	// Unique cycle ID for tracing logs across the entire cycle
	cycleID := uuid.New().String()
	cycleLogger := s.logger.With().Str("cycle_id", cycleID).Int("cycle", s.cycleCount).Logger()

	cycleLogger.Info().
		Uint64("slot", obs.Slot).
		Float64("price", obs.PriceUSDC).
		Uint64("priorityFee", obs.PriorityFee).
		Str("source", obs.Source).
		Msg("--- Starting sentinel cycle ---")

	s.lastPrice = obs.PriceUSDC

	decision := s.risk.Decide(s.position, obs)
	cycleLogger.Info().
		Float64("healthFactor", decision.HealthFactor).
		Str("action", string(decision.Action.Kind)).
		Str("reason", decision.Reason).
		Str("proof", decision.Proof).
		Msg("Risk decision computed")

	receipt, err := s.executor.Execute(&s.position, obs, decision, s.policy.MaxSlippageBPS)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle skipped: execution failed")
		return
	}

	// Cooldown arms only after a confirmed unwind, never on the decision alone.
	if decision.Action.Kind == types.ActionPartialUnwind {
		s.risk.MarkUnwindExecuted(obs.Slot)
		s.unwinds++
		cycleLogger.Info().
			Float64("soldSOL", receipt.SoldSOL).
			Float64("repaidUSDC", receipt.RepaidUSDC).
			Str("txID", receipt.TxID).
			Str("quoteSource", receipt.QuoteSource).
			Float64("healthFactorAfter", receipt.HealthFactorAfter).
			Msg("Partial unwind executed")
	} else {
		s.holds++
	}

	if err := s.audit.Append(obs, decision, receipt); err != nil {
		cycleLogger.Warn().Err(err).Msg("Failed to append audit row; continuing")
	}

	if s.persistCycles {
		s.saveCycleRecord(cycleStart, obs, decision, receipt, cycleLogger)
	}

	hfAfter := s.position.HealthFactor(obs.PriceUSDC, s.policy.LiquidationThreshold)
	s.dashboard.ApplyCycle(obs, decision, receipt, s.position, hfAfter)

	cycleLogger.Info().
		Dur("duration", time.Since(cycleStart)).
		Float64("healthFactor", hfAfter).
		Msg("Sentinel cycle completed")
}

// saveCycleRecord persists the cycle to Postgres. Persistence is best effort:
// a database failure is logged and the run continues.
func (s *Sentinel) saveCycleRecord(ts time.Time, obs types.MarketObservation, decision types.Decision, receipt types.ExecutionReceipt, cycleLogger zerolog.Logger) {
	cycleNumber, err := state.IncrementCycleNumber()
	if err != nil {
		cycleLogger.Warn().Err(err).Msg("Failed to increment cycle counter; skipping persistence")
		return
	}

	record := types.CycleRecord{
		CycleNumber: cycleNumber,
		Timestamp:   ts,
		Observation: obs,
		Decision:    decision,
		Receipt:     receipt,
		Position:    s.position,
	}
	recordID, err := state.SaveCycleRecord(record)
	if err != nil {
		cycleLogger.Warn().Err(err).Msg("Failed to persist cycle record; continuing")
		return
	}
	cycleLogger.Debug().Int64("recordID", recordID).Int("cycleNumber", cycleNumber).Msg("Cycle record persisted")
}

// sleep waits for one poll interval. Returns false if the context was
// cancelled during the wait.
func (s *Sentinel) sleep(ctx context.Context) bool {
	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// logRunSummary reports the final state of the run: cycle counts, the final
// position balances and the health factor at the last observed price.
func (s *Sentinel) logRunSummary() {
	finalHF := types.SafeHealthFactor
	if s.lastPrice > 0 {
		finalHF = s.position.HealthFactor(s.lastPrice, s.policy.LiquidationThreshold)
	}

	s.logger.Info().
		Int("cycles", s.cycleCount).
		Int("holds", s.holds).
		Int("unwinds", s.unwinds).
		Float64("collateralSOL", s.position.CollateralSOL).
		Float64("stableUSDC", s.position.StableUSDC).
		Float64("debtUSDC", s.position.DebtUSDC).
		Float64("finalHealthFactor", finalHF).
		Msg("=== Sentinel run summary ===")
}
