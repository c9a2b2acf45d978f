package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-protocol/sentinel/internal/audit"
	"github.com/aegis-protocol/sentinel/internal/config"
	"github.com/aegis-protocol/sentinel/internal/dashboard"
	"github.com/aegis-protocol/sentinel/internal/datafetcher"
	"github.com/aegis-protocol/sentinel/internal/executor"
	"github.com/aegis-protocol/sentinel/internal/risk"
	"github.com/aegis-protocol/sentinel/internal/types"
)

func testConfig(t *testing.T, script string) Config {
	policy := config.DefaultRiskPolicy()
	return Config{
		Source:       datafetcher.NewScripted(script),
		Executor:     executor.New(executor.Config{UseLiveQuote: false, LiqThreshold: policy.LiquidationThreshold}),
		Risk:         risk.New(policy),
		Dashboard:    dashboard.NewState(types.Position{Wallet: "demo", CollateralSOL: 10, StableUSDC: 100, DebtUSDC: 1800}, 25),
		Audit:        audit.NewWriter(filepath.Join(t.TempDir(), "audit.csv")),
		Policy:       policy,
		Position:     types.Position{Wallet: "demo", CollateralSOL: 10, StableUSDC: 100, DebtUSDC: 1800},
		PollInterval: time.Millisecond,
	}
}

func TestNew_RejectsMissingDependencies(t *testing.T) {
	cfg := testConfig(t, "210,25000")
	cfg.Source = nil
	_, err := New(cfg)
	require.Error(t, err)

	cfg = testConfig(t, "210,25000")
	cfg.PollInterval = 0
	_, err = New(cfg)
	require.Error(t, err)

	cfg = testConfig(t, "210,25000")
	cfg.Policy.MaxUnwindFraction = 0
	_, err = New(cfg)
	require.Error(t, err)
}

func TestRun_DrawdownTriggersUnwind(t *testing.T) {
	cfg := testConfig(t, "")
	sentinel, err := New(cfg)
	require.NoError(t, err)

	cycles := sentinel.Run(context.Background())

	// The default script has ten steps; every observation becomes a cycle.
	assert.Equal(t, 10, cycles)

	// The drawdown forces at least one unwind: collateral down, debt down.
	final := sentinel.Position()
	assert.Less(t, final.CollateralSOL, 10.0)
	assert.Less(t, final.DebtUSDC, 1800.0)

	// One audit row per cycle plus the header.
	data, err := os.ReadFile(cfg.Audit.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 11)
	assert.Equal(t, audit.Header, lines[0])

	// The dashboard saw the final cycle.
	view := cfg.Dashboard.Snapshot()
	assert.Equal(t, uint64(10), view.Slot)
	assert.Equal(t, final.DebtUSDC, view.DebtUSDC)
}

func TestRun_HealthyScriptOnlyHolds(t *testing.T) {
	cfg := testConfig(t, "220,25000;221,25000;222,25000")
	sentinel, err := New(cfg)
	require.NoError(t, err)

	cycles := sentinel.Run(context.Background())
	assert.Equal(t, 3, cycles)

	// Position untouched by a healthy market.
	assert.Equal(t, cfg.Position, sentinel.Position())

	view := cfg.Dashboard.Snapshot()
	assert.Equal(t, "hold", view.LastAction)
}

func TestRun_ContextCancellationStopsLoop(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.PollInterval = time.Hour
	sentinel, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- sentinel.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case cycles := <-done:
		assert.GreaterOrEqual(t, cycles, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}
