package datafetcher

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-protocol/sentinel/internal/config"
	"github.com/aegis-protocol/sentinel/internal/types"
)

func testMarketPolicy() config.MarketPolicy {
	return config.MarketPolicy{
		FeePercentile:      0.75,
		DefaultPriorityFee: 25_000,
		PrimaryPriceSource: "pyth",
	}
}

// fakeRPC answers getSlot and getRecentPrioritizationFees.
func fakeRPC(t *testing.T, slot uint64, fees []uint64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "getSlot":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%d}`, slot)
		case "getRecentPrioritizationFees":
			rows := make([]map[string]uint64, 0, len(fees))
			for i, fee := range fees {
				rows = append(rows, map[string]uint64{"slot": slot - uint64(i), "prioritizationFee": fee})
			}
			payload, _ := json.Marshal(rows)
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, payload)
		default:
			t.Fatalf("unexpected rpc method %s", req.Method)
		}
	}))
}

func fakePyth(price string, expo int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"parsed":[{"price":{"price":"%s","expo":%d}}]}`, price, expo)
	}))
}

func TestNewLive_Validation(t *testing.T) {
	_, err := NewLive(LiveConfig{Policy: testMarketPolicy()})
	require.Error(t, err)
	assert.Equal(t, types.ErrConfig, types.KindOf(err))

	bad := testMarketPolicy()
	bad.FeePercentile = 1.5
	_, err = NewLive(LiveConfig{RPCURL: "http://localhost:1", Policy: bad})
	require.Error(t, err)
	assert.Equal(t, types.ErrConfig, types.KindOf(err))
}

func TestLive_NextHappyPath(t *testing.T) {
	rpc := fakeRPC(t, 361_000_000, []uint64{100, 400, 200, 300})
	defer rpc.Close()
	pyth := fakePyth("21012345678", -8)
	defer pyth.Close()

	source, err := NewLive(LiveConfig{
		RPCURL:        rpc.URL,
		PythHermesURL: pyth.URL,
		PythSolFeedID: config.DefaultPythSolFeedID,
		MaxCycles:     20,
		Policy:        testMarketPolicy(),
	})
	require.NoError(t, err)

	obs, ok, err := source.Next()
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, uint64(361_000_000), obs.Slot)
	assert.InDelta(t, 210.12345678, obs.PriceUSDC, 1e-9)
	// 75th percentile over the sorted samples [100,200,300,400].
	assert.Equal(t, uint64(400), obs.PriorityFee)
	assert.Equal(t, "live-helius-pyth", obs.Source)
}

func TestLive_EmptyFeeSamplesUseDefault(t *testing.T) {
	rpc := fakeRPC(t, 1, nil)
	defer rpc.Close()
	pyth := fakePyth("20000000000", -8)
	defer pyth.Close()

	source, err := NewLive(LiveConfig{
		RPCURL:        rpc.URL,
		PythHermesURL: pyth.URL,
		MaxCycles:     1,
		Policy:        testMarketPolicy(),
	})
	require.NoError(t, err)

	obs, ok, err := source.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(25_000), obs.PriorityFee)
}

func TestLive_PriceFallsBackToJupiter(t *testing.T) {
	rpc := fakeRPC(t, 1, []uint64{100})
	defer rpc.Close()

	pyth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{}`))
	}))
	defer pyth.Close()

	jupiter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":{"%s":{"usdPrice":"209.5"}}}`, config.SOLMint)
	}))
	defer jupiter.Close()

	source, err := NewLive(LiveConfig{
		RPCURL:          rpc.URL,
		PythHermesURL:   pyth.URL,
		JupiterPriceURL: jupiter.URL,
		MaxCycles:       1,
		Policy:          testMarketPolicy(),
	})
	require.NoError(t, err)

	obs, ok, err := source.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 209.5, obs.PriceUSDC, 1e-9)
}

func TestLive_BothPriceSourcesFailing(t *testing.T) {
	rpc := fakeRPC(t, 1, []uint64{100})
	defer rpc.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{}`))
	}))
	defer down.Close()

	source, err := NewLive(LiveConfig{
		RPCURL:          rpc.URL,
		PythHermesURL:   down.URL,
		JupiterPriceURL: down.URL,
		MaxCycles:       1,
		Policy:          testMarketPolicy(),
	})
	require.NoError(t, err)

	_, _, err = source.Next()
	require.Error(t, err)
	assert.Equal(t, types.ErrData, types.KindOf(err))
}

func TestLive_CycleBudgetEndsStream(t *testing.T) {
	rpc := fakeRPC(t, 1, []uint64{100})
	defer rpc.Close()
	pyth := fakePyth("20000000000", -8)
	defer pyth.Close()

	source, err := NewLive(LiveConfig{
		RPCURL:        rpc.URL,
		PythHermesURL: pyth.URL,
		MaxCycles:     2,
		Policy:        testMarketPolicy(),
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, ok, err := source.Next()
		require.NoError(t, err)
		require.True(t, ok)
	}

	_, ok, err := source.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONValueParsing(t *testing.T) {
	n, err := JSONToUint64(json.RawMessage(`"12345"`), "field")
	require.NoError(t, err)
	assert.Equal(t, uint64(12_345), n)

	n, err = JSONToUint64(json.RawMessage(`12345`), "field")
	require.NoError(t, err)
	assert.Equal(t, uint64(12_345), n)

	f, err := JSONToFloat64(json.RawMessage(`"1.5"`), "field")
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	i, err := JSONToInt(json.RawMessage(`-8`), "field")
	require.NoError(t, err)
	assert.Equal(t, -8, i)

	_, err = JSONToUint64(json.RawMessage(`"abc"`), "field")
	require.Error(t, err)
	assert.Equal(t, types.ErrData, types.KindOf(err))
}
