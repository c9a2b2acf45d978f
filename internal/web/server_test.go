package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-protocol/sentinel/internal/dashboard"
	"github.com/aegis-protocol/sentinel/internal/types"
)

func testServer() (*Server, *dashboard.State) {
	snapshot := dashboard.NewState(types.Position{Wallet: "demo", CollateralSOL: 10, StableUSDC: 100, DebtUSDC: 1800}, 25)
	return NewServer("8080", snapshot, false), snapshot
}

func TestSnapshotEndpoint(t *testing.T) {
	server, snapshot := testServer()

	snapshot.ApplyCycle(
		types.MarketObservation{Slot: 3, PriceUSDC: 204, Source: "scripted"},
		types.Decision{Slot: 3, HealthFactor: 1.02, Price: 204, Reason: "test", Proof: "proof-0x1"},
		types.ExecutionReceipt{Slot: 3, Action: "hold", TxID: "none", QuoteSource: "none"},
		types.Position{Wallet: "demo", CollateralSOL: 10, StableUSDC: 100, DebtUSDC: 1800},
		1.02,
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var view dashboard.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "demo", view.Wallet)
	assert.Equal(t, uint64(3), view.Slot)
	assert.Equal(t, 204.0, view.Price)
	assert.Equal(t, "hold", view.LastAction)
	assert.NotEmpty(t, view.DecisionLog)
}

func TestSnapshotServedOnAnyPath(t *testing.T) {
	server, _ := testServer()

	for _, path := range []string{"/", "/dashboard", "/anything/else"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "path %s", path)
		var view dashboard.View
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, "demo", view.Wallet)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := testServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, false, body["database_enabled"])
}

func TestCycleEndpointsHiddenWithoutDatabase(t *testing.T) {
	server, _ := testServer()

	req := httptest.NewRequest(http.MethodGet, "/api/cycles", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	// Without the store the route falls through to the snapshot handler.
	require.Equal(t, http.StatusOK, rec.Code)
	var view dashboard.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "demo", view.Wallet)
}

func TestCORSHeaders(t *testing.T) {
	server, _ := testServer()

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
