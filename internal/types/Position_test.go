package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthFactor(t *testing.T) {
	tests := []struct {
		name     string
		position Position
		price    float64
		want     float64
	}{
		{
			name:     "exactly at liquidation boundary",
			position: Position{CollateralSOL: 10, StableUSDC: 100, DebtUSDC: 1800},
			price:    170,
			want:     0.9,
		},
		{
			name:     "comfortably healthy",
			position: Position{CollateralSOL: 20, StableUSDC: 500, DebtUSDC: 1500},
			price:    220,
			want:     2.94,
		},
		{
			name:     "zero debt reports the safe sentinel",
			position: Position{CollateralSOL: 10, StableUSDC: 100, DebtUSDC: 0},
			price:    170,
			want:     SafeHealthFactor,
		},
		{
			name:     "negative debt reports the safe sentinel",
			position: Position{CollateralSOL: 10, DebtUSDC: -5},
			price:    170,
			want:     SafeHealthFactor,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.position.HealthFactor(tc.price, 0.9)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestAegisError(t *testing.T) {
	err := Errorf(ErrData, "pyth price", "http %d", 502)
	assert.Equal(t, ErrData, KindOf(err))
	assert.Contains(t, err.Error(), "data error: pyth price")
	assert.Contains(t, err.Error(), "502")

	wrapped := NewError(ErrIo, "audit log", err)
	assert.Equal(t, ErrIo, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, wrapped.Err)

	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, ErrorKind(""), KindOf(assert.AnError))
}
