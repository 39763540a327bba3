package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCaseInsensitive(t *testing.T) {
	usdc, ok := Lookup("usdc")
	require.True(t, ok)
	assert.Equal(t, "USDC", usdc.Symbol)
	assert.Equal(t, "0x2C9678042D52B97D27f2bD2947F7111d93F3dD0D", usdc.Address)
	assert.False(t, usdc.Native)

	eth, ok := Lookup(" eth ")
	require.True(t, ok)
	assert.True(t, eth.Native)
	assert.Empty(t, eth.Address)

	_, ok = Lookup("XYZ")
	assert.False(t, ok)
}

func TestFallbackRates(t *testing.T) {
	usdc := Fallback("USDC")
	assert.InDelta(t, 0.0036, usdc.APR, 1e-9)
	assert.InDelta(t, 0.80, usdc.LTV, 1e-9)
	assert.InDelta(t, 0.85, usdc.LiquidationThreshold, 1e-9)

	unknown := Fallback("XYZ")
	assert.InDelta(t, 0.003, unknown.APR, 1e-9)
	assert.InDelta(t, 0.75, unknown.LTV, 1e-9)
	assert.InDelta(t, 0.80, unknown.LiquidationThreshold, 1e-9)
}

func TestRiskLevels(t *testing.T) {
	assert.Equal(t, "Medium to High", RiskLevel("eth"))
	assert.Equal(t, "Medium to High", RiskLevel("WBTC"))
	assert.Equal(t, "Medium to High", RiskLevel("WETH"))
	assert.Equal(t, "Low", RiskLevel("USDC"))
	assert.Equal(t, "Low", RiskLevel("usdt"))
	assert.Equal(t, "Low", RiskLevel("DAI"))
	assert.Equal(t, "Medium", RiskLevel("LINK"))
}

func TestSupportedSymbols(t *testing.T) {
	symbols := SupportedSymbols()
	assert.Equal(t, []string{"ETH", "WBTC", "USDC", "DAI"}, symbols)
}
