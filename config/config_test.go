package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
pair: WIKI_M
participant: "0xabc"
`))
	require.NoError(t, err)

	assert.Equal(t, "simulate", cfg.Platform)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, int64(30), cfg.FeeBps)
	assert.Equal(t, int64(100), cfg.SlippageBps)
	assert.Equal(t, 20*time.Minute, cfg.TradeDeadline)
	assert.Equal(t, 90*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 15*time.Second, cfg.PollBalanceInterval)
	assert.Equal(t, "./wal", cfg.WalDir)

	// 1e-8 quote units in wei
	assert.Equal(t, "10000000000", cfg.BasePrice.String())
	assert.Equal(t, "1000000000", cfg.Slope.String())
	assert.Equal(t, "1000000000", cfg.AvailableSupply.String())
}

func TestLoadParsesPair(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
pair: DOGE_USDT
participant: "0xabc"
`))
	require.NoError(t, err)

	assert.Equal(t, "DOGE", cfg.Pair.Base.Symbol)
	assert.Equal(t, 18, cfg.Pair.Base.Decimals)
	assert.Equal(t, "USDT", cfg.Pair.Quote.Symbol)
	assert.False(t, cfg.Pair.Quote.Native)
}

func TestLoadNativeQuote(t *testing.T) {
	pair, err := PairFromString("WIKI_M")
	require.NoError(t, err)
	assert.True(t, pair.Quote.Native)
}

func TestLoadRejectsInvalidPair(t *testing.T) {
	_, err := Load(writeConfig(t, `
pair: WIKIM
participant: "0xabc"
`))
	assert.Error(t, err)
}

func TestLoadRequiresParticipant(t *testing.T) {
	_, err := Load(writeConfig(t, `
pair: WIKI_M
`))
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
platform: chain
network: mainnet
pair: WIKI_M
participant: "0xabc"
curve_id: "0xcurve"
router: "0xrouter"
base_price: "0.5"
slippage_bps: 250
trade_deadline: 5m
`))
	require.NoError(t, err)

	assert.Equal(t, "chain", cfg.Platform)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, "0xcurve", cfg.CurveID)
	assert.Equal(t, "500000000000000000", cfg.BasePrice.String())
	assert.Equal(t, int64(250), cfg.SlippageBps)
	assert.Equal(t, 5*time.Minute, cfg.TradeDeadline)
}
