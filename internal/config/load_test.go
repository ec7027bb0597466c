package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"exchange":{"symbols":["BTCUSDT"]}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BitgetRESTBaseURL, cfg.Exchange.BaseURL)
	assert.Equal(t, "usdt-futures", cfg.Exchange.ProductType)
	assert.Equal(t, "USDT", cfg.Exchange.QuoteSuffix)
	assert.Equal(t, "BG_API_KEY", cfg.Exchange.APIKeyEnv)
	assert.Equal(t, "1H", cfg.Sync.Granularity)
	assert.Equal(t, 200, cfg.Sync.CandleRowLimit)
	assert.Equal(t, 100, cfg.Sync.FundingPageSize)
	assert.Equal(t, 90, cfg.Sync.InitialLookbackDays)
	assert.Equal(t, 5, cfg.Sync.CandleLookbackHours)
	assert.Equal(t, 1, cfg.Sync.FundingLookbackDays)
	assert.Equal(t, "jsonfile", cfg.Storage)
	assert.Equal(t, "data_dump", cfg.Connection.JSONFile.OutputDir)
}

func TestLoadKeepsUserValues(t *testing.T) {
	path := writeConfig(t, `{
		"exchange":{"symbols":["ETHUSDT","SOLUSDT"],"requests_per_sec":2},
		"sync":{"candle_row_limit":100,"oi_unit_divisors":{"BTC":2}},
		"storage":"mysql"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ETHUSDT", "SOLUSDT"}, cfg.Exchange.Symbols)
	assert.Equal(t, 2.0, cfg.Exchange.RequestsPerSec)
	assert.Equal(t, 100, cfg.Sync.CandleRowLimit)
	assert.Equal(t, int64(2), cfg.Sync.OIUnitDivisors["BTC"])
	assert.Equal(t, "mysql", cfg.Storage)
}

func TestLoadRequiresSymbols(t *testing.T) {
	path := writeConfig(t, `{"exchange":{"symbols":[]}}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadBadJSON(t *testing.T) {
	path := writeConfig(t, `{"exchange":`)

	_, err := Load(path)
	require.Error(t, err)
}
