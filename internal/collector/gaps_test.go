package collector

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaquake/bitsync/internal/storage"
)

func seedCandles(t *testing.T, store *fakeStore, asset string, hours ...int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]storage.Candle, 0, len(hours))
	for _, h := range hours {
		rows = append(rows, storage.Candle{
			Asset:     asset,
			Timestamp: base.Add(time.Duration(h) * time.Hour),
			Open:      decimal.NewFromInt(1),
			High:      decimal.NewFromInt(1),
			Low:       decimal.NewFromInt(1),
			Close:     decimal.NewFromInt(1),
			Volume:    decimal.NewFromInt(1),
		})
	}
	require.NoError(t, store.UpsertCandles(context.Background(), rows))
}

func TestGapReportFindsInternalHole(t *testing.T) {
	store := newFakeStore()
	seedCandles(t, store, "ETH", 0, 1, 2, 6, 7)
	c := newTestCollector(&fakeClient{}, store, testConfig("ETHUSDT"))

	report, err := c.GapReport(context.Background())
	require.NoError(t, err)

	require.Len(t, report["ETH"], 1)
	gap := report["ETH"][0]
	assert.Equal(t, storage.SeriesCandles, gap.Series)
	assert.Equal(t, "internal", gap.Kind)
	assert.Equal(t, 4.0, gap.Hours)
}

func TestGapReportFindsMissingHead(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.SetSetting(context.Background(), TargetStartDateKey, "2026-02-25"))
	seedCandles(t, store, "ETH", 0, 1, 2)
	c := newTestCollector(&fakeClient{}, store, testConfig("ETHUSDT"))

	report, err := c.GapReport(context.Background())
	require.NoError(t, err)

	require.Len(t, report["ETH"], 1)
	gap := report["ETH"][0]
	assert.Equal(t, "missing_head", gap.Kind)
	assert.Equal(t, time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC), gap.From)
	assert.Equal(t, 96.0, gap.Hours)
}

func TestGapReportToleratesSettlementDrift(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertOpenInterest(context.Background(), []storage.OpenInterest{
		{Asset: "ETH", Timestamp: base, Value: decimal.NewFromInt(1)},
		{Asset: "ETH", Timestamp: base.Add(time.Hour + 5*time.Minute), Value: decimal.NewFromInt(1)},
	}))
	c := newTestCollector(&fakeClient{}, store, testConfig("ETHUSDT"))

	report, err := c.GapReport(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report)
}

func TestGapReportContiguousSeriesIsClean(t *testing.T) {
	store := newFakeStore()
	seedCandles(t, store, "ETH", 0, 1, 2, 3, 4)
	c := newTestCollector(&fakeClient{}, store, testConfig("ETHUSDT"))

	report, err := c.GapReport(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report)
}
