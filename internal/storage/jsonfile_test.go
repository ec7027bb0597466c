package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJSONFile(t *testing.T) *JSONFile {
	t.Helper()
	return &JSONFile{dir: t.TempDir()}
}

func candleRow(asset string, ts time.Time, close string) Candle {
	return Candle{
		Asset:     asset,
		Timestamp: ts,
		Open:      decimal.RequireFromString("100"),
		High:      decimal.RequireFromString("110"),
		Low:       decimal.RequireFromString("90"),
		Close:     decimal.RequireFromString(close),
		Volume:    decimal.RequireFromString("12.5"),
	}
}

func TestJSONFileUpsertCandlesIsIdempotent(t *testing.T) {
	j := newTestJSONFile(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.UpsertCandles(ctx, []Candle{candleRow("ETH", ts, "105")}))
	require.NoError(t, j.UpsertCandles(ctx, []Candle{candleRow("ETH", ts, "106")}))

	stamps, err := j.SeriesTimestamps(ctx, SeriesCandles, "ETH")
	require.NoError(t, err)
	require.Len(t, stamps, 1)
	assert.Equal(t, ts, stamps[0])
}

func TestJSONFileLastTimestamp(t *testing.T) {
	j := newTestJSONFile(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, ok, err := j.LastTimestamp(ctx, SeriesCandles, "ETH")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, j.UpsertCandles(ctx, []Candle{
		candleRow("ETH", base, "105"),
		candleRow("ETH", base.Add(2*time.Hour), "107"),
		candleRow("ETH", base.Add(time.Hour), "106"),
	}))

	last, ok, err := j.LastTimestamp(ctx, SeriesCandles, "ETH")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, base.Add(2*time.Hour), last)
}

func TestJSONFileLastTimestampAtEpoch(t *testing.T) {
	j := newTestJSONFile(t)
	ctx := context.Background()
	epoch := time.UnixMilli(0).UTC()

	require.NoError(t, j.UpsertCandles(ctx, []Candle{candleRow("ETH", epoch, "105")}))
	require.NoError(t, j.UpsertOpenInterest(ctx, []OpenInterest{
		{Asset: "ETH", Timestamp: epoch, Value: decimal.RequireFromString("100")},
	}))

	last, ok, err := j.LastTimestamp(ctx, SeriesCandles, "ETH")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, epoch, last)

	oi, ok, err := j.LastOpenInterest(ctx, "ETH")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, epoch, oi.Timestamp)
}

func TestJSONFileSeriesAreIsolatedPerAsset(t *testing.T) {
	j := newTestJSONFile(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.UpsertCandles(ctx, []Candle{candleRow("ETH", ts, "105")}))

	_, ok, err := j.LastTimestamp(ctx, SeriesCandles, "SOL")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONFileLastOpenInterest(t *testing.T) {
	j := newTestJSONFile(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, ok, err := j.LastOpenInterest(ctx, "ETH")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, j.UpsertOpenInterest(ctx, []OpenInterest{
		{Asset: "ETH", Timestamp: base, Value: decimal.RequireFromString("100.5")},
		{Asset: "ETH", Timestamp: base.Add(time.Hour), Value: decimal.RequireFromString("101.25")},
	}))

	last, ok, err := j.LastOpenInterest(ctx, "ETH")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Hour), last.Timestamp)
	assert.Equal(t, "101.25", last.Value.String())
}

func TestJSONFileFundingRoundTrip(t *testing.T) {
	j := newTestJSONFile(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, j.UpsertFunding(ctx, []Funding{
		{Asset: "ETH", Timestamp: ts, Rate: decimal.RequireFromString("-0.00025")},
	}))

	last, ok, err := j.LastTimestamp(ctx, SeriesFunding, "ETH")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ts, last)
}

func TestJSONFileRunLog(t *testing.T) {
	j := newTestJSONFile(t)
	ctx := context.Background()

	_, ok, err := j.LastRun(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, j.LogRun(ctx, RunStarted, "Mode: update, StartDate: Auto"))
	require.NoError(t, j.LogRun(ctx, RunSuccess, "Cycle completed successfully"))

	entry, ok, err := j.LastRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RunSuccess, entry.Status)
	assert.Equal(t, "Cycle completed successfully", entry.Message)
}

func TestJSONFileSettings(t *testing.T) {
	j := newTestJSONFile(t)
	ctx := context.Background()

	_, ok, err := j.GetSetting(ctx, "target_start_date")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, j.SetSetting(ctx, "target_start_date", "2026-01-01"))
	require.NoError(t, j.SetSetting(ctx, "target_start_date", "2026-02-01"))

	value, ok, err := j.GetSetting(ctx, "target_start_date")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-02-01", value)
}
