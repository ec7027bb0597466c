package syncer

import (
	"context"
	"sort"
	"time"

	"github.com/seaquake/bitsync/internal/bitget"
	"github.com/seaquake/bitsync/internal/config"
	"github.com/seaquake/bitsync/internal/storage"
)

// fakeClient scripts the upstream API per test.
type fakeClient struct {
	candles func(symbol string, startMs, endMs int64) ([]bitget.Candle, error)
	funding func(symbol string, page int) ([]bitget.FundingEvent, error)
	oi      func(symbol string) (bitget.Snapshot, error)
}

func (f *fakeClient) HistoryCandles(_ context.Context, symbol string, startMs, endMs int64) ([]bitget.Candle, error) {
	return f.candles(symbol, startMs, endMs)
}

func (f *fakeClient) FundingHistory(_ context.Context, symbol string, page int) ([]bitget.FundingEvent, error) {
	return f.funding(symbol, page)
}

func (f *fakeClient) OpenInterest(_ context.Context, symbol string) (bitget.Snapshot, error) {
	return f.oi(symbol)
}

// fakeStore is an in-memory Store keyed the same way the real backends are,
// on (asset, timestamp).
type fakeStore struct {
	candles    map[string]map[int64]storage.Candle
	funding    map[string]map[int64]storage.Funding
	oi         map[string]map[int64]storage.OpenInterest
	runs       []storage.RunLogEntry
	settings   map[string]string
	upsertErr  error
	oiUpserted []storage.OpenInterest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		candles:  map[string]map[int64]storage.Candle{},
		funding:  map[string]map[int64]storage.Funding{},
		oi:       map[string]map[int64]storage.OpenInterest{},
		settings: map[string]string{},
	}
}

func (f *fakeStore) UpsertCandles(_ context.Context, rows []storage.Candle) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, row := range rows {
		if f.candles[row.Asset] == nil {
			f.candles[row.Asset] = map[int64]storage.Candle{}
		}
		f.candles[row.Asset][row.Timestamp.UnixMilli()] = row
	}
	return nil
}

func (f *fakeStore) UpsertFunding(_ context.Context, rows []storage.Funding) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, row := range rows {
		if f.funding[row.Asset] == nil {
			f.funding[row.Asset] = map[int64]storage.Funding{}
		}
		f.funding[row.Asset][row.Timestamp.UnixMilli()] = row
	}
	return nil
}

func (f *fakeStore) UpsertOpenInterest(_ context.Context, rows []storage.OpenInterest) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.oiUpserted = append(f.oiUpserted, rows...)
	for _, row := range rows {
		if f.oi[row.Asset] == nil {
			f.oi[row.Asset] = map[int64]storage.OpenInterest{}
		}
		f.oi[row.Asset][row.Timestamp.UnixMilli()] = row
	}
	return nil
}

func (f *fakeStore) LastTimestamp(_ context.Context, series storage.Series, asset string) (time.Time, bool, error) {
	var (
		maxMs int64
		found bool
	)
	track := func(ms int64) {
		if !found || ms > maxMs {
			maxMs = ms
			found = true
		}
	}
	switch series {
	case storage.SeriesCandles:
		for ms := range f.candles[asset] {
			track(ms)
		}
	case storage.SeriesFunding:
		for ms := range f.funding[asset] {
			track(ms)
		}
	default:
		for ms := range f.oi[asset] {
			track(ms)
		}
	}
	if !found {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(maxMs).UTC(), true, nil
}

func (f *fakeStore) LastOpenInterest(_ context.Context, asset string) (storage.OpenInterest, bool, error) {
	var last storage.OpenInterest
	found := false
	for _, row := range f.oi[asset] {
		if !found || row.Timestamp.After(last.Timestamp) {
			last = row
			found = true
		}
	}
	return last, found, nil
}

func (f *fakeStore) SeriesTimestamps(_ context.Context, series storage.Series, asset string) ([]time.Time, error) {
	var out []time.Time
	switch series {
	case storage.SeriesCandles:
		for ms := range f.candles[asset] {
			out = append(out, time.UnixMilli(ms).UTC())
		}
	case storage.SeriesFunding:
		for ms := range f.funding[asset] {
			out = append(out, time.UnixMilli(ms).UTC())
		}
	default:
		for ms := range f.oi[asset] {
			out = append(out, time.UnixMilli(ms).UTC())
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Before(out[b]) })
	return out, nil
}

func (f *fakeStore) LogRun(_ context.Context, status, message string) error {
	f.runs = append(f.runs, storage.RunLogEntry{Status: status, Message: message, Timestamp: time.Now().UTC()})
	return nil
}

func (f *fakeStore) LastRun(_ context.Context) (storage.RunLogEntry, bool, error) {
	if len(f.runs) == 0 {
		return storage.RunLogEntry{}, false, nil
	}
	return f.runs[len(f.runs)-1], true, nil
}

func (f *fakeStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	value, ok := f.settings[key]
	return value, ok, nil
}

func (f *fakeStore) SetSetting(_ context.Context, key, value string) error {
	f.settings[key] = value
	return nil
}

func (f *fakeStore) Close() error { return nil }

func testSyncCfg() *config.Sync {
	return &config.Sync{
		Granularity:         "1H",
		CandleRowLimit:      200,
		FundingPageSize:     100,
		InitialLookbackDays: 90,
		CandleLookbackHours: 5,
		FundingLookbackDays: 1,
		OIUnitDivisors:      map[string]int64{"BTC": 2},
	}
}
