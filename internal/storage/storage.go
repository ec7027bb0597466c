package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Series identifies one persisted data series. Values double as the mysql
// table names.
type Series string

const (
	// SeriesCandles is the hourly OHLCV series.
	SeriesCandles Series = "ohlcv_1h"
	// SeriesFunding is the funding rate series.
	SeriesFunding Series = "funding_1h"
	// SeriesOpenInterest is the open interest series.
	SeriesOpenInterest Series = "oi_1h"
)

// Run log statuses recorded around every cycle.
const (
	RunStarted = "STARTED"
	RunSuccess = "SUCCESS"
	RunError   = "ERROR"
)

// Candle represents the final form of an hourly candle ready to store.
// Numeric fields keep decimal precision so repeated upserts never drift.
type Candle struct {
	Asset     string
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Funding represents one settled funding rate ready to store. Timestamp is
// the exchange reported settlement time, not necessarily hour aligned.
type Funding struct {
	Asset     string
	Timestamp time.Time
	Rate      decimal.Decimal
}

// OpenInterest represents one open interest sample ready to store. Real and
// interpolated samples are persisted identically.
type OpenInterest struct {
	Asset     string
	Timestamp time.Time
	Value     decimal.Decimal
}

// RunLogEntry is one append-only audit record of an orchestration cycle.
type RunLogEntry struct {
	Status    string
	Message   string
	Timestamp time.Time
}

// Store is the persistence contract shared by all backends. Upserts are
// idempotent on (asset, timestamp), so re-running a sync over an overlapping
// window is a no-op for already seen rows.
type Store interface {
	UpsertCandles(ctx context.Context, rows []Candle) error
	UpsertFunding(ctx context.Context, rows []Funding) error
	UpsertOpenInterest(ctx context.Context, rows []OpenInterest) error

	// LastTimestamp returns the max stored timestamp for the asset and
	// series, reporting absence instead of an error on empty series.
	LastTimestamp(ctx context.Context, series Series, asset string) (time.Time, bool, error)

	// LastOpenInterest returns the newest stored open interest sample.
	LastOpenInterest(ctx context.Context, asset string) (OpenInterest, bool, error)

	// SeriesTimestamps returns all stored timestamps for the asset and
	// series in ascending order, for the gap report.
	SeriesTimestamps(ctx context.Context, series Series, asset string) ([]time.Time, error)

	LogRun(ctx context.Context, status, message string) error
	LastRun(ctx context.Context) (RunLogEntry, bool, error)

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error

	Close() error
}
