// Package syncer implements the incremental synchronization engine: chunked
// candle collection, backward paginated funding collection and open interest
// gap reconciliation, all writing through the idempotent store contract.
package syncer

import (
	"context"
	"errors"

	"github.com/seaquake/bitsync/internal/bitget"
	"github.com/seaquake/bitsync/internal/config"
	"github.com/seaquake/bitsync/internal/storage"
)

const hourMs = int64(60 * 60 * 1000)

// Client is the upstream API capability the engine drives. *bitget.Client
// satisfies it, tests use fakes.
type Client interface {
	HistoryCandles(ctx context.Context, symbol string, startMs, endMs int64) ([]bitget.Candle, error)
	FundingHistory(ctx context.Context, symbol string, page int) ([]bitget.FundingEvent, error)
	OpenInterest(ctx context.Context, symbol string) (bitget.Snapshot, error)
}

// Syncer runs the per asset sync routines against one client and one store.
type Syncer struct {
	client          Client
	store           storage.Store
	pageSpanHours   int
	fundingPageSize int
	oiDivisors      map[string]int64
}

// New creates a syncer. The candle page span equals the API row limit
// expressed in hours.
func New(client Client, store storage.Store, cfg *config.Sync) *Syncer {
	return &Syncer{
		client:          client,
		store:           store,
		pageSpanHours:   cfg.CandleRowLimit,
		fundingPageSize: cfg.FundingPageSize,
		oiDivisors:      cfg.OIUnitDivisors,
	}
}

// isBusinessErr reports whether err is an application level failure signaled
// inside a successful transport response.
func isBusinessErr(err error) bool {
	var apiErr *bitget.APIError
	return errors.As(err, &apiErr)
}
