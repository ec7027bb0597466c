// Package collector orchestrates sync cycles: it resolves the starting
// cursor for every (asset, series) pair, runs the three sync routines
// sequentially per asset and records the run outcome in the store.
package collector

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/seaquake/bitsync/internal/config"
	"github.com/seaquake/bitsync/internal/storage"
	"github.com/seaquake/bitsync/internal/syncer"
)

// Mode selects how far back a cycle collects.
type Mode string

const (
	// ModeInitial collects the full configured lookback range.
	ModeInitial Mode = "initial"
	// ModeUpdate resumes from the stored cursors.
	ModeUpdate Mode = "update"
)

// TargetStartDateKey is the operator setting consulted when an asset has no
// stored rows yet.
const TargetStartDateKey = "target_start_date"

// ErrCycleRunning is returned when RunCycle is invoked while another cycle
// is still in flight. Cycles never run concurrently: cursor reads and the
// following upserts are not transactionally linked.
var ErrCycleRunning = errors.New("a sync cycle is already running")

// Collector drives sync cycles over the configured assets.
type Collector struct {
	syncer  *syncer.Syncer
	store   storage.Store
	cfg     *config.Config
	running atomic.Bool
	now     func() time.Time
}

// New creates a collector.
func New(s *syncer.Syncer, store storage.Store, cfg *config.Config) *Collector {
	return &Collector{syncer: s, store: store, cfg: cfg, now: time.Now}
}

// RunCycle runs one full sync cycle: for every configured symbol it syncs
// candles, funding and open interest in sequence. A failure in one series
// is logged and recorded but does not stop the remaining series or assets.
// Safe to invoke repeatedly, never concurrently: a second invocation while
// one is in flight returns ErrCycleRunning.
func (c *Collector) RunCycle(ctx context.Context, mode Mode, explicitStart *time.Time) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrCycleRunning
	}
	defer c.running.Store(false)

	startMsg := fmt.Sprintf("Mode: %v, StartDate: %v", mode, startDateLabel(explicitStart))
	if err := c.store.LogRun(ctx, storage.RunStarted, startMsg); err != nil {
		logErrStack(err)
	}

	now := c.now().UTC()
	endMs := now.UnixMilli()
	var firstErr error

	for _, symbol := range c.cfg.Exchange.Symbols {
		asset := strings.TrimSuffix(symbol, c.cfg.Exchange.QuoteSuffix)
		log.Info().Str("symbol", symbol).Str("asset", asset).Msg("starting collection")

		if start, err := c.candleStart(ctx, mode, explicitStart, asset, now); err != nil {
			logErrStack(err)
			firstErr = firstNonNil(firstErr, err)
		} else if err = c.syncer.SyncCandles(ctx, asset, symbol, start.UnixMilli(), endMs); err != nil {
			logErrStack(err)
			firstErr = firstNonNil(firstErr, err)
		}

		if cutoff, err := c.fundingCutoff(ctx, mode, explicitStart, asset, now); err != nil {
			logErrStack(err)
			firstErr = firstNonNil(firstErr, err)
		} else if err = c.syncer.SyncFunding(ctx, asset, symbol, cutoff.UnixMilli()); err != nil {
			logErrStack(err)
			firstErr = firstNonNil(firstErr, err)
		}

		if err := c.syncer.ReconcileOpenInterest(ctx, asset, symbol); err != nil {
			logErrStack(err)
			firstErr = firstNonNil(firstErr, err)
		}

		// Cancellation aborts the whole cycle, not just one series.
		if ctx.Err() != nil {
			firstErr = firstNonNil(firstErr, ctx.Err())
			break
		}
	}

	if firstErr != nil {
		if err := c.store.LogRun(ctx, storage.RunError, firstErr.Error()); err != nil {
			logErrStack(err)
		}
		return firstErr
	}
	if err := c.store.LogRun(ctx, storage.RunSuccess, "Cycle completed successfully"); err != nil {
		logErrStack(err)
	}
	log.Info().Msg("cycle completed successfully")
	return nil
}

// candleStart reads the stored cursor state and resolves the candle start.
func (c *Collector) candleStart(ctx context.Context, mode Mode, explicit *time.Time, asset string, now time.Time) (time.Time, error) {
	last, setting, err := c.cursorState(ctx, mode, storage.SeriesCandles, asset)
	if err != nil {
		return time.Time{}, err
	}
	return resolveCandleStart(mode, explicit, last, setting, now, &c.cfg.Sync), nil
}

// fundingCutoff reads the stored cursor state and resolves the funding cutoff.
func (c *Collector) fundingCutoff(ctx context.Context, mode Mode, explicit *time.Time, asset string, now time.Time) (time.Time, error) {
	last, setting, err := c.cursorState(ctx, mode, storage.SeriesFunding, asset)
	if err != nil {
		return time.Time{}, err
	}
	return resolveFundingCutoff(mode, explicit, last, setting, now, &c.cfg.Sync), nil
}

// cursorState fetches the two store inputs of cursor resolution: the max
// stored timestamp and the target start date setting. Initial mode skips
// both reads, it never resumes.
func (c *Collector) cursorState(ctx context.Context, mode Mode, series storage.Series, asset string) (*time.Time, string, error) {
	if mode == ModeInitial {
		return nil, "", nil
	}
	ts, ok, err := c.store.LastTimestamp(ctx, series, asset)
	if err != nil {
		return nil, "", errors.Wrap(err, "last timestamp")
	}
	if ok {
		return &ts, "", nil
	}
	setting, _, err := c.store.GetSetting(ctx, TargetStartDateKey)
	if err != nil {
		return nil, "", errors.Wrap(err, "get setting")
	}
	return nil, setting, nil
}

// Status returns the most recent run log entry.
func (c *Collector) Status(ctx context.Context) (storage.RunLogEntry, bool, error) {
	return c.store.LastRun(ctx)
}

func startDateLabel(explicit *time.Time) string {
	if explicit == nil {
		return "Auto"
	}
	return explicit.Format(settingDateLayout)
}

func firstNonNil(current, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}

// logErrStack logs error with stack trace.
func logErrStack(err error) {
	log.Error().Stack().Err(errors.WithStack(err)).Msg("")
}
