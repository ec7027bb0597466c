package syncer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/seaquake/bitsync/internal/storage"
)

// oiScale is the fixed decimal precision of stored open interest values.
const oiScale = 3

// ReconcileOpenInterest fetches the current open interest snapshot, applies
// the per asset unit correction, and bridges any hole since the last stored
// sample with linearly interpolated hourly rows before storing the real
// sample. Exactly one real sample is stored per call; interpolation only
// triggers for gaps greater than one hour.
//
// The interpolation anchors on the last stored row whether it was real or
// itself interpolated, so long outages accumulate drift toward the next
// real sample.
func (s *Syncer) ReconcileOpenInterest(ctx context.Context, asset, symbol string) error {
	snap, err := s.client.OpenInterest(ctx, symbol)
	if err != nil {
		if isBusinessErr(err) {
			log.Warn().Str("asset", asset).Err(err).Msg("open interest snapshot unavailable")
			return nil
		}
		return errors.Wrap(err, "open interest fetch")
	}

	value := snap.Amount
	// Some assets report a two sided aggregate (long+short), the static
	// divisor table converts those to the single sided convention.
	if div, ok := s.oiDivisors[asset]; ok && div > 1 {
		value = value.Div(decimal.NewFromInt(div))
	}
	value = value.Round(oiScale)
	current := storage.OpenInterest{Asset: asset, Timestamp: snap.Timestamp, Value: value}

	last, ok, err := s.store.LastOpenInterest(ctx, asset)
	if err != nil {
		return errors.Wrap(err, "open interest last sample")
	}

	var rows []storage.OpenInterest
	if ok {
		elapsed := int64(current.Timestamp.Sub(last.Timestamp).Hours())
		if elapsed > 1 {
			log.Info().Str("asset", asset).Int64("gap_hours", elapsed).Msg("open interest gap detected, interpolating")
			step := current.Value.Sub(last.Value).Div(decimal.NewFromInt(elapsed))
			for i := int64(1); i < elapsed; i++ {
				rows = append(rows, storage.OpenInterest{
					Asset:     asset,
					Timestamp: last.Timestamp.Add(time.Duration(i) * time.Hour),
					Value:     last.Value.Add(step.Mul(decimal.NewFromInt(i))).Round(oiScale),
				})
			}
		}
	}
	rows = append(rows, current)

	if err = s.store.UpsertOpenInterest(ctx, rows); err != nil {
		return errors.Wrap(err, "open interest upsert")
	}
	log.Info().Str("asset", asset).Str("value", current.Value.String()).Time("ts", current.Timestamp).Int("rows", len(rows)).Msg("upserted open interest records")
	return nil
}
