package syncer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/seaquake/bitsync/internal/storage"
)

// SyncFunding walks backward through the paginated funding history (page 1
// is the most recent) until it reaches the cutoff or the history runs out.
// The cutoff is exclusive: rows with timestamp <= cutoffMs are dropped so
// the boundary row is never re-inserted.
func (s *Syncer) SyncFunding(ctx context.Context, asset, symbol string, cutoffMs int64) error {
	for page := 1; ; page++ {
		events, err := s.client.FundingHistory(ctx, symbol, page)
		if err != nil {
			if isBusinessErr(err) {
				log.Error().Str("asset", asset).Int("page", page).Err(err).Msg("funding page failed, stopping")
				return nil
			}
			return errors.Wrap(err, "funding fetch")
		}
		if len(events) == 0 {
			return nil
		}

		reachedCutoff := false
		rows := make([]storage.Funding, 0, len(events))
		for _, ev := range events {
			if ev.Timestamp.UnixMilli() <= cutoffMs {
				reachedCutoff = true
				continue
			}
			rows = append(rows, storage.Funding{Asset: asset, Timestamp: ev.Timestamp, Rate: ev.Rate})
		}

		if len(rows) > 0 {
			if err = s.store.UpsertFunding(ctx, rows); err != nil {
				return errors.Wrap(err, "funding upsert")
			}
			log.Info().Str("asset", asset).Int("page", page).Int("rows", len(rows)).Msg("upserted funding records")
		}

		// A short page is the end-of-history signal.
		if reachedCutoff || len(events) < s.fundingPageSize {
			return nil
		}
	}
}
