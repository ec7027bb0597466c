package syncer

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/seaquake/bitsync/internal/storage"
)

// SyncCandles walks [startMs, endMs) in page span sized chunks and upserts
// every candle row it receives. The cursor advances from the last row
// actually returned, not the requested chunk end, so partial pages are
// re-covered by the next request. The cursor strictly advances every
// iteration: a business failure or an empty chunk skips to the chunk end,
// and stale or duplicate upstream data forces a full page span jump.
func (s *Syncer) SyncCandles(ctx context.Context, asset, symbol string, startMs, endMs int64) error {
	span := int64(s.pageSpanHours) * hourMs
	cursor := startMs

	for cursor < endMs {
		chunkEnd := cursor + span
		if chunkEnd > endMs {
			chunkEnd = endMs
		}

		rows, err := s.client.HistoryCandles(ctx, symbol, cursor, chunkEnd)
		if err != nil {
			if isBusinessErr(err) {
				// Skip the chunk instead of retrying a permanently
				// failing window, progress must stay monotonic.
				log.Error().Str("asset", asset).Int64("chunk_start", cursor).Int64("chunk_end", chunkEnd).Err(err).Msg("candle chunk failed, skipping")
				cursor = chunkEnd
				continue
			}
			return errors.Wrap(err, "candle fetch")
		}

		if len(rows) == 0 {
			cursor = chunkEnd
			continue
		}

		// Upstream order is not guaranteed.
		sort.Slice(rows, func(a, b int) bool { return rows[a].Timestamp.Before(rows[b].Timestamp) })

		records := make([]storage.Candle, 0, len(rows))
		for _, row := range rows {
			records = append(records, storage.Candle{
				Asset:     asset,
				Timestamp: row.Timestamp,
				Open:      row.Open,
				High:      row.High,
				Low:       row.Low,
				Close:     row.Close,
				Volume:    row.Volume,
			})
		}
		if err = s.store.UpsertCandles(ctx, records); err != nil {
			return errors.Wrap(err, "candle upsert")
		}
		log.Info().Str("asset", asset).Int("rows", len(records)).Msg("upserted candle records")

		next := rows[len(rows)-1].Timestamp.UnixMilli() + hourMs
		if next <= cursor {
			// Guards against a provider returning stale data.
			next = cursor + span
		}
		cursor = next
	}
	return nil
}
