package collector

import (
	"context"
	"strings"
	"time"

	"github.com/seaquake/bitsync/internal/storage"
)

// gapDrift allows slight settlement drift before two consecutive hourly
// samples count as a hole.
const gapDrift = time.Hour + 6*time.Minute

// Gap describes one detected hole in a stored series. The report is a read
// only diagnostic, it never triggers fetching by itself.
type Gap struct {
	Series storage.Series `json:"series"`
	Kind   string         `json:"kind"` // "missing_head" or "internal"
	From   time.Time      `json:"from"`
	To     time.Time      `json:"to"`
	Hours  float64        `json:"hours"`
}

// GapReport scans the candle and open interest series of every configured
// asset for holes: a missing head versus the target start date setting and
// internal jumps larger than the drift allowance.
func (c *Collector) GapReport(ctx context.Context) (map[string][]Gap, error) {
	setting, _, err := c.store.GetSetting(ctx, TargetStartDateKey)
	if err != nil {
		return nil, err
	}
	target, hasTarget := parseSettingDate(setting)

	report := make(map[string][]Gap)
	for _, symbol := range c.cfg.Exchange.Symbols {
		asset := strings.TrimSuffix(symbol, c.cfg.Exchange.QuoteSuffix)
		var gaps []Gap

		candleTs, err := c.store.SeriesTimestamps(ctx, storage.SeriesCandles, asset)
		if err != nil {
			return nil, err
		}
		if len(candleTs) > 0 && hasTarget && candleTs[0].Sub(target) > gapDrift {
			gaps = append(gaps, Gap{
				Series: storage.SeriesCandles,
				Kind:   "missing_head",
				From:   target,
				To:     candleTs[0],
				Hours:  candleTs[0].Sub(target).Hours(),
			})
		}
		gaps = append(gaps, internalGaps(storage.SeriesCandles, candleTs)...)

		oiTs, err := c.store.SeriesTimestamps(ctx, storage.SeriesOpenInterest, asset)
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, internalGaps(storage.SeriesOpenInterest, oiTs)...)

		if len(gaps) > 0 {
			report[asset] = gaps
		}
	}
	return report, nil
}

func internalGaps(series storage.Series, ts []time.Time) []Gap {
	var gaps []Gap
	for i := 1; i < len(ts); i++ {
		if diff := ts[i].Sub(ts[i-1]); diff > gapDrift {
			gaps = append(gaps, Gap{
				Series: series,
				Kind:   "internal",
				From:   ts[i-1],
				To:     ts[i],
				Hours:  diff.Hours(),
			})
		}
	}
	return gaps
}
