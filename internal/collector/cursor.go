package collector

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seaquake/bitsync/internal/config"
)

// settingDateLayout is the format of operator supplied date settings.
const settingDateLayout = "2006-01-02"

// resolveCandleStart resolves where candle sync resumes for one asset.
// Precedence: initial mode takes the explicit start date or the full
// lookback; update mode resumes just after the last stored candle, then the
// target_start_date setting, then a short default lookback. Pure function
// of its inputs.
func resolveCandleStart(mode Mode, explicit, last *time.Time, setting string, now time.Time, cfg *config.Sync) time.Time {
	if mode == ModeInitial {
		if explicit != nil {
			return *explicit
		}
		return now.AddDate(0, 0, -cfg.InitialLookbackDays)
	}
	if last != nil {
		return last.Add(time.Hour)
	}
	if t, ok := parseSettingDate(setting); ok {
		return t
	}
	return now.Add(-time.Duration(cfg.CandleLookbackHours) * time.Hour)
}

// resolveFundingCutoff resolves the exclusive funding cutoff for one asset.
// Unlike candles the last stored timestamp is used as-is: the sync drops
// rows at or before the cutoff, so no +1 step is needed.
func resolveFundingCutoff(mode Mode, explicit, last *time.Time, setting string, now time.Time, cfg *config.Sync) time.Time {
	if mode == ModeInitial {
		if explicit != nil {
			return *explicit
		}
		return now.AddDate(0, 0, -cfg.InitialLookbackDays)
	}
	if last != nil {
		return *last
	}
	if t, ok := parseSettingDate(setting); ok {
		return t
	}
	return now.AddDate(0, 0, -cfg.FundingLookbackDays)
}

func parseSettingDate(setting string) (time.Time, bool) {
	if setting == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(settingDateLayout, setting)
	if err != nil {
		log.Warn().Str("target_start_date", setting).Msg("invalid date in settings, ignoring")
		return time.Time{}, false
	}
	return t.UTC(), true
}
