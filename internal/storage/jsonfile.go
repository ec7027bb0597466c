package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/seaquake/bitsync/internal/config"
)

// JSONFile is a file backed storage for running without a database. Each
// series keeps one JSON file per asset keyed by timestamp, so re-upserting
// the same (asset, timestamp) stays idempotent.
type JSONFile struct {
	dir string
	mu  sync.Mutex
}

var jsonFile JSONFile

// InitJSONFile initializes the file storage in the configured directory.
func InitJSONFile(cfg *config.JSONFile) (*JSONFile, error) {
	if jsonFile.dir == "" {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return nil, err
		}
		jsonFile = JSONFile{dir: cfg.OutputDir}
	}
	return &jsonFile, nil
}

type jsonRecord struct {
	Asset       string `json:"asset"`
	TsMs        int64  `json:"ts_ms"`
	Open        string `json:"open,omitempty"`
	High        string `json:"high,omitempty"`
	Low         string `json:"low,omitempty"`
	Close       string `json:"close,omitempty"`
	Volume      string `json:"volume,omitempty"`
	FundingRate string `json:"funding_rate,omitempty"`
	OpenInt     string `json:"open_interest,omitempty"`
}

type jsonRunEntry struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	TsMs    int64  `json:"ts_ms"`
}

func seriesFile(series Series, asset string) string {
	switch series {
	case SeriesCandles:
		return "ohlcv_" + asset + ".json"
	case SeriesFunding:
		return "funding_" + asset + ".json"
	default:
		return "oi_" + asset + ".json"
	}
}

// loadRecords reads one series file into a timestamp keyed map. A missing
// file is an empty series.
func (j *JSONFile) loadRecords(series Series, asset string) (map[string]jsonRecord, error) {
	path := filepath.Join(j.dir, seriesFile(series, asset))
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]jsonRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	records := map[string]jsonRecord{}
	if err = jsoniter.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (j *JSONFile) saveRecords(series Series, asset string, records map[string]jsonRecord) error {
	raw, err := jsoniter.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(j.dir, seriesFile(series, asset)), raw, 0644)
}

func (j *JSONFile) upsert(series Series, byAsset map[string][]jsonRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for asset, rows := range byAsset {
		records, err := j.loadRecords(series, asset)
		if err != nil {
			return err
		}
		for _, row := range rows {
			records[strconv.FormatInt(row.TsMs, 10)] = row
		}
		if err = j.saveRecords(series, asset, records); err != nil {
			return err
		}
	}
	return nil
}

// UpsertCandles merges candle rows into the per asset files.
func (j *JSONFile) UpsertCandles(_ context.Context, rows []Candle) error {
	byAsset := map[string][]jsonRecord{}
	for _, row := range rows {
		byAsset[row.Asset] = append(byAsset[row.Asset], jsonRecord{
			Asset:  row.Asset,
			TsMs:   row.Timestamp.UnixMilli(),
			Open:   row.Open.String(),
			High:   row.High.String(),
			Low:    row.Low.String(),
			Close:  row.Close.String(),
			Volume: row.Volume.String(),
		})
	}
	return j.upsert(SeriesCandles, byAsset)
}

// UpsertFunding merges funding rows into the per asset files.
func (j *JSONFile) UpsertFunding(_ context.Context, rows []Funding) error {
	byAsset := map[string][]jsonRecord{}
	for _, row := range rows {
		byAsset[row.Asset] = append(byAsset[row.Asset], jsonRecord{
			Asset:       row.Asset,
			TsMs:        row.Timestamp.UnixMilli(),
			FundingRate: row.Rate.String(),
		})
	}
	return j.upsert(SeriesFunding, byAsset)
}

// UpsertOpenInterest merges open interest rows into the per asset files.
func (j *JSONFile) UpsertOpenInterest(_ context.Context, rows []OpenInterest) error {
	byAsset := map[string][]jsonRecord{}
	for _, row := range rows {
		byAsset[row.Asset] = append(byAsset[row.Asset], jsonRecord{
			Asset:   row.Asset,
			TsMs:    row.Timestamp.UnixMilli(),
			OpenInt: row.Value.String(),
		})
	}
	return j.upsert(SeriesOpenInterest, byAsset)
}

// LastTimestamp returns the max stored timestamp for the asset and series.
func (j *JSONFile) LastTimestamp(_ context.Context, series Series, asset string) (time.Time, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	records, err := j.loadRecords(series, asset)
	if err != nil {
		return time.Time{}, false, err
	}
	var (
		maxMs int64
		found bool
	)
	for _, rec := range records {
		if !found || rec.TsMs > maxMs {
			maxMs = rec.TsMs
			found = true
		}
	}
	if !found {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(maxMs).UTC(), true, nil
}

// LastOpenInterest returns the newest stored open interest sample.
func (j *JSONFile) LastOpenInterest(_ context.Context, asset string) (OpenInterest, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	records, err := j.loadRecords(SeriesOpenInterest, asset)
	if err != nil {
		return OpenInterest{}, false, err
	}
	var (
		last  jsonRecord
		found bool
	)
	for _, rec := range records {
		if !found || rec.TsMs > last.TsMs {
			last = rec
			found = true
		}
	}
	if !found {
		return OpenInterest{}, false, nil
	}
	value, err := decimal.NewFromString(last.OpenInt)
	if err != nil {
		return OpenInterest{}, false, err
	}
	return OpenInterest{Asset: asset, Timestamp: time.UnixMilli(last.TsMs).UTC(), Value: value}, true, nil
}

// SeriesTimestamps returns all stored timestamps for the asset and series
// in ascending order.
func (j *JSONFile) SeriesTimestamps(_ context.Context, series Series, asset string) ([]time.Time, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	records, err := j.loadRecords(series, asset)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(records))
	for _, rec := range records {
		out = append(out, time.UnixMilli(rec.TsMs).UTC())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Before(out[b]) })
	return out, nil
}

// LogRun appends one run log entry to the run log file.
func (j *JSONFile) LogRun(_ context.Context, status, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entries, err := j.loadRunLog()
	if err != nil {
		return err
	}
	entries = append(entries, jsonRunEntry{Status: status, Message: message, TsMs: time.Now().UTC().UnixMilli()})
	raw, err := jsoniter.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(j.dir, "run_log.json"), raw, 0644)
}

func (j *JSONFile) loadRunLog() ([]jsonRunEntry, error) {
	raw, err := os.ReadFile(filepath.Join(j.dir, "run_log.json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []jsonRunEntry
	if err = jsoniter.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LastRun returns the most recent run log entry.
func (j *JSONFile) LastRun(_ context.Context) (RunLogEntry, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entries, err := j.loadRunLog()
	if err != nil {
		return RunLogEntry{}, false, err
	}
	if len(entries) == 0 {
		return RunLogEntry{}, false, nil
	}
	last := entries[len(entries)-1]
	return RunLogEntry{Status: last.Status, Message: last.Message, Timestamp: time.UnixMilli(last.TsMs).UTC()}, true, nil
}

func (j *JSONFile) loadSettings() (map[string]string, error) {
	raw, err := os.ReadFile(filepath.Join(j.dir, "settings.json"))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	settings := map[string]string{}
	if err = jsoniter.Unmarshal(raw, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// GetSetting returns the value of an operator setting.
func (j *JSONFile) GetSetting(_ context.Context, key string) (string, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	settings, err := j.loadSettings()
	if err != nil {
		return "", false, err
	}
	value, ok := settings[key]
	return value, ok, nil
}

// SetSetting stores an operator setting, overwriting any previous value.
func (j *JSONFile) SetSetting(_ context.Context, key, value string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	settings, err := j.loadSettings()
	if err != nil {
		return err
	}
	settings[key] = value
	raw, err := jsoniter.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(j.dir, "settings.json"), raw, 0644)
}

// Close is a no-op for file storage.
func (j *JSONFile) Close() error {
	return nil
}
