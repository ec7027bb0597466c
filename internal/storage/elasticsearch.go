package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/seaquake/bitsync/internal/config"
)

// ElasticSearch is for connecting and indexing data to elastic search.
type ElasticSearch struct {
	ES        *elasticsearch.Client
	IndexName string
	Cfg       *config.ES
}

var elasticSearch ElasticSearch

// InitElasticSearch initializes elastic search connection with configured values.
func InitElasticSearch(cfg *config.ES) (*ElasticSearch, error) {
	if elasticSearch.ES == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConns = cfg.MaxIdleConns
		t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		esCfg := elasticsearch.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: t,
		}
		es, err := elasticsearch.NewClient(esCfg)
		if err != nil {
			return nil, err
		}
		ctx, cancel := reqCtx(context.Background(), cfg.ReqTimeoutSec)
		defer cancel()
		_, err = es.Ping(es.Ping.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		elasticSearch = ElasticSearch{
			ES:        es,
			IndexName: cfg.IndexName,
			Cfg:       cfg,
		}
	}
	return &elasticSearch, nil
}

// esDoc holds any series record sent to elastic search. Numeric values are
// kept as strings to preserve decimal precision.
type esDoc struct {
	DocType     string `json:"doc_type"`
	Asset       string `json:"asset,omitempty"`
	TsMs        int64  `json:"ts_ms"`
	Open        string `json:"open,omitempty"`
	High        string `json:"high,omitempty"`
	Low         string `json:"low,omitempty"`
	Close       string `json:"close,omitempty"`
	Volume      string `json:"volume,omitempty"`
	FundingRate string `json:"funding_rate,omitempty"`
	OpenInt     string `json:"open_interest,omitempty"`
	Status      string `json:"status,omitempty"`
	Message     string `json:"message,omitempty"`
	Value       string `json:"value,omitempty"`
}

// docID makes the bulk index idempotent: re-upserting a (series, asset, ts)
// triple overwrites the same document.
func docID(series Series, asset string, ts time.Time) string {
	return fmt.Sprintf("%s:%s:%d", series, asset, ts.UnixMilli())
}

// bulkIndex sends index actions with deterministic ids for the given docs.
func (e *ElasticSearch) bulkIndex(appCtx context.Context, ids []string, docs []esDoc) error {
	var buf bytes.Buffer
	for i, doc := range docs {
		meta := []byte(fmt.Sprintf(`{"index":{"_id":%q}}%s`, ids[i], "\n"))
		esBytes, err := jsoniter.Marshal(doc)
		if err != nil {
			return err
		}
		esBytes = append(esBytes, "\n"...)
		buf.Grow(len(meta) + len(esBytes))
		buf.Write(meta)
		buf.Write(esBytes)
	}
	ctx, cancel := reqCtx(appCtx, e.Cfg.ReqTimeoutSec)
	defer cancel()
	resp, err := e.ES.Bulk(bytes.NewReader(buf.Bytes()), e.ES.Bulk.WithIndex(e.IndexName), e.ES.Bulk.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("code : %v, status : %v", resp.StatusCode, resp.Status())
	}
	_, err = io.Copy(io.Discard, resp.Body)
	return err
}

// UpsertCandles batch indexes candle rows, idempotent on (asset, ts).
func (e *ElasticSearch) UpsertCandles(appCtx context.Context, rows []Candle) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rows))
	docs := make([]esDoc, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, docID(SeriesCandles, row.Asset, row.Timestamp))
		docs = append(docs, esDoc{
			DocType: string(SeriesCandles),
			Asset:   row.Asset,
			TsMs:    row.Timestamp.UnixMilli(),
			Open:    row.Open.String(),
			High:    row.High.String(),
			Low:     row.Low.String(),
			Close:   row.Close.String(),
			Volume:  row.Volume.String(),
		})
	}
	return e.bulkIndex(appCtx, ids, docs)
}

// UpsertFunding batch indexes funding rows, idempotent on (asset, ts).
func (e *ElasticSearch) UpsertFunding(appCtx context.Context, rows []Funding) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rows))
	docs := make([]esDoc, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, docID(SeriesFunding, row.Asset, row.Timestamp))
		docs = append(docs, esDoc{
			DocType:     string(SeriesFunding),
			Asset:       row.Asset,
			TsMs:        row.Timestamp.UnixMilli(),
			FundingRate: row.Rate.String(),
		})
	}
	return e.bulkIndex(appCtx, ids, docs)
}

// UpsertOpenInterest batch indexes open interest rows, idempotent on (asset, ts).
func (e *ElasticSearch) UpsertOpenInterest(appCtx context.Context, rows []OpenInterest) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rows))
	docs := make([]esDoc, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, docID(SeriesOpenInterest, row.Asset, row.Timestamp))
		docs = append(docs, esDoc{
			DocType: string(SeriesOpenInterest),
			Asset:   row.Asset,
			TsMs:    row.Timestamp.UnixMilli(),
			OpenInt: row.Value.String(),
		})
	}
	return e.bulkIndex(appCtx, ids, docs)
}

type esSearchResp struct {
	Hits struct {
		Hits []struct {
			Source esDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// search runs one query against the app index and decodes the hits.
func (e *ElasticSearch) search(appCtx context.Context, query string) (*esSearchResp, error) {
	ctx, cancel := reqCtx(appCtx, e.Cfg.ReqTimeoutSec)
	defer cancel()
	resp, err := e.ES.Search(
		e.ES.Search.WithContext(ctx),
		e.ES.Search.WithIndex(e.IndexName),
		e.ES.Search.WithBody(bytes.NewReader([]byte(query))),
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("code : %v, status : %v", resp.StatusCode, resp.Status())
	}
	var sr esSearchResp
	if err = jsoniter.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

func seriesQuery(series Series, asset string, order string, size int) string {
	return fmt.Sprintf(`{"query":{"bool":{"filter":[{"term":{"doc_type":%q}},{"term":{"asset":%q}}]}},"sort":[{"ts_ms":{"order":%q}}],"size":%d}`, series, asset, order, size)
}

// LastTimestamp returns the max stored timestamp for the asset and series.
func (e *ElasticSearch) LastTimestamp(appCtx context.Context, series Series, asset string) (time.Time, bool, error) {
	sr, err := e.search(appCtx, seriesQuery(series, asset, "desc", 1))
	if err != nil {
		return time.Time{}, false, err
	}
	if len(sr.Hits.Hits) == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(sr.Hits.Hits[0].Source.TsMs).UTC(), true, nil
}

// LastOpenInterest returns the newest stored open interest sample.
func (e *ElasticSearch) LastOpenInterest(appCtx context.Context, asset string) (OpenInterest, bool, error) {
	sr, err := e.search(appCtx, seriesQuery(SeriesOpenInterest, asset, "desc", 1))
	if err != nil {
		return OpenInterest{}, false, err
	}
	if len(sr.Hits.Hits) == 0 {
		return OpenInterest{}, false, nil
	}
	src := sr.Hits.Hits[0].Source
	value, err := decimal.NewFromString(src.OpenInt)
	if err != nil {
		return OpenInterest{}, false, err
	}
	return OpenInterest{Asset: asset, Timestamp: time.UnixMilli(src.TsMs).UTC(), Value: value}, true, nil
}

// SeriesTimestamps returns all stored timestamps for the asset and series
// in ascending order.
func (e *ElasticSearch) SeriesTimestamps(appCtx context.Context, series Series, asset string) ([]time.Time, error) {
	sr, err := e.search(appCtx, seriesQuery(series, asset, "asc", 10000))
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		out = append(out, time.UnixMilli(hit.Source.TsMs).UTC())
	}
	return out, nil
}

// LogRun appends one run log entry.
func (e *ElasticSearch) LogRun(appCtx context.Context, status, message string) error {
	now := time.Now().UTC()
	doc := esDoc{DocType: "run_log", TsMs: now.UnixMilli(), Status: status, Message: message}
	id := fmt.Sprintf("run_log:%d", now.UnixNano())
	return e.bulkIndex(appCtx, []string{id}, []esDoc{doc})
}

// LastRun returns the most recent run log entry.
func (e *ElasticSearch) LastRun(appCtx context.Context) (RunLogEntry, bool, error) {
	query := `{"query":{"term":{"doc_type":"run_log"}},"sort":[{"ts_ms":{"order":"desc"}}],"size":1}`
	sr, err := e.search(appCtx, query)
	if err != nil {
		return RunLogEntry{}, false, err
	}
	if len(sr.Hits.Hits) == 0 {
		return RunLogEntry{}, false, nil
	}
	src := sr.Hits.Hits[0].Source
	return RunLogEntry{Status: src.Status, Message: src.Message, Timestamp: time.UnixMilli(src.TsMs).UTC()}, true, nil
}

// GetSetting returns the value of an operator setting.
func (e *ElasticSearch) GetSetting(appCtx context.Context, key string) (string, bool, error) {
	ctx, cancel := reqCtx(appCtx, e.Cfg.ReqTimeoutSec)
	defer cancel()
	resp, err := e.ES.Get(e.IndexName, "setting:"+key, e.ES.Get.WithContext(ctx))
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("code : %v, status : %v", resp.StatusCode, resp.Status())
	}
	var getResp struct {
		Source esDoc `json:"_source"`
	}
	if err = jsoniter.NewDecoder(resp.Body).Decode(&getResp); err != nil {
		return "", false, err
	}
	return getResp.Source.Value, true, nil
}

// SetSetting stores an operator setting, overwriting any previous value.
func (e *ElasticSearch) SetSetting(appCtx context.Context, key, value string) error {
	doc := esDoc{DocType: "setting", TsMs: time.Now().UTC().UnixMilli(), Value: value}
	return e.bulkIndex(appCtx, []string{"setting:" + key}, []esDoc{doc})
}

// Close is a no-op, the underlying transport pools its own connections.
func (e *ElasticSearch) Close() error {
	return nil
}
