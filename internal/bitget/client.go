package bitget

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/seaquake/bitsync/internal/config"
	"github.com/seaquake/bitsync/internal/connector"
)

const (
	candleEndpoint  = "/api/v2/mix/market/history-candles"
	fundingEndpoint = "/api/v2/mix/market/history-fund-rate"
	oiEndpoint      = "/api/v2/mix/market/open-interest"
)

// APIError is a business failure signaled inside a successful transport
// response. It is distinct from transport errors so that callers can apply
// skip / stop policy instead of retrying.
type APIError struct {
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitget api error, code : %v, msg : %v", e.Code, e.Msg)
}

// Candle is one hourly candle row returned by the exchange.
type Candle struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// FundingEvent is one settled funding rate returned by the exchange.
type FundingEvent struct {
	Timestamp time.Time
	Rate      decimal.Decimal
}

// Snapshot is the canonical open interest snapshot. The upstream response
// nests the data either in a list or in a flat object, both shapes are
// normalized into this one type at the client boundary.
type Snapshot struct {
	Timestamp time.Time
	Amount    decimal.Decimal
}

// Client issues signed GET requests to the bitget REST API.
type Client struct {
	rest        *connector.REST
	baseURL     string
	productType string
	granularity string
	candleLimit int
	pageSize    int
	apiKey      string
	secretKey   string
	passphrase  string
	limiter     *rate.Limiter
}

// NewClient creates a bitget client. API credentials are read from the
// environment variables named in the exchange config, signing is skipped
// when they are absent as all three endpoints are public.
func NewClient(exchCfg *config.Exchange, syncCfg *config.Sync, rest *connector.REST) *Client {
	return &Client{
		rest:        rest,
		baseURL:     exchCfg.BaseURL,
		productType: exchCfg.ProductType,
		granularity: syncCfg.Granularity,
		candleLimit: syncCfg.CandleRowLimit,
		pageSize:    syncCfg.FundingPageSize,
		apiKey:      os.Getenv(exchCfg.APIKeyEnv),
		secretKey:   os.Getenv(exchCfg.SecretKeyEnv),
		passphrase:  os.Getenv(exchCfg.PassphraseEnv),
		limiter:     rate.NewLimiter(rate.Limit(exchCfg.RequestsPerSec), exchCfg.Burst),
	}
}

// envelope is the common bitget response wrapper.
type envelope struct {
	Code string              `json:"code"`
	Msg  string              `json:"msg"`
	Data jsoniter.RawMessage `json:"data"`
}

// sign computes the request signature over (timestamp, method, path+query).
func (c *Client) sign(timestamp, method, requestPath string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(timestamp + method + requestPath))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// get issues one paced, signed GET request and unwraps the response
// envelope. A non success business code returns *APIError.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (jsoniter.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	// url.Values.Encode sorts by key, the same string is signed and sent.
	requestPath := endpoint + "?" + params.Encode()
	req, err := c.rest.Request(ctx, c.baseURL+requestPath)
	if err != nil {
		return nil, errors.Wrap(err, "bitget request")
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("locale", "en-US")
	req.Header.Set("ACCESS-TIMESTAMP", timestamp)
	if c.apiKey != "" && c.secretKey != "" && c.passphrase != "" {
		req.Header.Set("ACCESS-KEY", c.apiKey)
		req.Header.Set("ACCESS-PASSPHRASE", c.passphrase)
		req.Header.Set("ACCESS-SIGN", c.sign(timestamp, http.MethodGet, requestPath))
	}

	resp, err := c.rest.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "bitget request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "bitget response read")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("bitget http status %v : %v", resp.StatusCode, string(body))
	}

	var env envelope
	if err = jsoniter.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(err, "bitget response decode")
	}
	if env.Code != config.BitgetSuccessCode {
		return nil, &APIError{Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

// HistoryCandles fetches candle rows for [startMs, endMs). Rows are returned
// in upstream order, which is not guaranteed to be sorted. Malformed rows
// are skipped with a warning, they never abort the batch.
func (c *Client) HistoryCandles(ctx context.Context, symbol string, startMs, endMs int64) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("productType", c.productType)
	params.Set("granularity", c.granularity)
	params.Set("startTime", strconv.FormatInt(startMs, 10))
	params.Set("endTime", strconv.FormatInt(endMs, 10))
	params.Set("limit", strconv.Itoa(c.candleLimit))

	data, err := c.get(ctx, candleEndpoint, params)
	if err != nil {
		return nil, err
	}

	// Candle rows come as arrays of strings: [ts, open, high, low, close, baseVol, ...].
	var rows [][]string
	if err = jsoniter.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrap(err, "bitget candle rows decode")
	}

	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseCandle(row)
		if err != nil {
			log.Warn().Str("exchange", "bitget").Str("symbol", symbol).Err(err).Msg("skipping malformed candle row")
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseCandle(row []string) (Candle, error) {
	if len(row) < 6 {
		return Candle{}, errors.Errorf("candle row has %v fields, want at least 6", len(row))
	}
	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return Candle{}, errors.Wrap(err, "candle timestamp")
	}
	fields := make([]decimal.Decimal, 5)
	for i := 0; i < 5; i++ {
		fields[i], err = decimal.NewFromString(row[i+1])
		if err != nil {
			return Candle{}, errors.Wrapf(err, "candle field %v", i+1)
		}
	}
	return Candle{
		Timestamp: time.UnixMilli(ts).UTC(),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

type fundingItem struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"fundingRate"`
	FundingTime string `json:"fundingTime"`
}

// FundingHistory fetches one page of settled funding rates. Page 1 is the
// most recent history, higher pages walk backward in time.
func (c *Client) FundingHistory(ctx context.Context, symbol string, page int) ([]FundingEvent, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("productType", c.productType)
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	params.Set("pageNo", strconv.Itoa(page))

	data, err := c.get(ctx, fundingEndpoint, params)
	if err != nil {
		return nil, err
	}

	var items []fundingItem
	if err = jsoniter.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrap(err, "bitget funding rows decode")
	}

	events := make([]FundingEvent, 0, len(items))
	for _, item := range items {
		ts, err := strconv.ParseInt(item.FundingTime, 10, 64)
		if err != nil {
			log.Warn().Str("exchange", "bitget").Str("symbol", symbol).Err(err).Msg("skipping funding row with bad timestamp")
			continue
		}
		rate, err := decimal.NewFromString(item.FundingRate)
		if err != nil {
			log.Warn().Str("exchange", "bitget").Str("symbol", symbol).Err(err).Msg("skipping funding row with bad rate")
			continue
		}
		events = append(events, FundingEvent{Timestamp: time.UnixMilli(ts).UTC(), Rate: rate})
	}
	return events, nil
}

type oiItem struct {
	Symbol    string `json:"symbol"`
	Amount    string `json:"amount"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
	Time      string `json:"time"`
}

type oiData struct {
	OpenInterestList []oiItem `json:"openInterestList"`
	Ts               string   `json:"ts"`
	oiItem
}

// OpenInterest fetches the current open interest snapshot. The upstream
// sometimes nests the sample in openInterestList and sometimes returns it
// flat, both are normalized here. A missing magnitude falls back to zero
// with a warning, a missing timestamp falls back to the envelope ts and
// then the wall clock.
func (c *Client) OpenInterest(ctx context.Context, symbol string) (Snapshot, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("productType", c.productType)

	data, err := c.get(ctx, oiEndpoint, params)
	if err != nil {
		return Snapshot{}, err
	}

	var od oiData
	if err = jsoniter.Unmarshal(data, &od); err != nil {
		return Snapshot{}, errors.Wrap(err, "bitget open interest decode")
	}

	item := od.oiItem
	if len(od.OpenInterestList) > 0 {
		item = od.OpenInterestList[0]
	}

	raw := item.Amount
	if raw == "" {
		raw = item.Size
	}
	amount := decimal.Zero
	if raw == "" {
		log.Warn().Str("exchange", "bitget").Str("symbol", symbol).Msg("open interest magnitude missing, defaulting to zero")
	} else {
		amount, err = decimal.NewFromString(raw)
		if err != nil {
			log.Warn().Str("exchange", "bitget").Str("symbol", symbol).Err(err).Msg("open interest magnitude unparseable, defaulting to zero")
			amount = decimal.Zero
		}
	}

	rawTs := item.Timestamp
	if rawTs == "" {
		rawTs = item.Time
	}
	if rawTs == "" {
		rawTs = od.Ts
	}
	ts := time.Now().UTC()
	if rawTs != "" {
		ms, err := strconv.ParseInt(rawTs, 10, 64)
		if err != nil {
			log.Warn().Str("exchange", "bitget").Str("symbol", symbol).Err(err).Msg("open interest timestamp unparseable, defaulting to now")
		} else {
			ts = time.UnixMilli(ms).UTC()
		}
	}

	return Snapshot{Timestamp: ts, Amount: amount}, nil
}
