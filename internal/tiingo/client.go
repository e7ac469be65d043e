// Package tiingo implements the upstream Tiingo REST client: URL building
// with token injection, per-kind TTL caching, token-bucket admission, and
// retry with backoff. All methods return typed, normalized market data.
package tiingo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"marketgate/internal/infra"
	"marketgate/internal/market"
)

// DefaultBaseURL is the production Tiingo API root.
const DefaultBaseURL = "https://api.tiingo.com"

// ErrEmptyPayload is returned when the upstream responds successfully but
// with no usable data (empty array, zero price). It drives fallback.
var ErrEmptyPayload = errors.New("upstream payload empty")

// TTLs balance freshness against Tiingo's request quotas: quotes and
// intraday bars go stale in minutes, fundamentals and metadata do not.
const (
	ttlQuote        = 1 * time.Minute
	ttlIntraday     = 5 * time.Minute
	ttlEOD          = 30 * time.Minute
	ttlNews         = 10 * time.Minute
	ttlFundamentals = 6 * time.Hour
	ttlOverview     = 24 * time.Hour
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Retry      infra.RetryConfig
	MaxTokens  int           // rate limit: requests per Window
	Window     time.Duration // rate limit window
}

// Client is the upstream fetch client. Cache and rate limiter are owned by
// the client instance; construct one per process and reuse it.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   infra.RetryConfig
	cache   *infra.Cache
	limiter *infra.RateLimiter
	now     func() time.Time
}

// NewClient creates a client with its own cache and rate limiter.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = infra.DefaultRetry
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 5
	}
	if opts.Window <= 0 {
		opts.Window = time.Second
	}
	return &Client{
		baseURL: opts.BaseURL,
		token:   opts.Token,
		http:    opts.HTTPClient,
		retry:   opts.Retry,
		cache:   infra.NewCache(ttlIntraday),
		limiter: infra.NewRateLimiter(opts.MaxTokens, opts.Window),
		now:     time.Now,
	}
}

// CacheSize reports the number of live cache entries. Intended for tests
// and diagnostics.
func (c *Client) CacheSize() int { return c.cache.Size() }

// buildURL assembles path?params&token=..., omitting empty parameter values
// and sorting keys so the URL is deterministic.
func (c *Client) buildURL(path string, params map[string]string) string {
	q := url.Values{}
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, params[k])
	}
	if c.token != "" {
		q.Set("token", c.token)
	}
	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// fetchJSON runs the cache -> rate limit -> GET-with-retry -> decode chain
// shared by every endpoint. The token never participates in the cache key.
func (c *Client) fetchJSON(ctx context.Context, path string, params map[string]string, ttl time.Duration, dest any) (cached bool, err error) {
	key := infra.CacheKey(path, params)
	if raw, ok := c.cache.Get(key); ok {
		return true, json.Unmarshal(raw.([]byte), dest)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	body, err := infra.DoGetRetry(ctx, c.http, c.retry, c.buildURL(path, params), nil)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return false, fmt.Errorf("parse tiingo response %s: %w", path, err)
	}

	c.cache.SetWithTTL(key, body, ttl)
	return false, nil
}

// Quote fetches the latest IEX quote for a symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*market.Quote, error) {
	var quotes []iexQuote
	if _, err := c.fetchJSON(ctx, "/iex/", map[string]string{"tickers": symbol}, ttlQuote, &quotes); err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, ErrEmptyPayload
	}

	raw := quotes[0]
	last := raw.Last
	if last == 0 {
		last = raw.TngoLast
	}
	if last == 0 {
		// A quote without a price cannot anchor change or valuation math.
		return nil, ErrEmptyPayload
	}

	q := &market.Quote{
		Symbol:    raw.Ticker,
		Last:      last,
		PrevClose: raw.PrevClose,
		Open:      raw.Open,
		High:      raw.High,
		Low:       raw.Low,
		Volume:    raw.Volume,
		Timestamp: parseTime(raw.Timestamp, c.now()),
	}
	q.Derive()
	return q, nil
}

// IntradaySeries fetches intraday bars at the given interval over a
// lookback window, returning at most limit bars from the tail (most
// recent), ascending by time.
func (c *Client) IntradaySeries(ctx context.Context, symbol string, intervalMin, lookbackDays, limit int) ([]market.PriceBar, error) {
	start := c.now().AddDate(0, 0, -lookbackDays).Format("2006-01-02")
	params := map[string]string{
		"startDate":    start,
		"resampleFreq": strconv.Itoa(intervalMin) + "min",
	}

	var raw []iexBar
	if _, err := c.fetchJSON(ctx, "/iex/"+symbol+"/prices", params, ttlIntraday, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	bars := make([]market.PriceBar, 0, len(raw))
	for _, b := range raw {
		ts := parseTime(b.Date, time.Time{})
		bars = append(bars, market.PriceBar{
			Timestamp: &ts,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	return tail(bars, limit), nil
}

// EODSeries fetches daily bars over a lookback window, returning at most
// limit bars from the tail, ascending by date.
func (c *Client) EODSeries(ctx context.Context, symbol string, lookbackDays, limit int) ([]market.PriceBar, error) {
	raw, err := c.eodRaw(ctx, symbol, lookbackDays)
	if err != nil {
		return nil, err
	}

	bars := make([]market.PriceBar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, market.PriceBar{
			Date:     dateOnly(b.Date),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   b.Volume,
			AdjClose: b.AdjClose,
		})
	}
	return tail(bars, limit), nil
}

// Actions derives dividends and splits from the EOD price feed; Tiingo
// exposes corporate actions only as divCash/splitFactor columns there.
func (c *Client) Actions(ctx context.Context, symbol string, limit int) (*market.CorporateActions, error) {
	raw, err := c.eodRaw(ctx, symbol, market.MaxEODBars)
	if err != nil {
		return nil, err
	}

	actions := &market.CorporateActions{
		Dividends: []market.Dividend{},
		Splits:    []market.Split{},
	}
	for _, b := range raw {
		if b.DivCash > 0 {
			actions.Dividends = append(actions.Dividends, market.Dividend{
				ExDate: dateOnly(b.Date),
				Amount: b.DivCash,
			})
		}
		if b.SplitFactor != 0 && b.SplitFactor != 1 {
			actions.Splits = append(actions.Splits, market.Split{
				ExDate: dateOnly(b.Date),
				Factor: b.SplitFactor,
			})
		}
	}
	if limit > 0 && len(actions.Dividends) > limit {
		actions.Dividends = actions.Dividends[len(actions.Dividends)-limit:]
	}
	if limit > 0 && len(actions.Splits) > limit {
		actions.Splits = actions.Splits[len(actions.Splits)-limit:]
	}
	return actions, nil
}

func (c *Client) eodRaw(ctx context.Context, symbol string, lookbackDays int) ([]eodBar, error) {
	start := c.now().AddDate(0, 0, -lookbackDays).Format("2006-01-02")
	params := map[string]string{"startDate": start}

	var raw []eodBar
	if _, err := c.fetchJSON(ctx, "/tiingo/daily/"+symbol+"/prices", params, ttlEOD, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}
	return raw, nil
}

// News fetches recent articles mentioning the symbol.
func (c *Client) News(ctx context.Context, symbol string, limit int) ([]market.NewsArticle, error) {
	params := map[string]string{
		"tickers": symbol,
		"limit":   strconv.Itoa(limit),
	}

	var raw []newsItem
	if _, err := c.fetchJSON(ctx, "/tiingo/news", params, ttlNews, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	articles := make([]market.NewsArticle, 0, len(raw))
	for _, n := range raw {
		articles = append(articles, market.NewsArticle{
			ID:          n.ID,
			Title:       n.Title,
			URL:         n.URL,
			Source:      n.Source,
			Summary:     n.Description,
			Tickers:     n.Tickers,
			PublishedAt: parseTime(n.PublishedDate, time.Time{}),
		})
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

// Fundamentals fetches the latest daily fundamentals row.
func (c *Client) Fundamentals(ctx context.Context, symbol string) (*market.Fundamentals, error) {
	var raw []dailyFundamentals
	if _, err := c.fetchJSON(ctx, "/tiingo/fundamentals/"+symbol+"/daily", nil, ttlFundamentals, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	latest := raw[len(raw)-1]
	return &market.Fundamentals{
		MarketCap: latest.MarketCap,
		PERatio:   latest.PERatio,
		PBRatio:   latest.PBRatio,
		AsOf:      dateOnly(latest.Date),
	}, nil
}

// Statements fetches raw financial statements, passed through unshaped.
func (c *Client) Statements(ctx context.Context, symbol string) ([]map[string]any, error) {
	var raw []statementsDoc
	if _, err := c.fetchJSON(ctx, "/tiingo/fundamentals/"+symbol+"/statements", nil, ttlFundamentals, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	docs := make([]map[string]any, 0, len(raw))
	for _, d := range raw {
		docs = append(docs, map[string]any{
			"date":          dateOnly(d.Date),
			"quarter":       d.Quarter,
			"year":          d.Year,
			"statementData": d.StatementData,
		})
	}
	return docs, nil
}

// Overview fetches listing metadata.
func (c *Client) Overview(ctx context.Context, symbol string) (*market.Overview, error) {
	var raw tickerMeta
	if _, err := c.fetchJSON(ctx, "/tiingo/daily/"+symbol, nil, ttlOverview, &raw); err != nil {
		return nil, err
	}
	if raw.Ticker == "" && raw.Name == "" {
		return nil, ErrEmptyPayload
	}

	return &market.Overview{
		Symbol:      raw.Ticker,
		Name:        raw.Name,
		Exchange:    raw.ExchangeCode,
		Description: raw.Description,
		StartDate:   dateOnly(raw.StartDate),
		EndDate:     dateOnly(raw.EndDate),
	}, nil
}

// --- helpers ---

// parseTime handles the timestamp formats Tiingo mixes across endpoints.
func parseTime(s string, fallback time.Time) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

// dateOnly reduces a timestamp string to its YYYY-MM-DD prefix.
func dateOnly(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

// tail returns the last n elements of bars (the most recent).
func tail(bars []market.PriceBar, n int) []market.PriceBar {
	if n > 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}
