package market

import "time"

// Quote is the normalized latest-quote shape returned for intraday_latest.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Last          float64   `json:"last"`
	PrevClose     float64   `json:"prevClose"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        int64     `json:"volume"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Currency      string    `json:"currency"`
	Exchange      string    `json:"exchange"`
	Timestamp     time.Time `json:"timestamp"`
}

// Derive fills Change and ChangePercent from Last and PrevClose.
// ChangePercent is 0 when PrevClose is 0.
func (q *Quote) Derive() {
	q.Change = q.Last - q.PrevClose
	if q.PrevClose != 0 {
		q.ChangePercent = q.Change / q.PrevClose * 100
	} else {
		q.ChangePercent = 0
	}
}

// PriceBar is a single OHLCV bar. Intraday bars carry Timestamp; daily bars
// carry Date (YYYY-MM-DD) and AdjClose.
type PriceBar struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Date      string     `json:"date,omitempty"`
	Open      float64    `json:"open"`
	High      float64    `json:"high"`
	Low       float64    `json:"low"`
	Close     float64    `json:"close"`
	Volume    int64      `json:"volume"`
	AdjClose  float64    `json:"adjClose,omitempty"`
}

// NewsArticle is a pass-through news item.
type NewsArticle struct {
	ID          int64     `json:"id,omitempty"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary,omitempty"`
	Tickers     []string  `json:"tickers,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// FilingDocument is a pass-through filing/disclosure item.
type FilingDocument struct {
	Type        string `json:"type"` // e.g. "10-K", "annual-report"
	Title       string `json:"title"`
	URL         string `json:"url"`
	FiledAt     string `json:"filedAt"` // YYYY-MM-DD
	Description string `json:"description,omitempty"`
}

// Dividend is a single cash distribution.
type Dividend struct {
	ExDate string  `json:"exDate"` // YYYY-MM-DD
	Amount float64 `json:"amount"`
}

// Split is a single share split event.
type Split struct {
	ExDate string  `json:"exDate"`
	Factor float64 `json:"factor"` // 2 for a 2:1 split
}

// CorporateActions groups dividends and splits for one symbol.
type CorporateActions struct {
	Dividends []Dividend `json:"dividends"`
	Splits    []Split    `json:"splits"`
}

// Fundamentals carries the per-share figures valuation is computed from.
// Zero values mean "not reported".
type Fundamentals struct {
	EPS               float64 `json:"eps,omitempty"`
	RevenuePerShare   float64 `json:"revenuePerShare,omitempty"`
	BookValuePerShare float64 `json:"bookValuePerShare,omitempty"`
	FCFPerShare       float64 `json:"fcfPerShare,omitempty"`
	MarketCap         float64 `json:"marketCap,omitempty"`
	PERatio           float64 `json:"peRatio,omitempty"`
	PBRatio           float64 `json:"pbRatio,omitempty"`
	AsOf              string  `json:"asOf,omitempty"` // YYYY-MM-DD
}

// Overview is descriptive metadata about a listing.
type Overview struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Exchange    string `json:"exchange"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
}

// Source identifies where the data in an envelope came from.
type Source string

const (
	SourceLive      Source = "tiingo"
	SourceFeed      Source = "feed" // RSS fallback news
	SourceMock      Source = "mock"
	SourceSynthetic Source = "synthetic"
	SourceComputed  Source = "computed" // valuation
	SourceNone      Source = "none"
)

// Reason explains why the chosen source was used.
type Reason string

const (
	ReasonOK              Reason = "ok"
	ReasonNoCredential    Reason = "no-credential"
	ReasonUpstreamError   Reason = "upstream-error"
	ReasonClientError     Reason = "client-error"
	ReasonEmptyPayload    Reason = "empty-payload"
	ReasonLiveUnsupported Reason = "live-unsupported"
	ReasonUnsupported     Reason = "unsupported"
)

// Meta is attached to every envelope regardless of outcome.
type Meta struct {
	Source       Source    `json:"source"`
	Reason       Reason    `json:"reason"`
	Fallback     string    `json:"fallback"` // "", "mock" or "synthetic"
	Kind         Kind      `json:"kind"`
	Timestamp    time.Time `json:"timestamp"`
	Currency     string    `json:"currency"`
	Exchange     string    `json:"exchange"`
	ChosenKey    string    `json:"chosenKey"`    // env var the token came from
	TokenPreview string    `json:"tokenPreview"` // redacted token
}

const (
	FallbackFeed      = "feed"
	FallbackMock      = "mock"
	FallbackSynthetic = "synthetic"
)

// Envelope is the uniform response wrapper returned for every request.
type Envelope struct {
	Symbol       string `json:"symbol"`
	MappedSymbol string `json:"mappedSymbol,omitempty"`
	Data         any    `json:"data"`
	Meta         Meta   `json:"meta"`
	Warning      string `json:"warning,omitempty"`
}

// UnsupportedStub is the diagnostic payload returned for unrecognized kinds.
type UnsupportedStub struct {
	Requested string `json:"requested"`
	Supported []Kind `json:"supported"`
}
