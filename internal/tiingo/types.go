package tiingo

// Wire shapes for the Tiingo REST API. Fields the gateway does not consume
// are omitted; decoding is tolerant of extras.

// iexQuote is one element of the /iex/?tickers= response.
type iexQuote struct {
	Ticker    string  `json:"ticker"`
	Timestamp string  `json:"timestamp"`
	Last      float64 `json:"last"`
	TngoLast  float64 `json:"tngoLast"`
	PrevClose float64 `json:"prevClose"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Volume    int64   `json:"volume"`
}

// iexBar is one element of the /iex/{ticker}/prices response.
type iexBar struct {
	Date   string  `json:"date"` // RFC3339 timestamp
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// eodBar is one element of the /tiingo/daily/{ticker}/prices response.
type eodBar struct {
	Date        string  `json:"date"` // RFC3339 timestamp at midnight
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      int64   `json:"volume"`
	AdjClose    float64 `json:"adjClose"`
	DivCash     float64 `json:"divCash"`
	SplitFactor float64 `json:"splitFactor"`
}

// newsItem is one element of the /tiingo/news response.
type newsItem struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Source        string   `json:"source"`
	Description   string   `json:"description"`
	PublishedDate string   `json:"publishedDate"`
	Tickers       []string `json:"tickers"`
}

// dailyFundamentals is one element of /tiingo/fundamentals/{ticker}/daily.
type dailyFundamentals struct {
	Date       string  `json:"date"`
	MarketCap  float64 `json:"marketCap"`
	PERatio    float64 `json:"peRatio"`
	PBRatio    float64 `json:"pbRatio"`
	TrailingPE float64 `json:"trailingPEG1Y"`
}

// statementsDoc is one element of /tiingo/fundamentals/{ticker}/statements.
// Statement data is passed through unshaped, so it stays a loose map.
type statementsDoc struct {
	Date          string         `json:"date"`
	Quarter       int            `json:"quarter"`
	Year          int            `json:"year"`
	StatementData map[string]any `json:"statementData"`
}

// tickerMeta is the /tiingo/daily/{ticker} metadata response.
type tickerMeta struct {
	Ticker       string `json:"ticker"`
	Name         string `json:"name"`
	ExchangeCode string `json:"exchangeCode"`
	Description  string `json:"description"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
}
