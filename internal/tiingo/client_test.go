package tiingo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marketgate/internal/infra"
)

// newTestClient points a client at a stub server with fast retries and a
// permissive rate limit.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{
		BaseURL:    srv.URL,
		Token:      "test-token",
		HTTPClient: srv.Client(),
		Retry:      infra.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		MaxTokens:  1000,
		Window:     time.Second,
	})
	return c, srv, &calls
}

func TestQuote(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/iex/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("token") != "test-token" {
			t.Error("token missing from request")
		}
		if r.URL.Query().Get("tickers") != "AAPL" {
			t.Errorf("tickers = %q", r.URL.Query().Get("tickers"))
		}
		w.Write([]byte(`[{"ticker":"AAPL","last":193.42,"prevClose":191.85,"open":192.1,"high":194.2,"low":191.6,"volume":48230000,"timestamp":"2025-06-27T20:00:00Z"}]`))
	})

	q, err := c.Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Symbol != "AAPL" || q.Last != 193.42 {
		t.Errorf("quote = %+v", q)
	}
	if q.Change != 193.42-191.85 {
		t.Errorf("Change = %v", q.Change)
	}
	if q.ChangePercent == 0 {
		t.Error("ChangePercent not derived")
	}
}

func TestQuoteFallsBackToTngoLast(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ticker":"AAPL","last":0,"tngoLast":193.0,"prevClose":191.85}]`))
	})

	q, err := c.Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Last != 193.0 {
		t.Errorf("Last = %v, want tngoLast fallback", q.Last)
	}
}

func TestQuoteEmptyPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty array", `[]`},
		{"zero price", `[{"ticker":"AAPL","last":0,"tngoLast":0}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			_, err := c.Quote(context.Background(), "AAPL")
			if !errors.Is(err, ErrEmptyPayload) {
				t.Errorf("err = %v, want ErrEmptyPayload", err)
			}
		})
	}
}

func TestQuoteCached(t *testing.T) {
	c, _, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ticker":"AAPL","last":100,"prevClose":99}]`))
	})

	for i := 0; i < 3; i++ {
		if _, err := c.Quote(context.Background(), "AAPL"); err != nil {
			t.Fatalf("Quote %d: %v", i, err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("upstream called %d times, want 1 (cache)", n)
	}
	if c.CacheSize() != 1 {
		t.Errorf("CacheSize = %d", c.CacheSize())
	}
}

func TestQuoteClientErrorNotRetried(t *testing.T) {
	c, _, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	})

	_, err := c.Quote(context.Background(), "AAPL")
	if !infra.IsClientError(err) {
		t.Fatalf("err = %v, want client error", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("upstream called %d times, want 1", n)
	}
}

func TestQuoteServerErrorRetried(t *testing.T) {
	c, _, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Quote(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("upstream called %d times, want 3 retries", n)
	}
}

func TestQuoteRefetchedAfterTTL(t *testing.T) {
	c, _, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ticker":"AAPL","last":100,"prevClose":99}]`))
	})

	now := time.Now()
	c.cache.SetClock(func() time.Time { return now })

	if _, err := c.Quote(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Quote(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("upstream called %d times within TTL, want 1", n)
	}

	now = now.Add(ttlQuote + time.Second)
	if _, err := c.Quote(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("upstream called %d times after TTL, want a fresh fetch", n)
	}
}

// Two callers racing a cold cache both reach the network; there is no
// single-flight coalescing.
func TestQuoteRacingMissDuplicatesFetch(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	c, _, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		wg.Done()
		wg.Wait() // hold both requests open until both have arrived
		w.Write([]byte(`[{"ticker":"AAPL","last":100,"prevClose":99}]`))
	})

	var done sync.WaitGroup
	for i := 0; i < 2; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			if _, err := c.Quote(context.Background(), "AAPL"); err != nil {
				t.Errorf("Quote: %v", err)
			}
		}()
	}
	done.Wait()

	if n := calls.Load(); n != 2 {
		t.Errorf("upstream called %d times, want 2 (no request coalescing)", n)
	}
}

func TestIntradaySeries(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("resampleFreq") != "5min" {
			t.Errorf("resampleFreq = %q", r.URL.Query().Get("resampleFreq"))
		}
		if r.URL.Query().Get("startDate") == "" {
			t.Error("startDate missing")
		}
		w.Write([]byte(`[
			{"date":"2025-06-27T19:50:00Z","open":50.2,"high":50.4,"low":50.1,"close":50.15,"volume":36500},
			{"date":"2025-06-27T19:55:00Z","open":50.15,"high":50.5,"low":50.1,"close":50.3,"volume":51000},
			{"date":"2025-06-27T20:00:00Z","open":50.3,"high":50.6,"low":50.2,"close":50.25,"volume":64000}
		]`))
	})

	bars, err := c.IntradaySeries(context.Background(), "AAPL", 5, 1, 2)
	if err != nil {
		t.Fatalf("IntradaySeries: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("len = %d, want tail of 2", len(bars))
	}
	// Tail keeps the most recent bars, still ascending.
	if bars[0].Close != 50.3 || bars[1].Close != 50.25 {
		t.Errorf("bars = %+v", bars)
	}
	if bars[0].Timestamp == nil || bars[0].Timestamp.IsZero() {
		t.Error("intraday bars must carry timestamps")
	}
}

func TestEODSeries(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/tiingo/daily/AAPL/prices") {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[
			{"date":"2025-06-26T00:00:00.000Z","open":191.3,"high":192.4,"low":190.8,"close":191.85,"volume":45900000,"adjClose":191.85},
			{"date":"2025-06-27T00:00:00.000Z","open":192.1,"high":194.2,"low":191.6,"close":193.42,"volume":48230000,"adjClose":193.42}
		]`))
	})

	bars, err := c.EODSeries(context.Background(), "AAPL", 10, 0)
	if err != nil {
		t.Fatalf("EODSeries: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("len = %d", len(bars))
	}
	if bars[0].Date != "2025-06-26" {
		t.Errorf("Date = %q, want date-only form", bars[0].Date)
	}
	if bars[1].AdjClose != 193.42 {
		t.Errorf("AdjClose = %v", bars[1].AdjClose)
	}
}

func TestActionsDerivedFromEOD(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"date":"2025-02-10T00:00:00.000Z","close":100,"divCash":0.25,"splitFactor":1},
			{"date":"2025-03-01T00:00:00.000Z","close":101,"divCash":0,"splitFactor":1},
			{"date":"2025-05-12T00:00:00.000Z","close":102,"divCash":0.26,"splitFactor":1},
			{"date":"2025-06-02T00:00:00.000Z","close":50,"divCash":0,"splitFactor":2}
		]`))
	})

	actions, err := c.Actions(context.Background(), "AAPL", 10)
	if err != nil {
		t.Fatalf("Actions: %v", err)
	}
	if len(actions.Dividends) != 2 {
		t.Fatalf("dividends = %+v", actions.Dividends)
	}
	if actions.Dividends[0].ExDate != "2025-02-10" || actions.Dividends[0].Amount != 0.25 {
		t.Errorf("dividend[0] = %+v", actions.Dividends[0])
	}
	if len(actions.Splits) != 1 || actions.Splits[0].Factor != 2 {
		t.Errorf("splits = %+v", actions.Splits)
	}
}

func TestNews(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":1,"title":"headline one","url":"https://x/1","source":"wire","publishedDate":"2025-06-27T13:10:00Z","tickers":["aapl"]},
			{"id":2,"title":"headline two","url":"https://x/2","source":"wire","publishedDate":"2025-06-26T09:00:00Z"}
		]`))
	})

	articles, err := c.News(context.Background(), "AAPL", 1)
	if err != nil {
		t.Fatalf("News: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("len = %d, want limit applied", len(articles))
	}
	if articles[0].Title != "headline one" || articles[0].PublishedAt.IsZero() {
		t.Errorf("article = %+v", articles[0])
	}
}

func TestFundamentals(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"date":"2025-06-26T00:00:00.000Z","marketCap":2900000000000,"peRatio":29.5,"pbRatio":43.1},
			{"date":"2025-06-27T00:00:00.000Z","marketCap":2960000000000,"peRatio":30.1,"pbRatio":44.2}
		]`))
	})

	f, err := c.Fundamentals(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Fundamentals: %v", err)
	}
	if f.PERatio != 30.1 {
		t.Errorf("PERatio = %v, want the latest row", f.PERatio)
	}
	if f.AsOf != "2025-06-27" {
		t.Errorf("AsOf = %q", f.AsOf)
	}
}

func TestOverview(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ticker":"AAPL","name":"Apple Inc.","exchangeCode":"NASDAQ","description":"desc","startDate":"1980-12-12","endDate":"2025-06-27"}`))
	})

	o, err := c.Overview(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if o.Name != "Apple Inc." || o.Exchange != "NASDAQ" {
		t.Errorf("overview = %+v", o)
	}
}

func TestBuildURL(t *testing.T) {
	c := NewClient(Options{BaseURL: "https://api.example.com", Token: "tok"})

	u := c.buildURL("/iex/", map[string]string{"b": "2", "a": "1", "empty": ""})
	want := "https://api.example.com/iex/?a=1&b=2&token=tok"
	if u != want {
		t.Errorf("buildURL = %q, want %q", u, want)
	}

	// Without token or params the URL is bare.
	bare := NewClient(Options{BaseURL: "https://api.example.com"})
	if got := bare.buildURL("/iex/", nil); got != "https://api.example.com/iex/" {
		t.Errorf("buildURL = %q", got)
	}
}

func TestParseTime(t *testing.T) {
	fallback := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		input    string
		wantZero bool
	}{
		{"2025-06-27T20:00:00Z", false},
		{"2025-06-27T20:00:00.000Z", false},
		{"2025-06-27", false},
		{"garbage", true},
		{"", true},
	}
	for _, tt := range tests {
		got := parseTime(tt.input, fallback)
		if tt.wantZero && !got.Equal(fallback) {
			t.Errorf("parseTime(%q) = %v, want fallback", tt.input, got)
		}
		if !tt.wantZero && got.Equal(fallback) {
			t.Errorf("parseTime(%q) fell back unexpectedly", tt.input)
		}
	}
}
