// Package gateway orchestrates a market-data request: resolve the
// credential, canonicalize the kind, attempt live data, then degrade
// through bundled samples to synthetic generation, and always emit a
// well-formed envelope. The only fatal condition is a missing symbol;
// every other failure is absorbed into metadata.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"marketgate/internal/credentials"
	"marketgate/internal/infra"
	"marketgate/internal/market"
	"marketgate/internal/mockdata"
	"marketgate/internal/synth"
	"marketgate/internal/tiingo"
)

// ErrMissingSymbol is the only error Handle returns; it maps to HTTP 400.
var ErrMissingSymbol = errors.New("symbol parameter is required")

// Upstream is the live-provider surface the service depends on.
// *tiingo.Client satisfies it; tests substitute fakes.
type Upstream interface {
	Quote(ctx context.Context, symbol string) (*market.Quote, error)
	IntradaySeries(ctx context.Context, symbol string, intervalMin, lookbackDays, limit int) ([]market.PriceBar, error)
	EODSeries(ctx context.Context, symbol string, lookbackDays, limit int) ([]market.PriceBar, error)
	Actions(ctx context.Context, symbol string, limit int) (*market.CorporateActions, error)
	News(ctx context.Context, symbol string, limit int) ([]market.NewsArticle, error)
	Fundamentals(ctx context.Context, symbol string) (*market.Fundamentals, error)
	Statements(ctx context.Context, symbol string) ([]map[string]any, error)
	Overview(ctx context.Context, symbol string) (*market.Overview, error)
}

// NewsFeed is the RSS fallback surface for the news kind.
type NewsFeed interface {
	SymbolNews(ctx context.Context, symbol string, limit int) ([]market.NewsArticle, error)
}

// Request is one inbound market-data request after HTTP decoding.
type Request struct {
	Symbol   string
	Kind     string
	Limit    int
	Interval string
}

// Service owns the data-sourcing chain for the life of the process.
// Construct once and reuse; the upstream client's cache and rate limiter
// are scoped to it.
type Service struct {
	cred     credentials.Credential
	upstream Upstream
	feed     NewsFeed // optional
	mocks    *mockdata.Loader
	synth    *synth.Generator
	now      func() time.Time
}

// Config assembles a Service.
type Config struct {
	Credential credentials.Credential
	Upstream   Upstream
	Feed       NewsFeed
	Mocks      *mockdata.Loader
	Synth      *synth.Generator
}

// NewService builds a service, filling in default mock and synthetic
// sources when not injected.
func NewService(cfg Config) *Service {
	if cfg.Mocks == nil {
		cfg.Mocks = mockdata.NewLoader()
	}
	if cfg.Synth == nil {
		cfg.Synth = synth.NewGenerator()
	}
	return &Service{
		cred:     cfg.Credential,
		upstream: cfg.Upstream,
		feed:     cfg.Feed,
		mocks:    cfg.Mocks,
		synth:    cfg.Synth,
		now:      time.Now,
	}
}

// SetClock replaces the service's time source. Intended for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// liveEnabled reports whether a live attempt is possible at all.
func (s *Service) liveEnabled() bool {
	return s.cred.Found() && s.upstream != nil
}

// Handle processes one request end to end. The returned error is non-nil
// only for a missing/blank symbol; every other failure mode is reported
// inside the envelope.
func (s *Service) Handle(ctx context.Context, req Request) (*market.Envelope, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, ErrMissingSymbol
	}

	listing := market.MapSymbol(symbol)
	kind := market.CanonicalKind(req.Kind)
	limit := market.ClampLimit(kind, req.Limit)
	interval := market.ParseInterval(req.Interval)

	env := &market.Envelope{
		Symbol: symbol,
		Meta: market.Meta{
			Kind:         kind,
			Timestamp:    s.now().UTC(),
			Currency:     listing.Currency,
			Exchange:     listing.Exchange,
			ChosenKey:    s.cred.Key,
			TokenPreview: s.cred.Preview(),
		},
	}
	if listing.Symbol != symbol {
		env.MappedSymbol = listing.Symbol
	}

	switch kind {
	case market.KindIntradayLatest:
		s.handleQuote(ctx, env, listing)
	case market.KindIntraday:
		s.handleIntraday(ctx, env, listing, limit, interval)
	case market.KindEOD:
		s.handleEOD(ctx, env, listing, limit)
	case market.KindNews:
		s.handleNews(ctx, env, listing, limit)
	case market.KindDocuments:
		s.handleDocuments(env, listing, limit)
	case market.KindActions:
		s.handleActions(ctx, env, listing, limit)
	case market.KindFundamentals:
		s.handleFundamentals(ctx, env, listing)
	case market.KindStatements:
		s.handleStatements(ctx, env, listing)
	case market.KindOverview:
		s.handleOverview(ctx, env, listing)
	case market.KindValuation:
		s.handleValuation(ctx, env, listing)
	default:
		env.Data = market.UnsupportedStub{
			Requested: req.Kind,
			Supported: market.SupportedKinds(),
		}
		env.Meta.Source = market.SourceNone
		env.Meta.Reason = market.ReasonUnsupported
		env.Warning = fmt.Sprintf("unrecognized kind %q; see data.supported for valid kinds", req.Kind)
	}

	return env, nil
}

// classify maps a live-attempt error to the reason reported in metadata.
func classify(err error) market.Reason {
	switch {
	case errors.Is(err, tiingo.ErrEmptyPayload):
		return market.ReasonEmptyPayload
	case infra.IsClientError(err):
		return market.ReasonClientError
	default:
		return market.ReasonUpstreamError
	}
}

// liveReason runs a live attempt and reports why it did not serve:
// ReasonNoCredential without a token, the classified error on failure, or
// ReasonOK on success.
func (s *Service) liveReason(attempt func() error) market.Reason {
	if !s.liveEnabled() {
		return market.ReasonNoCredential
	}
	if err := attempt(); err != nil {
		return classify(err)
	}
	return market.ReasonOK
}

// markLive finalizes metadata for a live response.
func markLive(env *market.Envelope) {
	env.Meta.Source = market.SourceLive
	env.Meta.Reason = market.ReasonOK
}

// markFallback finalizes metadata and warning for a degraded response.
func markFallback(env *market.Envelope, src market.Source, fallback string, reason market.Reason) {
	env.Meta.Source = src
	env.Meta.Fallback = fallback
	env.Meta.Reason = reason
	env.Warning = warningFor(fallback, reason)
}

func warningFor(fallback string, reason market.Reason) string {
	switch fallback {
	case market.FallbackFeed:
		return fmt.Sprintf("live provider data unavailable (%s); returned public feed data", reason)
	case market.FallbackMock:
		return fmt.Sprintf("live data unavailable (%s); returned bundled sample data", reason)
	case market.FallbackSynthetic:
		return fmt.Sprintf("live data unavailable (%s); returned synthetically generated data, not real market data", reason)
	default:
		return fmt.Sprintf("live data unavailable (%s)", reason)
	}
}

// --- intraday_latest ---

func (s *Service) handleQuote(ctx context.Context, env *market.Envelope, l market.Listing) {
	var quote *market.Quote
	reason := s.liveReason(func() error {
		q, err := s.upstream.Quote(ctx, l.Symbol)
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	if reason == market.ReasonOK {
		s.localize(quote, l)
		env.Data = quote
		markLive(env)
		return
	}

	if rec, ok := s.mocks.Load(l.Symbol); ok {
		if q := rec.LatestQuote(); q != nil {
			q.Symbol = l.Symbol
			s.localize(q, l)
			env.Data = q
			markFallback(env, market.SourceMock, market.FallbackMock, reason)
			return
		}
	}

	q := s.synth.Quote(l.Symbol)
	s.localize(q, l)
	env.Data = q
	markFallback(env, market.SourceSynthetic, market.FallbackSynthetic, reason)
}

// localize stamps listing currency/exchange onto a quote when the source
// left them blank.
func (s *Service) localize(q *market.Quote, l market.Listing) {
	if q.Currency == "" {
		q.Currency = l.Currency
	}
	if q.Exchange == "" {
		q.Exchange = l.Exchange
	}
	if q.Timestamp.IsZero() {
		q.Timestamp = s.now().UTC()
	}
}

// --- intraday / eod series ---

func (s *Service) handleIntraday(ctx context.Context, env *market.Envelope, l market.Listing, limit, interval int) {
	lookback := market.IntradayLookbackDays(limit, interval)

	var bars []market.PriceBar
	reason := s.liveReason(func() error {
		b, err := s.upstream.IntradaySeries(ctx, l.Symbol, interval, lookback, limit)
		if err != nil {
			return err
		}
		bars = b
		return nil
	})
	if reason == market.ReasonOK {
		env.Data = bars
		markLive(env)
		return
	}

	if rec, ok := s.mocks.Load(l.Symbol); ok && len(rec.Intraday) > 0 {
		env.Data = tailBars(rec.Intraday, limit)
		markFallback(env, market.SourceMock, market.FallbackMock, reason)
		return
	}

	env.Data = s.synth.IntradaySeries(l.Symbol, limit, interval)
	markFallback(env, market.SourceSynthetic, market.FallbackSynthetic, reason)
}

func (s *Service) handleEOD(ctx context.Context, env *market.Envelope, l market.Listing, limit int) {
	lookback := market.EODLookbackDays(limit)

	var bars []market.PriceBar
	reason := s.liveReason(func() error {
		b, err := s.upstream.EODSeries(ctx, l.Symbol, lookback, limit)
		if err != nil {
			return err
		}
		bars = b
		return nil
	})
	if reason == market.ReasonOK {
		env.Data = bars
		markLive(env)
		return
	}

	if rec, ok := s.mocks.Load(l.Symbol); ok && len(rec.EOD) > 0 {
		env.Data = tailBars(rec.EOD, limit)
		markFallback(env, market.SourceMock, market.FallbackMock, reason)
		return
	}

	env.Data = s.synth.EODSeries(l.Symbol, limit)
	markFallback(env, market.SourceSynthetic, market.FallbackSynthetic, reason)
}

func tailBars(bars []market.PriceBar, limit int) []market.PriceBar {
	if limit > 0 && len(bars) > limit {
		return bars[len(bars)-limit:]
	}
	return bars
}

// --- news ---

func (s *Service) handleNews(ctx context.Context, env *market.Envelope, l market.Listing, limit int) {
	var articles []market.NewsArticle
	reason := s.liveReason(func() error {
		a, err := s.upstream.News(ctx, l.Symbol, limit)
		if err != nil {
			return err
		}
		articles = a
		return nil
	})
	if reason == market.ReasonOK {
		env.Data = articles
		markLive(env)
		return
	}

	// Public RSS feeds sit between the provider and bundled samples.
	if s.feed != nil {
		if a, err := s.feed.SymbolNews(ctx, l.Symbol, limit); err == nil && len(a) > 0 {
			env.Data = a
			markFallback(env, market.SourceFeed, market.FallbackFeed, reason)
			return
		}
	}

	if rec, ok := s.mocks.Load(l.Symbol); ok && len(rec.News) > 0 {
		env.Data = sliceHead(rec.News, limit)
		markFallback(env, market.SourceMock, market.FallbackMock, reason)
		return
	}

	// News is never synthesized; an empty list with a warning is the floor.
	env.Data = []market.NewsArticle{}
	markFallback(env, market.SourceNone, "", reason)
}

// --- documents / filings ---

// handleDocuments serves filings from bundled samples only: the provider
// has no filings endpoint and fabricating regulatory documents is worse
// than returning none.
func (s *Service) handleDocuments(env *market.Envelope, l market.Listing, limit int) {
	reason := market.ReasonLiveUnsupported

	if rec, ok := s.mocks.Load(l.Symbol); ok {
		if docs := rec.AllDocuments(); len(docs) > 0 {
			env.Data = sliceHead(docs, limit)
			markFallback(env, market.SourceMock, market.FallbackMock, reason)
			return
		}
	}

	env.Data = []market.FilingDocument{}
	markFallback(env, market.SourceNone, "", reason)
}

// --- corporate actions ---

func (s *Service) handleActions(ctx context.Context, env *market.Envelope, l market.Listing, limit int) {
	var actions *market.CorporateActions
	reason := s.liveReason(func() error {
		a, err := s.upstream.Actions(ctx, l.Symbol, limit)
		if err != nil {
			return err
		}
		actions = a
		return nil
	})
	if reason == market.ReasonOK {
		env.Data = actions
		markLive(env)
		return
	}

	if rec, ok := s.mocks.Load(l.Symbol); ok && rec.Actions != nil {
		env.Data = rec.Actions
		markFallback(env, market.SourceMock, market.FallbackMock, reason)
		return
	}

	env.Data = &market.CorporateActions{Dividends: []market.Dividend{}, Splits: []market.Split{}}
	markFallback(env, market.SourceNone, "", reason)
}

// --- fundamentals / statements ---

func (s *Service) handleFundamentals(ctx context.Context, env *market.Envelope, l market.Listing) {
	f, src, reason := s.fundamentals(ctx, l)
	env.Data = f
	if src == market.SourceLive {
		markLive(env)
		return
	}
	fallback := market.FallbackMock
	if src == market.SourceSynthetic {
		fallback = market.FallbackSynthetic
	}
	markFallback(env, src, fallback, reason)
}

// fundamentals runs the live->mock->synthetic chain shared by the
// fundamentals, overview and valuation kinds.
func (s *Service) fundamentals(ctx context.Context, l market.Listing) (market.Fundamentals, market.Source, market.Reason) {
	var live *market.Fundamentals
	reason := s.liveReason(func() error {
		f, err := s.upstream.Fundamentals(ctx, l.Symbol)
		if err != nil {
			return err
		}
		live = f
		return nil
	})
	if reason == market.ReasonOK {
		return *live, market.SourceLive, market.ReasonOK
	}

	if rec, ok := s.mocks.Load(l.Symbol); ok && rec.Fundamentals != nil {
		return *rec.Fundamentals, market.SourceMock, reason
	}
	return s.synth.Fundamentals(l.Symbol), market.SourceSynthetic, reason
}

func (s *Service) handleStatements(ctx context.Context, env *market.Envelope, l market.Listing) {
	var docs []map[string]any
	reason := s.liveReason(func() error {
		d, err := s.upstream.Statements(ctx, l.Symbol)
		if err != nil {
			return err
		}
		docs = d
		return nil
	})
	if reason == market.ReasonOK {
		env.Data = docs
		markLive(env)
		return
	}

	if rec, ok := s.mocks.Load(l.Symbol); ok && len(rec.Statements) > 0 {
		env.Data = rec.Statements
		markFallback(env, market.SourceMock, market.FallbackMock, reason)
		return
	}

	env.Data = []map[string]any{}
	markFallback(env, market.SourceNone, "", reason)
}

// --- overview ---

// OverviewBundle is the composite payload of the overview kind.
type OverviewBundle struct {
	Profile      *market.Overview    `json:"profile"`
	Quote        *market.Quote       `json:"quote"`
	Fundamentals market.Fundamentals `json:"fundamentals"`
}

func (s *Service) handleOverview(ctx context.Context, env *market.Envelope, l market.Listing) {
	if s.liveEnabled() {
		// The three live calls are independent; fetch them concurrently.
		var (
			profile *market.Overview
			quote   *market.Quote
			funds   *market.Fundamentals
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			p, err := s.upstream.Overview(gctx, l.Symbol)
			profile = p
			return err
		})
		g.Go(func() error {
			q, err := s.upstream.Quote(gctx, l.Symbol)
			quote = q
			return err
		})
		g.Go(func() error {
			f, err := s.upstream.Fundamentals(gctx, l.Symbol)
			funds = f
			return err
		})
		if err := g.Wait(); err != nil {
			s.degradeOverview(env, l, classify(err))
			return
		}
		s.localize(quote, l)
		if profile.Currency == "" {
			profile.Currency = l.Currency
		}
		env.Data = OverviewBundle{Profile: profile, Quote: quote, Fundamentals: *funds}
		markLive(env)
		return
	}
	s.degradeOverview(env, l, market.ReasonNoCredential)
}

func (s *Service) degradeOverview(env *market.Envelope, l market.Listing, reason market.Reason) {
	if rec, ok := s.mocks.Load(l.Symbol); ok && rec.Overview != nil {
		bundle := OverviewBundle{Profile: rec.Overview, Quote: rec.LatestQuote()}
		if rec.Fundamentals != nil {
			bundle.Fundamentals = *rec.Fundamentals
		}
		if bundle.Quote != nil {
			bundle.Quote.Symbol = l.Symbol
			s.localize(bundle.Quote, l)
		}
		env.Data = bundle
		markFallback(env, market.SourceMock, market.FallbackMock, reason)
		return
	}

	q := s.synth.Quote(l.Symbol)
	s.localize(q, l)
	env.Data = OverviewBundle{
		Profile: &market.Overview{
			Symbol:   l.Symbol,
			Name:     l.Symbol,
			Exchange: l.Exchange,
			Currency: l.Currency,
		},
		Quote:        q,
		Fundamentals: s.synth.Fundamentals(l.Symbol),
	}
	markFallback(env, market.SourceSynthetic, market.FallbackSynthetic, reason)
}

// --- valuation ---

// handleValuation computes a valuation snapshot; it is never fetched from
// the provider. Inputs (quote + fundamentals) follow the normal fallback
// chain and the envelope reports where they came from.
func (s *Service) handleValuation(ctx context.Context, env *market.Envelope, l market.Listing) {
	quote, qSrc, qReason := s.valuationQuote(ctx, l)
	funds, fSrc, _ := s.fundamentals(ctx, l)

	deriveFromRatios(&funds, quote.Last)

	v := market.ComputeValuation(l.Symbol, quote.Last, funds)
	env.Data = v
	env.Meta.Source = market.SourceComputed

	// The weaker of the two input sources determines the fallback label.
	src := weakerSource(qSrc, fSrc)
	switch src {
	case market.SourceLive:
		env.Meta.Reason = market.ReasonOK
	case market.SourceMock:
		env.Meta.Fallback = market.FallbackMock
		env.Meta.Reason = qReason
		env.Warning = "valuation computed from bundled sample inputs"
	default:
		env.Meta.Fallback = market.FallbackSynthetic
		env.Meta.Reason = qReason
		env.Warning = "valuation computed from synthetic inputs, not real market data"
	}
	if env.Meta.Reason == "" {
		env.Meta.Reason = market.ReasonOK
	}
}

func (s *Service) valuationQuote(ctx context.Context, l market.Listing) (*market.Quote, market.Source, market.Reason) {
	var live *market.Quote
	reason := s.liveReason(func() error {
		q, err := s.upstream.Quote(ctx, l.Symbol)
		if err != nil {
			return err
		}
		live = q
		return nil
	})
	if reason == market.ReasonOK {
		return live, market.SourceLive, market.ReasonOK
	}

	if rec, ok := s.mocks.Load(l.Symbol); ok {
		if q := rec.LatestQuote(); q != nil {
			return q, market.SourceMock, reason
		}
	}
	return s.synth.Quote(l.Symbol), market.SourceSynthetic, reason
}

// deriveFromRatios backfills per-share figures from provider ratios when
// the source reports ratios instead of raw per-share values.
func deriveFromRatios(f *market.Fundamentals, price float64) {
	if f.EPS == 0 && f.PERatio != 0 {
		f.EPS = price / f.PERatio
	}
	if f.BookValuePerShare == 0 && f.PBRatio != 0 {
		f.BookValuePerShare = price / f.PBRatio
	}
}

// weakerSource orders live > mock > synthetic and returns the weaker.
func weakerSource(a, b market.Source) market.Source {
	rank := func(s market.Source) int {
		switch s {
		case market.SourceLive:
			return 0
		case market.SourceMock:
			return 1
		default:
			return 2
		}
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

func sliceHead[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
