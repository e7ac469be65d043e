// Package newsfeed fetches market news from public RSS feeds. It backs the
// news kind when the Tiingo news endpoint fails but the network is up,
// sitting between live provider data and bundled samples in the fallback
// chain. Every failure here is non-fatal.
package newsfeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"marketgate/internal/infra"
	"marketgate/internal/market"
)

// Feed is one RSS source.
type Feed struct {
	Name string
	URL  string
}

// DefaultFeeds lists the market-news RSS feeds polled by default.
var DefaultFeeds = []Feed{
	{Name: "Yahoo Finance", URL: "https://finance.yahoo.com/news/rssindex"},
	{Name: "MarketWatch", URL: "https://feeds.content.dowjones.io/public/rss/mw_topstories"},
	{Name: "CNBC Markets", URL: "https://www.cnbc.com/id/20910258/device/rss/rss.html"},
}

// Source aggregates articles across feeds with its own cache and limiter.
type Source struct {
	feeds   []Feed
	cache   *infra.Cache
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
}

// NewSource creates a source over the default feeds.
func NewSource() *Source {
	return NewSourceWithFeeds(DefaultFeeds)
}

// NewSourceWithFeeds creates a source over custom feeds.
func NewSourceWithFeeds(feeds []Feed) *Source {
	return &Source{
		feeds:   feeds,
		cache:   infra.NewCache(10 * time.Minute),
		limiter: infra.NewRateLimiter(2, time.Second),
		parser:  gofeed.NewParser(),
	}
}

// MarketNews returns recent articles across all feeds, newest first,
// sliced to limit. Individual feed failures are skipped; an error is
// returned only when every feed fails.
func (s *Source) MarketNews(ctx context.Context, limit int) ([]market.NewsArticle, error) {
	cacheKey := infra.CacheKey("newsfeed:market", map[string]string{"limit": fmt.Sprint(limit)})
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]market.NewsArticle), nil
	}

	var articles []market.NewsArticle
	var lastErr error
	for _, f := range s.feeds {
		items, err := s.fetch(ctx, f)
		if err != nil {
			lastErr = err
			continue
		}
		articles = append(articles, items...)
	}
	if len(articles) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("no articles from %d feeds", len(s.feeds))
	}

	sortByPublished(articles)
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}

	s.cache.Set(cacheKey, articles)
	return articles, nil
}

// SymbolNews filters market news down to articles mentioning the symbol's
// bare ticker. An empty result is not an error; the caller decides whether
// to fall further back.
func (s *Source) SymbolNews(ctx context.Context, symbol string, limit int) ([]market.NewsArticle, error) {
	all, err := s.MarketNews(ctx, 0)
	if err != nil {
		return nil, err
	}

	ticker := strings.ToUpper(symbol)
	if i := strings.LastIndex(ticker, "."); i > 0 {
		ticker = ticker[:i]
	}

	var filtered []market.NewsArticle
	for _, a := range all {
		text := strings.ToUpper(a.Title + " " + a.Summary)
		if strings.Contains(text, ticker) {
			filtered = append(filtered, a)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func (s *Source) fetch(ctx context.Context, f Feed) ([]market.NewsArticle, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := s.parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", f.Name, err)
	}

	articles := make([]market.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := market.NewsArticle{
			Title:   item.Title,
			URL:     item.Link,
			Source:  f.Name,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func sortByPublished(articles []market.NewsArticle) {
	for i := 1; i < len(articles); i++ {
		for j := i; j > 0 && articles[j].PublishedAt.After(articles[j-1].PublishedAt); j-- {
			articles[j], articles[j-1] = articles[j-1], articles[j]
		}
	}
}

// cleanHTML strips markup from RSS descriptions.
func cleanHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
