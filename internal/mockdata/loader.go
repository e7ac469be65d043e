// Package mockdata loads bundled per-symbol sample datasets. Samples are
// compiled into the binary; a GENERIC document backs any symbol without its
// own file. Loaded records are cached for the life of the process; load
// failures are not cached so a fixed bundle can be retried.
package mockdata

import (
	"embed"
	"encoding/json"
	"io/fs"
	"strings"
	"sync"

	"marketgate/internal/market"
)

//go:embed sampledata/*.json
var sampleFS embed.FS

// GenericKey is the fallback record used when no symbol-specific sample
// exists.
const GenericKey = "GENERIC"

// Record is one bundled sample dataset. Every section is optional.
type Record struct {
	Symbol       string                   `json:"symbol"`
	Quote        *market.Quote            `json:"quote,omitempty"`
	Intraday     []market.PriceBar        `json:"intraday,omitempty"`
	EOD          []market.PriceBar        `json:"eod,omitempty"`
	News         []market.NewsArticle     `json:"news,omitempty"`
	Documents    []market.FilingDocument  `json:"documents,omitempty"`
	Filings      []market.FilingDocument  `json:"filings,omitempty"` // legacy alias for documents
	Actions      *market.CorporateActions `json:"actions,omitempty"`
	Fundamentals *market.Fundamentals     `json:"fundamentals,omitempty"`
	Statements   []map[string]any         `json:"statements,omitempty"`
	Overview     *market.Overview         `json:"overview,omitempty"`
}

// AllDocuments merges the documents and legacy filings sections.
func (r *Record) AllDocuments() []market.FilingDocument {
	if len(r.Documents) == 0 {
		return r.Filings
	}
	if len(r.Filings) == 0 {
		return r.Documents
	}
	out := make([]market.FilingDocument, 0, len(r.Documents)+len(r.Filings))
	out = append(out, r.Documents...)
	out = append(out, r.Filings...)
	return out
}

// LatestQuote derives a quote from the record: the explicit quote field
// first, else the last intraday bar, else the last EOD bar.
func (r *Record) LatestQuote() *market.Quote {
	if r.Quote != nil {
		q := *r.Quote
		q.Derive()
		return &q
	}
	if bar, prev, ok := lastTwo(r.Intraday); ok {
		return quoteFromBars(r.Symbol, bar, prev)
	}
	if bar, prev, ok := lastTwo(r.EOD); ok {
		return quoteFromBars(r.Symbol, bar, prev)
	}
	return nil
}

func lastTwo(bars []market.PriceBar) (last, prev market.PriceBar, ok bool) {
	if len(bars) == 0 {
		return last, prev, false
	}
	last = bars[len(bars)-1]
	if len(bars) > 1 {
		prev = bars[len(bars)-2]
	} else {
		prev = last
	}
	return last, prev, true
}

func quoteFromBars(symbol string, bar, prev market.PriceBar) *market.Quote {
	q := &market.Quote{
		Symbol:    symbol,
		Last:      bar.Close,
		PrevClose: prev.Close,
		Open:      bar.Open,
		High:      bar.High,
		Low:       bar.Low,
		Volume:    bar.Volume,
	}
	if bar.Timestamp != nil {
		q.Timestamp = *bar.Timestamp
	}
	q.Derive()
	return q
}

// Loader resolves sample records by symbol. The cache is process-wide.
type Loader struct {
	mu    sync.Mutex
	fsys  fs.FS
	dir   string
	cache map[string]*Record
}

// NewLoader creates a loader over the embedded sample bundle.
func NewLoader() *Loader {
	return &Loader{fsys: sampleFS, dir: "sampledata", cache: make(map[string]*Record)}
}

// NewLoaderFromFS creates a loader over an arbitrary filesystem whose root
// holds the per-symbol JSON files. Intended for tests.
func NewLoaderFromFS(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys, dir: ".", cache: make(map[string]*Record)}
}

// Load returns the sample record for symbol (upper-cased), falling back to
// the GENERIC record. The second return is false when neither exists.
func (l *Loader) Load(symbol string) (*Record, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		symbol = GenericKey
	}

	if rec, ok := l.cached(symbol); ok {
		return rec, true
	}

	rec, err := l.read(symbol)
	if err != nil {
		if symbol == GenericKey {
			return nil, false
		}
		return l.Load(GenericKey)
	}

	l.mu.Lock()
	l.cache[symbol] = rec
	l.mu.Unlock()
	return rec, true
}

// Has reports whether a symbol-specific sample (not GENERIC) exists.
func (l *Loader) Has(symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if _, ok := l.cached(symbol); ok {
		return true
	}
	_, err := fs.ReadFile(l.fsys, l.path(symbol))
	return err == nil
}

func (l *Loader) path(symbol string) string {
	if l.dir == "." {
		return symbol + ".json"
	}
	return l.dir + "/" + symbol + ".json"
}

func (l *Loader) cached(symbol string) (*Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.cache[symbol]
	return rec, ok
}

func (l *Loader) read(symbol string) (*Record, error) {
	data, err := fs.ReadFile(l.fsys, l.path(symbol))
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Symbol == "" {
		rec.Symbol = symbol
	}
	return &rec, nil
}
