// Package market defines the core data structures of the gateway: the
// canonical request kinds, the quote/bar/news/valuation models, the response
// envelope, and the exchange-suffix symbol mapping.
package market

import "strings"

// Kind is the canonical category of market data a caller can request.
type Kind string

const (
	KindIntradayLatest Kind = "intraday_latest" // latest quote
	KindIntraday       Kind = "intraday"        // intraday OHLCV series
	KindEOD            Kind = "eod"             // end-of-day OHLCV series
	KindNews           Kind = "news"
	KindDocuments      Kind = "documents" // filings and other disclosures
	KindActions        Kind = "actions"   // dividends and splits
	KindFundamentals   Kind = "fundamentals"
	KindStatements     Kind = "statements"
	KindOverview       Kind = "overview"
	KindValuation      Kind = "valuation" // always computed, never fetched
	KindUnsupported    Kind = "unsupported"
)

// DefaultKind is used when the caller does not specify a kind.
const DefaultKind = KindEOD

// kindAliases maps every accepted request string to its canonical kind.
// Anything not in this table resolves to KindUnsupported; unknown inputs
// are routed to a single well-defined variant instead of being guessed at.
var kindAliases = map[string]Kind{
	"intraday_latest": KindIntradayLatest,
	"quote":           KindIntradayLatest,
	"quotes":          KindIntradayLatest,
	"latest":          KindIntradayLatest,
	"last":            KindIntradayLatest,

	"intraday": KindIntraday,
	"series":   KindIntraday,

	"eod":     KindEOD,
	"daily":   KindEOD,
	"history": KindEOD,
	"prices":  KindEOD,

	"news":      KindNews,
	"headlines": KindNews,

	"documents": KindDocuments,
	"filings":   KindDocuments,
	"filing":    KindDocuments,

	"actions":           KindActions,
	"corporate_actions": KindActions,
	"dividends":         KindActions,
	"splits":            KindActions,

	"fundamentals": KindFundamentals,
	"metrics":      KindFundamentals,

	"statements": KindStatements,
	"financials": KindStatements,

	"overview": KindOverview,
	"profile":  KindOverview,
	"meta":     KindOverview,
	"about":    KindOverview,

	"valuation":  KindValuation,
	"fair_value": KindValuation,
	"fairvalue":  KindValuation,
}

// CanonicalKind resolves a raw kind string to its canonical Kind.
// An empty string resolves to DefaultKind; an unmapped string resolves to
// KindUnsupported.
func CanonicalKind(raw string) Kind {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return DefaultKind
	}
	if k, ok := kindAliases[raw]; ok {
		return k
	}
	return KindUnsupported
}

// SupportedKinds lists the canonical kinds a caller may request, in a
// stable order suitable for diagnostics.
func SupportedKinds() []Kind {
	return []Kind{
		KindIntradayLatest, KindIntraday, KindEOD,
		KindNews, KindDocuments, KindActions,
		KindFundamentals, KindStatements, KindOverview, KindValuation,
	}
}

// Per-kind hard maximums for the caller-supplied limit parameter.
const (
	MaxIntradayBars = 300
	MaxEODBars      = 365
	MaxListItems    = 100 // news, documents, actions
)

// Per-kind defaults when the caller omits limit.
const (
	DefaultIntradayBars = 78 // one 390-minute session at 5-minute bars
	DefaultEODBars      = 30
	DefaultListItems    = 20
)

// ClampLimit bounds a caller-supplied limit for the given kind, applying
// the kind's default when limit is zero or negative.
func ClampLimit(k Kind, limit int) int {
	var def, max int
	switch k {
	case KindIntraday:
		def, max = DefaultIntradayBars, MaxIntradayBars
	case KindEOD:
		def, max = DefaultEODBars, MaxEODBars
	case KindNews, KindDocuments, KindActions:
		def, max = DefaultListItems, MaxListItems
	default:
		return 1
	}
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// tradingDayMinutes is the nominal length of a US equity session, used to
// convert a bar budget into a calendar lookback window.
const tradingDayMinutes = 390

// IntradayLookbackDays converts an intraday bar count and interval into a
// calendar-day lookback window, clamped to [1, 10] days.
func IntradayLookbackDays(limit, intervalMin int) int {
	if intervalMin <= 0 {
		intervalMin = 5
	}
	days := (limit*intervalMin + tradingDayMinutes - 1) / tradingDayMinutes
	if days < 1 {
		days = 1
	}
	if days > 10 {
		days = 10
	}
	return days
}

// EODLookbackDays converts an EOD bar count into a calendar-day lookback
// window, padded so weekends and holidays still leave enough sessions.
func EODLookbackDays(limit int) int {
	days := limit + limit/2 + 5
	if days < 7 {
		days = 7
	}
	return days
}

// ParseInterval extracts the leading integer of an interval string such as
// "5min" or "15m". Missing or malformed input yields the 5-minute default.
func ParseInterval(raw string) int {
	raw = strings.TrimSpace(raw)
	n := 0
	seen := false
	for _, r := range raw {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		seen = true
	}
	if !seen || n <= 0 {
		return 5
	}
	return n
}
