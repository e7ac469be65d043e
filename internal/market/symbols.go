package market

import "strings"

// Listing describes the exchange context of a mapped symbol.
type Listing struct {
	Symbol   string // provider-facing symbol, possibly exchange-suffixed
	Currency string
	Exchange string
}

// asxTickers are bare tickers known to trade on the ASX. A bare request for
// one of these is mapped to its .AX-suffixed form so the upstream resolves
// the Australian listing rather than a US collision.
var asxTickers = map[string]bool{
	"WOW": true, // Woolworths Group
	"WES": true, // Wesfarmers
	"BHP": true,
	"CBA": true,
	"NAB": true,
	"ANZ": true,
	"WBC": true,
	"CSL": true,
	"TLS": true,
	"FMG": true,
	"RIO": true,
	"QAN": true,
}

// suffixListings maps exchange suffixes to their currency and exchange code.
var suffixListings = map[string]Listing{
	".AX": {Currency: "AUD", Exchange: "ASX"},
	".L":  {Currency: "GBP", Exchange: "LSE"},
	".TO": {Currency: "CAD", Exchange: "TSX"},
	".NZ": {Currency: "NZD", Exchange: "NZX"},
}

// MapSymbol normalizes a raw symbol (any case, untrimmed) to its
// provider-facing listing. Already-suffixed symbols pass through unchanged;
// known ASX tickers gain the .AX suffix; everything else defaults to a US
// dollar listing.
func MapSymbol(raw string) Listing {
	sym := strings.ToUpper(strings.TrimSpace(raw))

	if i := strings.LastIndex(sym, "."); i > 0 {
		if l, ok := suffixListings[sym[i:]]; ok {
			l.Symbol = sym
			return l
		}
	}

	if asxTickers[sym] {
		return Listing{Symbol: sym + ".AX", Currency: "AUD", Exchange: "ASX"}
	}

	return Listing{Symbol: sym, Currency: "USD", Exchange: "US"}
}
