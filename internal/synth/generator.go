// Package synth generates plausible-looking quote and series data when
// neither live nor bundled sample data is available. Output is clearly
// labeled by callers (warning + fallback metadata) so it can never be
// mistaken for real market data, and it never fails regardless of symbol.
package synth

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"marketgate/internal/market"
)

// basePrices anchors generation per symbol so repeated requests stay in a
// believable range. Keys are canonical, possibly exchange-suffixed symbols.
var basePrices = map[string]float64{
	"AAPL":   193,
	"MSFT":   424,
	"GOOG":   168,
	"GOOGL":  166,
	"AMZN":   183,
	"NVDA":   122,
	"META":   505,
	"TSLA":   248,
	"WOW.AX": 34.5,
	"WES.AX": 66,
	"BHP.AX": 44,
	"CBA.AX": 118,
	"CSL.AX": 292,
}

// DefaultBasePrice backs any symbol not in the table.
const DefaultBasePrice = 50

// priceFloorFrac keeps a random walk from drifting to zero or below.
const priceFloorFrac = 0.2

// Generator synthesizes quotes and OHLCV series. The random source and
// clock are injectable so tests can pin the output.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator with a time-seeded random source.
func NewGenerator() *Generator {
	return NewSeededGenerator(time.Now().UnixNano())
}

// NewSeededGenerator creates a generator with a fixed seed.
func NewSeededGenerator(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// SetClock replaces the generator's time source. Intended for tests.
func (g *Generator) SetClock(now func() time.Time) { g.now = now }

// BasePrice returns the anchor price for a symbol, falling back to the
// default for unknown symbols so generation never fails.
func BasePrice(symbol string) float64 {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if p, ok := basePrices[symbol]; ok {
		return p
	}
	// A bare ticker may be known under its suffixed listing.
	if i := strings.LastIndex(symbol, "."); i > 0 {
		if p, ok := basePrices[symbol[:i]]; ok {
			return p
		}
	}
	return DefaultBasePrice
}

// Quote synthesizes a latest quote around the symbol's base price with
// ±1-2% multiplicative noise. Invariants: high >= max(open, last),
// low <= min(open, last), change fields consistent with prevClose.
func (g *Generator) Quote(symbol string) *market.Quote {
	base := BasePrice(symbol)

	last := base * (1 + g.noise(0.02))
	prevClose := base * (1 + g.noise(0.015))
	open := prevClose * (1 + g.noise(0.01))

	high := math.Max(open, last) * (1 + g.rng.Float64()*0.01)
	low := math.Min(open, last) * (1 - g.rng.Float64()*0.01)

	q := &market.Quote{
		Symbol:    symbol,
		Last:      round2(last),
		PrevClose: round2(prevClose),
		Open:      round2(open),
		High:      round2(high),
		Low:       round2(low),
		Volume:    500_000 + g.rng.Int63n(5_000_000),
		Timestamp: g.now(),
	}
	q.Derive()
	return q
}

// IntradaySeries synthesizes exactly limit bars at intervalMin granularity,
// ending now, ascending by time.
func (g *Generator) IntradaySeries(symbol string, limit, intervalMin int) []market.PriceBar {
	if intervalMin <= 0 {
		intervalMin = 5
	}
	step := time.Duration(intervalMin) * time.Minute
	return g.walk(symbol, limit, step, false)
}

// EODSeries synthesizes exactly limit daily bars ending today, ascending
// by date.
func (g *Generator) EODSeries(symbol string, limit int) []market.PriceBar {
	return g.walk(symbol, limit, 24*time.Hour, true)
}

// Fundamentals synthesizes per-share figures proportional to the base
// price, so valuation math over synthetic data stays self-consistent.
func (g *Generator) Fundamentals(symbol string) market.Fundamentals {
	base := BasePrice(symbol)
	return market.Fundamentals{
		EPS:               round2(base / (18 + g.rng.Float64()*10)),
		RevenuePerShare:   round2(base / (2 + g.rng.Float64()*2)),
		BookValuePerShare: round2(base / (4 + g.rng.Float64()*4)),
		FCFPerShare:       round2(base / (20 + g.rng.Float64()*15)),
		AsOf:              g.now().Format("2006-01-02"),
	}
}

// walk generates the series backward from now with a slow sinusoidal drift
// plus per-step noise, then reverses into ascending order.
func (g *Generator) walk(symbol string, limit int, step time.Duration, daily bool) []market.PriceBar {
	if limit <= 0 {
		return []market.PriceBar{}
	}
	base := BasePrice(symbol)
	floor := base * priceFloorFrac
	price := base * (1 + g.noise(0.02))

	bars := make([]market.PriceBar, limit)
	t := g.now().Truncate(step)

	for i := limit - 1; i >= 0; i-- {
		drift := 1 + 0.01*math.Sin(float64(limit-1-i)/14)
		open := price * (1 + g.noise(0.008))
		clos := price
		high := math.Max(open, clos) * (1 + g.rng.Float64()*0.006)
		low := math.Min(open, clos) * (1 - g.rng.Float64()*0.006)

		bar := market.PriceBar{
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(clos),
			Volume: 200_000 + g.rng.Int63n(2_000_000),
		}
		if daily {
			bar.Date = t.Format("2006-01-02")
			bar.AdjClose = bar.Close
		} else {
			ts := t
			bar.Timestamp = &ts
		}
		bars[i] = bar

		// Step backward in time and perturb the walking price.
		t = t.Add(-step)
		price = price / drift * (1 + g.noise(0.01))
		if price < floor {
			price = floor
		}
	}
	return bars
}

// noise returns a uniform multiplicative perturbation in [-scale, scale].
func (g *Generator) noise(scale float64) float64 {
	return (g.rng.Float64()*2 - 1) * scale
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
