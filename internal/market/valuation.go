package market

// Valuation model constants. The fair-value band is a fixed spread around
// the latest price; scenarios scale the fair value.
const (
	fairValueMult      = 1.05
	suggestedEntryMult = 0.95
	bullMult           = 1.15
	baseMult           = 1.00
	bearMult           = 0.85
)

// Scenarios holds the bull/base/bear price targets.
type Scenarios struct {
	Bull float64 `json:"bull"`
	Base float64 `json:"base"`
	Bear float64 `json:"bear"`
}

// ValuationSnapshot is derived from the latest quote plus fundamentals.
// Ratio fields are nil when their divisor is zero or unreported.
type ValuationSnapshot struct {
	Symbol         string    `json:"symbol"`
	Price          float64   `json:"price"`
	FairValue      float64   `json:"fairValue"`
	SuggestedEntry float64   `json:"suggestedEntry"`
	Upside         float64   `json:"upside"`
	PE             *float64  `json:"pe"`
	PriceToSales   *float64  `json:"priceToSales"`
	PriceToBook    *float64  `json:"priceToBook"`
	PriceToFCF     *float64  `json:"priceToFcf"`
	Scenarios      Scenarios `json:"scenarios"`
	AsOf           string    `json:"asOf,omitempty"`
}

// ComputeValuation builds a ValuationSnapshot from a price and fundamentals.
// The same formulas serve live, mock and synthetic inputs.
func ComputeValuation(symbol string, price float64, f Fundamentals) ValuationSnapshot {
	v := ValuationSnapshot{
		Symbol:         symbol,
		Price:          price,
		FairValue:      price * fairValueMult,
		SuggestedEntry: price * suggestedEntryMult,
		AsOf:           f.AsOf,
	}
	if price != 0 {
		v.Upside = v.FairValue/price - 1
	}
	v.Scenarios = Scenarios{
		Bull: v.FairValue * bullMult,
		Base: v.FairValue * baseMult,
		Bear: v.FairValue * bearMult,
	}
	v.PE = ratio(price, f.EPS)
	v.PriceToSales = ratio(price, f.RevenuePerShare)
	v.PriceToBook = ratio(price, f.BookValuePerShare)
	v.PriceToFCF = ratio(price, f.FCFPerShare)
	return v
}

// ratio returns num/den, or nil when the divisor is zero or unreported.
func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	r := num / den
	return &r
}
