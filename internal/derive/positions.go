package derive

import (
	"twmarket/internal/extract"
)

// RetailOI is the market-wide open interest left after removing the
// three institutional categories.
func RetailOI(market, dealers, site, qfii *float64) *float64 {
	return extract.Sub(market, extract.Sum(dealers, site, qfii))
}

// Institutional holds one figure per institutional category
type Institutional struct {
	Dealers *float64
	Site    *float64
	Qfii    *float64
}

// RetailPosition is the derived retail long/short open interest
type RetailPosition struct {
	Long  *float64
	Short *float64
	Net   *float64
	// Ratio is Net over the market-wide open interest, four decimals
	Ratio *float64
}

// Retail derives retail positions from the market-wide open interest and
// the institutional long and short open interest.
func Retail(marketOI *float64, long, short Institutional) RetailPosition {
	p := RetailPosition{
		Long:  RetailOI(marketOI, long.Dealers, long.Site, long.Qfii),
		Short: RetailOI(marketOI, short.Dealers, short.Site, short.Qfii),
	}
	p.Net = extract.Sub(p.Long, p.Short)
	if p.Net != nil && marketOI != nil {
		p.Ratio = extract.Ratio(*p.Net, *marketOI, 4)
	}
	return p
}

// TraderPosition is one large trader long/short pair
type TraderPosition struct {
	Long  *float64
	Short *float64
}

// Net is long minus short
func (p TraderPosition) Net() *float64 {
	return extract.Sub(p.Long, p.Short)
}

// BackMonths removes the front month from an all-months position
func BackMonths(all, front TraderPosition) TraderPosition {
	return TraderPosition{
		Long:  extract.Sub(all.Long, front.Long),
		Short: extract.Sub(all.Short, front.Short),
	}
}
