package derive

import (
	"twmarket/internal/extract"
	"twmarket/pkg/contracts/domain"
)

// Aggregate sums the turnover of parts into a synthetic sector row.
// Parts missing from the input leave the corresponding sums nil.
func Aggregate(template domain.Ticker, parts []domain.Ticker, members []string) (domain.Ticker, bool) {
	bySymbol := make(map[string]domain.Ticker, len(parts))
	for _, p := range parts {
		bySymbol[p.Symbol] = p
	}

	var volumes, values, weights []*float64
	for _, sym := range members {
		p, ok := bySymbol[sym]
		if !ok {
			return domain.Ticker{}, false
		}
		volumes = append(volumes, p.TradeVolume)
		values = append(values, p.TradeValue)
		weights = append(weights, p.TradeWeight)
	}

	out := template
	out.TradeVolume = extract.Sum(volumes...)
	out.TradeValue = extract.Sum(values...)
	out.TradeWeight = extract.Sum(weights...)
	return out, true
}
