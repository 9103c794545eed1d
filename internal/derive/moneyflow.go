package derive

import (
	"twmarket/internal/extract"
	"twmarket/pkg/contracts/domain"
)

// MoneyFlow joins each current index row with the same symbol on the
// previous trading day.
func MoneyFlow(current, previous []domain.Ticker) []domain.MoneyFlow {
	prev := make(map[string]domain.Ticker, len(previous))
	for _, t := range previous {
		prev[t.Symbol] = t
	}

	out := make([]domain.MoneyFlow, 0, len(current))
	for _, t := range current {
		mf := domain.MoneyFlow{Ticker: t}
		if p, ok := prev[t.Symbol]; ok {
			mf.TradeValuePrev = p.TradeValue
			mf.TradeWeightPrev = p.TradeWeight
			mf.TradeValueChange = extract.Sub(t.TradeValue, p.TradeValue)
			mf.TradeWeightChange = extract.Sub(t.TradeWeight, p.TradeWeight)
		}
		out = append(out, mf)
	}
	return out
}
