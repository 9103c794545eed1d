package derive

import (
	"twmarket/internal/extract"
	"twmarket/pkg/contracts/domain"
)

// MarketStatsWindow derives change fields for rows ordered newest first.
// Each row is compared with its successor, the immediately preceding
// trading day. The oldest row only serves as baseline and is dropped.
func MarketStatsWindow(rows []domain.MarketStats) []domain.MarketStatsRow {
	if len(rows) < 2 {
		return []domain.MarketStatsRow{}
	}
	out := make([]domain.MarketStatsRow, 0, len(rows)-1)
	for i := 0; i < len(rows)-1; i++ {
		out = append(out, Derive(rows[i], rows[i+1]))
	}
	return out
}

// Derive enriches cur with deltas against prev
func Derive(cur, prev domain.MarketStats) domain.MarketStatsRow {
	return domain.MarketStatsRow{
		MarketStats:                          cur,
		TaiexChangePercent:                   extract.PercentChangeOf(cur.TaiexPrice, cur.TaiexChange),
		UsdTwdChange:                         extract.Sub(cur.UsdTwd, prev.UsdTwd),
		QfiiTxNetOiChange:                    extract.Sub(cur.QfiiTxNetOi, prev.QfiiTxNetOi),
		QfiiTxoCallsNetOiValueChange:         extract.Sub(cur.QfiiTxoCallsNetOiValue, prev.QfiiTxoCallsNetOiValue),
		QfiiTxoPutsNetOiValueChange:          extract.Sub(cur.QfiiTxoPutsNetOiValue, prev.QfiiTxoPutsNetOiValue),
		SpecificTop10TxFrontMonthNetOiChange: extract.Sub(cur.SpecificTop10TxFrontMonthNetOi, prev.SpecificTop10TxFrontMonthNetOi),
		SpecificTop10TxBackMonthsNetOiChange: extract.Sub(cur.SpecificTop10TxBackMonthsNetOi, prev.SpecificTop10TxBackMonthsNetOi),
		RetailMtxNetOiChange:                 extract.Sub(cur.RetailMtxNetOi, prev.RetailMtxNetOi),
		Us10y2ySpread:                        extract.Sub(cur.Us10y, cur.Us2y),
		Us10y3mSpread:                        extract.Sub(cur.Us10y, cur.Us3m),
	}
}
