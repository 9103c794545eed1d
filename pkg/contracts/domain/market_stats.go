package domain

// MarketStats is the per-trading-date statistics row. Every statistic is a
// pointer: nil means the source for that group has not been fetched yet, not
// a known zero.
type MarketStats struct {
	Date string `json:"date" gorm:"primaryKey;size:10"`

	TaiexPrice      *float64 `json:"taiexPrice,omitempty"`
	TaiexChange     *float64 `json:"taiexChange,omitempty"`
	TaiexTradeValue *float64 `json:"taiexTradeValue,omitempty"`

	QfiiNetBuySell    *float64 `json:"qfiiNetBuySell,omitempty"`
	SiteNetBuySell    *float64 `json:"siteNetBuySell,omitempty"`
	DealersNetBuySell *float64 `json:"dealersNetBuySell,omitempty"`

	Margin       *float64 `json:"margin,omitempty"`
	MarginChange *float64 `json:"marginChange,omitempty"`
	Short        *float64 `json:"short,omitempty"`
	ShortChange  *float64 `json:"shortChange,omitempty"`

	QfiiTxNetOi            *float64 `json:"qfiiTxNetOi,omitempty"`
	QfiiTxoCallsNetOi      *float64 `json:"qfiiTxoCallsNetOi,omitempty"`
	QfiiTxoCallsNetOiValue *float64 `json:"qfiiTxoCallsNetOiValue,omitempty"`
	QfiiTxoPutsNetOi       *float64 `json:"qfiiTxoPutsNetOi,omitempty"`
	QfiiTxoPutsNetOiValue  *float64 `json:"qfiiTxoPutsNetOiValue,omitempty"`

	SpecificTop10TxFrontMonthNetOi *float64 `json:"specificTop10TxFrontMonthNetOi,omitempty"`
	SpecificTop10TxBackMonthsNetOi *float64 `json:"specificTop10TxBackMonthsNetOi,omitempty"`

	RetailMtxNetOi          *float64 `json:"retailMtxNetOi,omitempty"`
	RetailMtxLongShortRatio *float64 `json:"retailMtxLongShortRatio,omitempty"`

	TxoPutCallRatio *float64 `json:"txoPutCallRatio,omitempty"`

	UsdTwd *float64 `json:"usdtwd,omitempty" gorm:"column:usdtwd"`
	Us3m   *float64 `json:"us3m,omitempty" gorm:"column:us3m"`
	Us2y   *float64 `json:"us2y,omitempty" gorm:"column:us2y"`
	Us10y  *float64 `json:"us10y,omitempty" gorm:"column:us10y"`
}

// TableName pins the gorm table name.
func (MarketStats) TableName() string { return "market_stats" }

// MarketStatsRow is a persisted row enriched with the figures derived from
// its predecessor trading day.
type MarketStatsRow struct {
	MarketStats

	TaiexChangePercent                   *float64 `json:"taiexChangePercent,omitempty"`
	UsdTwdChange                         *float64 `json:"usdtwdChange,omitempty"`
	QfiiTxNetOiChange                    *float64 `json:"qfiiTxNetOiChange,omitempty"`
	QfiiTxoCallsNetOiValueChange         *float64 `json:"qfiiTxoCallsNetOiValueChange,omitempty"`
	QfiiTxoPutsNetOiValueChange          *float64 `json:"qfiiTxoPutsNetOiValueChange,omitempty"`
	SpecificTop10TxFrontMonthNetOiChange *float64 `json:"specificTop10TxFrontMonthNetOiChange,omitempty"`
	SpecificTop10TxBackMonthsNetOiChange *float64 `json:"specificTop10TxBackMonthsNetOiChange,omitempty"`
	RetailMtxNetOiChange                 *float64 `json:"retailMtxNetOiChange,omitempty"`
	Us10y2ySpread                        *float64 `json:"us10y2ySpread,omitempty"`
	Us10y3mSpread                        *float64 `json:"us10y3mSpread,omitempty"`
}

// Float returns a pointer to v. Adapters use it to mark a field as present.
func Float(v float64) *float64 {
	return &v
}
