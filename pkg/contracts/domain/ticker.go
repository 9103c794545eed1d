package domain

// TickerType distinguishes index rows from individual equities
type TickerType string

const (
	TickerTypeIndex  TickerType = "INDEX"
	TickerTypeEquity TickerType = "EQUITY"
)

// Exchange identifies the venue publishing a ticker
type Exchange string

const (
	ExchangeTWSE Exchange = "TWSE"
	ExchangeTPEx Exchange = "TPEx"
)

// Market identifies the board a ticker trades on
type Market string

const (
	MarketTSE Market = "TSE"
	MarketOTC Market = "OTC"
)

// Well-known index symbols
const (
	IndexTaiex                 = "IX0001"
	IndexNonFinance            = "IX0007"
	IndexNonElectronics        = "IX0008"
	IndexNonFinanceElectronics = "IX0009"
	IndexTpex                  = "IX0043"
	IndexTpexElectronics       = "IX0047"
)

// Ticker is one (date, symbol) row: a market index, a sector sub-index or an
// equity. Fields are sparse so that each ingestion step only writes what it
// owns.
type Ticker struct {
	Date     string     `json:"date" gorm:"primaryKey;size:10"`
	Symbol   string     `json:"symbol" gorm:"primaryKey;size:16"`
	Type     TickerType `json:"type,omitempty" gorm:"size:8;index"`
	Exchange Exchange   `json:"exchange,omitempty" gorm:"size:8"`
	Market   Market     `json:"market,omitempty" gorm:"size:8;index"`
	Name     string     `json:"name,omitempty" gorm:"size:64"`

	OpenPrice     *float64 `json:"openPrice,omitempty"`
	HighPrice     *float64 `json:"highPrice,omitempty"`
	LowPrice      *float64 `json:"lowPrice,omitempty"`
	ClosePrice    *float64 `json:"closePrice,omitempty"`
	Change        *float64 `json:"change,omitempty"`
	ChangePercent *float64 `json:"changePercent,omitempty"`

	TradeVolume *float64 `json:"tradeVolume,omitempty"`
	TradeValue  *float64 `json:"tradeValue,omitempty"`
	Transaction *float64 `json:"transaction,omitempty"`
	TradeWeight *float64 `json:"tradeWeight,omitempty"`

	QfiiNetBuySell    *float64 `json:"qfiiNetBuySell,omitempty"`
	SiteNetBuySell    *float64 `json:"siteNetBuySell,omitempty"`
	DealersNetBuySell *float64 `json:"dealersNetBuySell,omitempty"`
}

// TableName pins the gorm table name.
func (Ticker) TableName() string { return "tickers" }

// MoneyFlow is an index row joined with the previous trading day's value and
// weight.
type MoneyFlow struct {
	Ticker
	TradeValuePrev    *float64 `json:"tradeValuePrev,omitempty"`
	TradeWeightPrev   *float64 `json:"tradeWeightPrev,omitempty"`
	TradeValueChange  *float64 `json:"tradeValueChange,omitempty"`
	TradeWeightChange *float64 `json:"tradeWeightChange,omitempty"`
}

// Listing is one row of the ISIN listing tables
type Listing struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Market   string `json:"market,omitempty"`
	Industry string `json:"industry,omitempty"`
}
