package report

import (
	"strings"

	"twmarket/pkg/contracts/domain"
)

// Units used by the sheets
const (
	unitHundredMillion = 1e8 // 億 of NT$
	unitMargin         = 1e5 // 億 of NT$ from thousands
	unitLot            = 1e3 // 張 from shares
	unitPercent        = 100
)

// Header fills per statistic group
const (
	fillTaiex      = "FFF2CC"
	fillNetBuySell = "E2EFDA"
	fillMargin     = "DDEBF7"
	fillFutures    = "FCE4D6"
	fillOptions    = "EDEDED"
	fillTop10      = "FFE699"
	fillRetail     = "D9E1F2"
	fillPutCall    = "F8CBAD"
	fillUsdTwd     = "C6E0B4"
)

type statsColumn struct {
	header string
	width  float64
	fill   string
	format string
	value  func(r *domain.MarketStatsRow) any
	sign   func(r *domain.MarketStatsRow) *float64
}

var marketInfoColumns = []statsColumn{
	{header: "日期", width: 10, value: func(r *domain.MarketStatsRow) any { return r.Date }},
	{header: "加權指數", width: 15, fill: fillTaiex, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return value(r.TaiexPrice) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.TaiexChange }},
	{header: "漲跌", width: 12.5, fill: fillTaiex, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return value(r.TaiexChange) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.TaiexChange }},
	{header: "漲跌幅", width: 12.5, fill: fillTaiex, format: fmtPercent,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.TaiexChangePercent, unitPercent) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.TaiexChangePercent }},
	{header: "成交量(億)", width: 15, fill: fillTaiex, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.TaiexTradeValue, unitHundredMillion) }},
	{header: "外資\n買賣超(億)", width: 15, fill: fillNetBuySell, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.QfiiNetBuySell, unitHundredMillion) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.QfiiNetBuySell }},
	{header: "投信\n買賣超(億)", width: 15, fill: fillNetBuySell, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.SiteNetBuySell, unitHundredMillion) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.SiteNetBuySell }},
	{header: "自營商\n買賣超(億)", width: 15, fill: fillNetBuySell, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.DealersNetBuySell, unitHundredMillion) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.DealersNetBuySell }},
	{header: "融資\n餘額(億)", width: 15, fill: fillMargin, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.Margin, unitMargin) }},
	{header: "融資\n餘額增減(億)", width: 15, fill: fillMargin, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.MarginChange, unitMargin) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.MarginChange }},
	{header: "融券\n餘額(張)", width: 15, fill: fillMargin, format: fmtCount,
		value: func(r *domain.MarketStatsRow) any { return value(r.Short) }},
	{header: "融券\n餘額增減(張)", width: 15, fill: fillMargin, format: fmtCount,
		value: func(r *domain.MarketStatsRow) any { return value(r.ShortChange) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.ShortChange }},
	{header: "外資台指期\nOI淨口數", width: 17.5, fill: fillFutures, format: fmtCount,
		value: func(r *domain.MarketStatsRow) any { return value(r.QfiiTxNetOi) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.QfiiTxNetOi }},
	{header: "外資台指期\nOI淨口數增減", width: 17.5, fill: fillFutures, format: fmtCount,
		value: func(r *domain.MarketStatsRow) any { return value(r.QfiiTxNetOiChange) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.QfiiTxNetOiChange }},
	{header: "外資台指買權\nOI淨金額(億)", width: 17.5, fill: fillOptions, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.QfiiTxoCallsNetOiValue, unitMargin) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.QfiiTxoCallsNetOiValue }},
	{header: "外資台指買權\nOI淨金額增減(億)", width: 17.5, fill: fillOptions, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.QfiiTxoCallsNetOiValueChange, unitMargin) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.QfiiTxoCallsNetOiValueChange }},
	{header: "外資台指賣權\nOI淨金額(億)", width: 17.5, fill: fillOptions, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.QfiiTxoPutsNetOiValue, unitMargin) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.QfiiTxoPutsNetOiValue }},
	{header: "外資台指賣權\nOI淨金額增減(億)", width: 17.5, fill: fillOptions, format: fmtAmount,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.QfiiTxoPutsNetOiValueChange, unitMargin) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.QfiiTxoPutsNetOiValueChange }},
	{header: "十大特法台指\n近月OI淨口數", width: 20, fill: fillTop10, format: fmtCount,
		value: func(r *domain.MarketStatsRow) any { return value(r.SpecificTop10TxFrontMonthNetOi) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.SpecificTop10TxFrontMonthNetOi }},
	{header: "十大特法台指\n近月OI淨口數增減", width: 20, fill: fillTop10, format: fmtCount,
		value: func(r *domain.MarketStatsRow) any { return value(r.SpecificTop10TxFrontMonthNetOiChange) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.SpecificTop10TxFrontMonthNetOiChange }},
	{header: "十大特法台指\n遠月OI淨口數", width: 20, fill: fillTop10, format: fmtCount,
		value: func(r *domain.MarketStatsRow) any { return value(r.SpecificTop10TxBackMonthsNetOi) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.SpecificTop10TxBackMonthsNetOi }},
	{header: "十大特法台指\n遠月OI淨口數增減", width: 20, fill: fillTop10, format: fmtCount,
		value: func(r *domain.MarketStatsRow) any { return value(r.SpecificTop10TxBackMonthsNetOiChange) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.SpecificTop10TxBackMonthsNetOiChange }},
	{header: "散戶小台\nOI淨口數", width: 15, fill: fillRetail, format: fmtCount,
		value: func(r *domain.MarketStatsRow) any { return value(r.RetailMtxNetOi) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.RetailMtxNetOi }},
	{header: "散戶小台\nOI淨口數增減", width: 15, fill: fillRetail, format: fmtCount,
		value: func(r *domain.MarketStatsRow) any { return value(r.RetailMtxNetOiChange) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.RetailMtxNetOiChange }},
	{header: "散戶多空比", width: 15, fill: fillRetail, format: fmtPercent,
		value: func(r *domain.MarketStatsRow) any { return value(r.RetailMtxLongShortRatio) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return r.RetailMtxLongShortRatio }},
	{header: "台指選擇權\nPut/Call Ratio", width: 15, fill: fillPutCall, format: fmtPercent,
		value: func(r *domain.MarketStatsRow) any { return scaled(r.TxoPutCallRatio, unitPercent) }},
	// A falling USD/TWD is an appreciating TWD, so the sign is flipped.
	{header: "美元/新台幣", width: 12.5, fill: fillUsdTwd, format: fmtRate,
		value: func(r *domain.MarketStatsRow) any { return value(r.UsdTwd) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return negate(r.UsdTwdChange) }},
	{header: "新台幣升貶", width: 12.5, fill: fillUsdTwd, format: fmtRate,
		value: func(r *domain.MarketStatsRow) any { return value(negate(r.UsdTwdChange)) },
		sign:  func(r *domain.MarketStatsRow) *float64 { return negate(r.UsdTwdChange) }},
}

// writeMarketInfo renders the statistics window, newest first
func (b *book) writeMarketInfo(date string, rows []domain.MarketStatsRow) error {
	label := date
	if len(rows) > 0 {
		label = rows[0].Date
	}
	sheet := strings.ReplaceAll(label, "-", "") + " 大盤籌碼"
	if err := b.addSheet(sheet); err != nil {
		return err
	}

	for i, c := range marketInfoColumns {
		col := i + 1
		if err := b.width(sheet, col, c.width); err != nil {
			return err
		}
		if err := b.set(sheet, col, 1, c.header, styleKey{fill: c.fill, align: "center", wrap: true}); err != nil {
			return err
		}
	}
	if err := b.f.SetRowHeight(sheet, 1, 2*rowHeight); err != nil {
		return err
	}

	for i := range rows {
		r := &rows[i]
		row := i + 2
		for j, c := range marketInfoColumns {
			k := styleKey{fill: colorWhite, format: c.format, align: "center"}
			if c.sign != nil {
				k.font = signColor(c.sign(r))
			}
			if err := b.set(sheet, j+1, row, c.value(r), k); err != nil {
				return err
			}
		}
		if err := b.f.SetRowHeight(sheet, row, rowHeight); err != nil {
			return err
		}
	}
	return nil
}

func marketName(m domain.Market) string {
	if m == domain.MarketOTC {
		return "上櫃"
	}
	return "上市"
}

type flowColumn struct {
	header string
	width  float64
	format string
	align  string
	value  func(r *domain.MoneyFlow) any
	sign   func(r *domain.MoneyFlow) *float64
}

var moneyFlowColumns = []flowColumn{
	{header: "指數(類股)", width: 17.5, align: "left",
		value: func(r *domain.MoneyFlow) any { return r.Name }},
	{header: "指數", width: 12.5, format: fmtPrice,
		value: func(r *domain.MoneyFlow) any { return value(r.ClosePrice) },
		sign:  func(r *domain.MoneyFlow) *float64 { return r.Change }},
	{header: "漲跌", width: 12.5, format: fmtPrice,
		value: func(r *domain.MoneyFlow) any { return value(r.Change) },
		sign:  func(r *domain.MoneyFlow) *float64 { return r.Change }},
	{header: "漲跌幅", width: 12.5, format: fmtPercent,
		value: func(r *domain.MoneyFlow) any { return scaled(r.ChangePercent, unitPercent) },
		sign:  func(r *domain.MoneyFlow) *float64 { return r.Change }},
	{header: "成交金額(億)", width: 12.5, format: fmtAmount,
		value: func(r *domain.MoneyFlow) any { return scaled(r.TradeValue, unitHundredMillion) }},
	{header: "昨日金額(億)", width: 12.5, format: fmtAmount,
		value: func(r *domain.MoneyFlow) any { return scaled(r.TradeValuePrev, unitHundredMillion) }},
	{header: "金額差(億)", width: 12.5, format: fmtAmount,
		value: func(r *domain.MoneyFlow) any { return scaled(r.TradeValueChange, unitHundredMillion) },
		sign:  func(r *domain.MoneyFlow) *float64 { return r.TradeValueChange }},
	{header: "成交比重", width: 12.5, format: fmtPercent,
		value: func(r *domain.MoneyFlow) any { return scaled(r.TradeWeight, unitPercent) }},
	{header: "昨日比重", width: 12.5, format: fmtPercent,
		value: func(r *domain.MoneyFlow) any { return scaled(r.TradeWeightPrev, unitPercent) }},
	{header: "比重差", width: 12.5, format: fmtPercent,
		value: func(r *domain.MoneyFlow) any { return scaled(r.TradeWeightChange, unitPercent) },
		sign:  func(r *domain.MoneyFlow) *float64 { return r.TradeWeightChange }},
}

func (b *book) writeMoneyFlow(market domain.Market, rows []domain.MoneyFlow) error {
	sheet := marketName(market) + "資金流向"
	if err := b.addSheet(sheet); err != nil {
		return err
	}
	for i, c := range moneyFlowColumns {
		if err := b.width(sheet, i+1, c.width); err != nil {
			return err
		}
		if err := b.set(sheet, i+1, 1, c.header, styleKey{fill: colorTitle, align: "center"}); err != nil {
			return err
		}
	}
	for i := range rows {
		r := &rows[i]
		for j, c := range moneyFlowColumns {
			align := c.align
			if align == "" {
				align = "right"
			}
			k := styleKey{fill: colorWhite, format: c.format, align: align}
			if c.sign != nil {
				k.font = signColor(c.sign(r))
			}
			if err := b.set(sheet, j+1, i+2, c.value(r), k); err != nil {
				return err
			}
		}
	}
	return nil
}

// rankColumn is one column of a ranking panel
type rankColumn struct {
	header string
	width  float64
	format string
	value  func(t *domain.Ticker) any
	signed bool
}

// panel is a titled block of six columns; panels sit side by side with a
// blank spacer column between them.
type panel struct {
	title   string
	columns []rankColumn
	rows    []domain.Ticker
}

const panelSpacer = 8

func (b *book) writePanels(sheet string, panels []panel) error {
	if err := b.addSheet(sheet); err != nil {
		return err
	}
	start := 1
	for _, p := range panels {
		if err := b.set(sheet, start, 1, p.title, styleKey{fill: colorTitle, align: "center"}); err != nil {
			return err
		}
		if err := b.merge(sheet, start, 1, len(p.columns)); err != nil {
			return err
		}
		for i, c := range p.columns {
			col := start + i
			if err := b.width(sheet, col, c.width); err != nil {
				return err
			}
			if err := b.set(sheet, col, 2, c.header, styleKey{fill: colorWhite, align: "center"}); err != nil {
				return err
			}
		}
		for i := range p.rows {
			t := &p.rows[i]
			for j, c := range p.columns {
				k := styleKey{fill: colorWhite, format: c.format, align: "right"}
				if j < 2 {
					k.align = "left"
				}
				if c.signed {
					k.font = signColor(t.Change)
				}
				if err := b.set(sheet, start+j, i+3, c.value(t), k); err != nil {
					return err
				}
			}
		}
		start += len(p.columns)
		if err := b.width(sheet, start, panelSpacer); err != nil {
			return err
		}
		start++
	}
	return nil
}

var (
	colSymbol = rankColumn{header: "代號", width: 10, value: func(t *domain.Ticker) any { return t.Symbol }}
	colName   = rankColumn{header: "股票", width: 15, value: func(t *domain.Ticker) any { return t.Name }}
	colClose  = rankColumn{header: "股價", width: 8, format: fmtPrice, signed: true,
		value: func(t *domain.Ticker) any { return value(t.ClosePrice) }}
	colChange = rankColumn{header: "漲跌", width: 8, format: fmtPrice, signed: true,
		value: func(t *domain.Ticker) any { return value(t.Change) }}
	colChangePercent = rankColumn{header: "漲跌幅", width: 8, format: fmtPercent, signed: true,
		value: func(t *domain.Ticker) any { return scaled(t.ChangePercent, unitPercent) }}
	colVolume = rankColumn{header: "成交量(張)", width: 12, format: fmtCount,
		value: func(t *domain.Ticker) any { return scaled(t.TradeVolume, unitLot) }}
	colValue = rankColumn{header: "成交值(億)", width: 12, format: fmtAmount,
		value: func(t *domain.Ticker) any { return scaled(t.TradeValue, unitHundredMillion) }}
)

var (
	moverColumns    = []rankColumn{colSymbol, colName, colClose, colChange, colChangePercent, colVolume}
	byValueColumns  = []rankColumn{colSymbol, colName, colClose, colChange, colChangePercent, colValue}
	qfiiRankColumns = instiColumns(func(t *domain.Ticker) *float64 { return t.QfiiNetBuySell })
	siteRankColumns = instiColumns(func(t *domain.Ticker) *float64 { return t.SiteNetBuySell })
)

func instiColumns(net func(t *domain.Ticker) *float64) []rankColumn {
	lots := rankColumn{header: "張數", width: 10, format: fmtCount,
		value: func(t *domain.Ticker) any { return scaled(net(t), unitLot) }}
	return []rankColumn{colSymbol, colName, lots, colClose, colChangePercent, colVolume}
}
