package taifex

import (
	"context"
	"fmt"
	"strings"

	"twmarket/internal/derive"
	apperrors "twmarket/internal/errors"
	"twmarket/internal/extract"
	"twmarket/internal/sources"
)

// Large trader expiry markers. allMonths sums every contract month,
// weeklies are reported separately and never count as the front month.
const (
	allMonths = "999999"
	weeklies  = "666666"
)

// Trader categories of the large trader report
const (
	tradersAll      = "0"
	tradersSpecific = "1"
)

// Date, product, product name, expiry, trader category, then top 5 and
// top 10 long with their share, top 5 and top 10 short with their share,
// and the market open interest.
var largeTraderLayout = extract.Layout{
	Source: "taifex.largeTraderFut",
	Width:  14,
	Fields: []extract.Field{
		{Name: "top5Long", Index: 5},
		{Name: "top10Long", Index: 7},
		{Name: "top5Short", Index: 9},
		{Name: "top10Short", Index: 11},
		{Name: "marketOi", Index: 13},
	},
}

// LargeTraderGroup splits one ranking into front and back months
type LargeTraderGroup struct {
	Front derive.TraderPosition
	Back  derive.TraderPosition
}

// LargeTraders holds TX positions of the top 5 and top 10 traders, for
// all traders and for specific institutional traders.
type LargeTraders struct {
	Date          string
	FrontMonth    string
	Top5All       LargeTraderGroup
	Top10All      LargeTraderGroup
	Top5Specific  LargeTraderGroup
	Top10Specific LargeTraderGroup
}

// LargeTraders fetches the TX large trader position structure. Back
// months are the all-months figures minus the front month.
func (s *Source) LargeTraders(ctx context.Context, date string) sources.Result[LargeTraders] {
	form, err := dayForm(date)
	if err != nil {
		return sources.Failed[LargeTraders](err)
	}
	rows, err := s.download(ctx, "/cht/3/largeTraderFutDown", form, "日期")
	if err != nil {
		return sources.FromError[LargeTraders](err)
	}

	type key struct{ expiry, category string }
	table := map[key]extract.Values{}
	front := ""
	for _, row := range rows[1:] {
		if extract.Text(row, 1) != "TX" {
			continue
		}
		v := s.client.Row(ctx, largeTraderLayout, row)
		expiry := extract.Text(row, 3)
		table[key{expiry, extract.Text(row, 4)}] = v
		if isContractMonth(expiry) && (front == "" || expiry < front) {
			front = expiry
		}
	}
	if front == "" {
		return sources.NoData[LargeTraders]("no TX rows")
	}

	group := func(category, long, short string) (LargeTraderGroup, error) {
		f, ok := table[key{front, category}]
		if !ok {
			return LargeTraderGroup{}, apperrors.NewSchemaError(sourceName, fmt.Sprintf("front month %s category %s missing", front, category))
		}
		a, ok := table[key{allMonths, category}]
		if !ok {
			return LargeTraderGroup{}, apperrors.NewSchemaError(sourceName, fmt.Sprintf("all months category %s missing", category))
		}
		fp := derive.TraderPosition{Long: f.Get(long), Short: f.Get(short)}
		ap := derive.TraderPosition{Long: a.Get(long), Short: a.Get(short)}
		return LargeTraderGroup{Front: fp, Back: derive.BackMonths(ap, fp)}, nil
	}

	out := LargeTraders{Date: date, FrontMonth: front}
	for _, g := range []struct {
		dst         *LargeTraderGroup
		category    string
		long, short string
	}{
		{&out.Top5All, tradersAll, "top5Long", "top5Short"},
		{&out.Top10All, tradersAll, "top10Long", "top10Short"},
		{&out.Top5Specific, tradersSpecific, "top5Long", "top5Short"},
		{&out.Top10Specific, tradersSpecific, "top10Long", "top10Short"},
	} {
		grp, err := group(g.category, g.long, g.short)
		if err != nil {
			return sources.FromError[LargeTraders](err)
		}
		*g.dst = grp
	}
	return sources.Ok(out)
}

func isContractMonth(expiry string) bool {
	if len(expiry) != 6 || expiry == allMonths || expiry == weeklies {
		return false
	}
	for _, r := range expiry {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Trade date, contract, expiry, open, high, low, close, change, change
// percent, volume, settlement, open interest, ..., session at 17.
const (
	dailyContract     = 1
	dailyExpiry       = 2
	dailyOpenInterest = 11
	dailySession      = 17
)

var dailyLayout = extract.Layout{
	Source: "taifex.futDataDown",
	Width:  dailySession + 1,
	Fields: []extract.Field{{Name: "openInterest", Index: dailyOpenInterest}},
}

// RetailMtx is the derived retail position in mini TAIEX futures
type RetailMtx struct {
	Date     string
	MarketOi *float64
	derive.RetailPosition
}

// RetailMtx derives retail mini TAIEX positions: market open interest
// from the daily futures report minus the institutional open interest.
func (s *Source) RetailMtx(ctx context.Context, date string) sources.Result[RetailMtx] {
	form, err := dayForm(date, "down_type", "1", "commodity_id", "MTX")
	if err != nil {
		return sources.Failed[RetailMtx](err)
	}
	rows, err := s.download(ctx, "/cht/3/futDataDown", form, "交易日期")
	if err != nil {
		return sources.FromError[RetailMtx](err)
	}

	var oi []*float64
	for _, row := range rows[1:] {
		if extract.Text(row, dailyContract) != "MTX" || strings.Contains(extract.Text(row, dailyExpiry), "/") {
			continue
		}
		v := s.client.Row(ctx, dailyLayout, row)
		if len(row) <= dailySession {
			// session unknown, so the market total is unknown too
			oi = append(oi, nil)
			continue
		}
		if extract.Text(row, dailySession) != "一般" {
			continue
		}
		oi = append(oi, v.Get("openInterest"))
	}
	if len(oi) == 0 {
		return sources.NoData[RetailMtx]("no regular session MTX rows")
	}
	market := extract.Sum(oi...)

	v, err := s.futuresPositions(ctx, date, "MXF")
	if err != nil {
		return sources.FromError[RetailMtx](err)
	}
	position := derive.Retail(market,
		derive.Institutional{Dealers: v.Get("dealers.longOiVolume"), Site: v.Get("site.longOiVolume"), Qfii: v.Get("qfii.longOiVolume")},
		derive.Institutional{Dealers: v.Get("dealers.shortOiVolume"), Site: v.Get("site.shortOiVolume"), Qfii: v.Get("qfii.shortOiVolume")},
	)
	return sources.Ok(RetailMtx{Date: date, MarketOi: market, RetailPosition: position})
}
