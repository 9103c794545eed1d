// Package taifex downloads the futures exchange's Big5 CSV reports:
// institutional futures and options open interest, large trader
// positions, mini TAIEX market open interest, put/call ratio and the
// USD/TWD reference rate.
package taifex

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	apperrors "twmarket/internal/errors"
	"twmarket/internal/extract"
	"twmarket/internal/sources"
)

const sourceName = "taifex"

// Source is the TAIFEX adapter
type Source struct {
	client  *sources.Client
	baseURL string
}

// New builds an adapter rooted at baseURL
func New(client *sources.Client, baseURL string) *Source {
	return &Source{client: client, baseURL: baseURL}
}

// errNoHeader marks a download that is not the expected report. TAIFEX
// answers non-trading days with an HTML page instead of a CSV.
var errNoHeader = fmt.Errorf("report header missing: %w", apperrors.ErrNoData)

// download posts form to path and returns the CSV rows. marker is the
// first header cell that identifies the report.
func (s *Source) download(ctx context.Context, path string, form url.Values, marker string) ([][]string, error) {
	body, err := s.client.PostForm(ctx, sourceName, sources.JoinURL(s.baseURL, path, nil), form)
	if err != nil {
		return nil, err
	}
	text, err := sources.DecodeBig5(body)
	if err != nil {
		return nil, err
	}
	text = strings.TrimPrefix(strings.TrimSpace(text), "\ufeff")
	if !strings.HasPrefix(text, marker) {
		return nil, errNoHeader
	}
	rows, err := sources.ParseCSV(sourceName, text)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("report has no data rows: %w", apperrors.ErrNoData)
	}
	return rows, nil
}

func dayForm(date string, kv ...string) (url.Values, error) {
	t, err := sources.ParseDate(date)
	if err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}
	d := sources.Slashed(t)
	form := url.Values{"queryStartDate": {d}, "queryEndDate": {d}}
	for i := 0; i+1 < len(kv); i += 2 {
		form.Set(kv[i], kv[i+1])
	}
	return form, nil
}

// Every institutional block reports trading and open interest, long and
// short and net, each as contracts and NTD thousands.
var positionFields = []string{
	"longTradeVolume", "longTradeValue",
	"shortTradeVolume", "shortTradeValue",
	"netTradeVolume", "netTradeValue",
	"longOiVolume", "longOiValue",
	"shortOiVolume", "shortOiValue",
	"netOiVolume", "netOiValue",
}

// blockLayout lays out consecutive category blocks of positionFields.
// Field names are "<block>.<field>".
func blockLayout(source string, blocks ...string) extract.Layout {
	names := make([]string, 0, len(blocks)*len(positionFields))
	for _, b := range blocks {
		for _, f := range positionFields {
			names = append(names, b+"."+f)
		}
	}
	return extract.Sequential(source, 0, names...)
}

var futuresBlocks = blockLayout("taifex.futContractsDate", "dealers", "site", "qfii")

// Date, product, identity, then the position block.
const futuresSkip = 3

// futuresPositions downloads the three institutional rows of one futures
// product and extracts them as one flattened record.
func (s *Source) futuresPositions(ctx context.Context, date, commodity string) (extract.Values, error) {
	form, err := dayForm(date, "commodityId", commodity)
	if err != nil {
		return nil, err
	}
	rows, err := s.download(ctx, "/cht/3/futContractsDateDown", form, "日期")
	if err != nil {
		return nil, err
	}
	if len(rows) < 4 {
		return nil, apperrors.NewSchemaError(sourceName, fmt.Sprintf("%s: want 3 institutional rows, got %d", commodity, len(rows)-1))
	}
	v, err := futuresBlocks.Apply(extract.Flatten(futuresSkip, rows[1], rows[2], rows[3]))
	if err != nil {
		return nil, apperrors.NewSchemaError(sourceName, err.Error())
	}
	return v, nil
}

// TxNetOi is the institutional TAIEX futures net open interest
type TxNetOi struct {
	Date    string
	Dealers *float64
	Site    *float64
	Qfii    *float64
}

// InstiTxNetOi fetches institutional TX futures net open interest
func (s *Source) InstiTxNetOi(ctx context.Context, date string) sources.Result[TxNetOi] {
	v, err := s.futuresPositions(ctx, date, "TXF")
	if err != nil {
		return sources.FromError[TxNetOi](err)
	}
	return sources.Ok(TxNetOi{
		Date:    date,
		Dealers: v.Get("dealers.netOiVolume"),
		Site:    v.Get("site.netOiVolume"),
		Qfii:    v.Get("qfii.netOiVolume"),
	})
}

var optionsBlocks = blockLayout("taifex.callsAndPutsDate",
	"calls.dealers", "calls.site", "calls.qfii",
	"puts.dealers", "puts.site", "puts.qfii",
)

// Date, product, right, identity, then the position block.
const optionsSkip = 4

// TxoNetOi is the foreign institutional TAIEX options net open interest
type TxoNetOi struct {
	Date                string
	QfiiCallsNetOi      *float64
	QfiiCallsNetOiValue *float64
	QfiiPutsNetOi       *float64
	QfiiPutsNetOiValue  *float64
}

// InstiTxoNetOi fetches institutional TXO calls and puts open interest
func (s *Source) InstiTxoNetOi(ctx context.Context, date string) sources.Result[TxoNetOi] {
	form, err := dayForm(date, "commodityId", "TXO")
	if err != nil {
		return sources.Failed[TxoNetOi](err)
	}
	rows, err := s.download(ctx, "/cht/3/callsAndPutsDateDown", form, "日期")
	if err != nil {
		return sources.FromError[TxoNetOi](err)
	}
	if len(rows) < 7 {
		return sources.SchemaMismatch[TxoNetOi](fmt.Sprintf("want 6 institutional rows, got %d", len(rows)-1))
	}
	v, err := optionsBlocks.Apply(extract.Flatten(optionsSkip, rows[1:7]...))
	if err != nil {
		return sources.SchemaMismatch[TxoNetOi](err.Error())
	}
	return sources.Ok(TxoNetOi{
		Date:                date,
		QfiiCallsNetOi:      v.Get("calls.qfii.netOiVolume"),
		QfiiCallsNetOiValue: v.Get("calls.qfii.netOiValue"),
		QfiiPutsNetOi:       v.Get("puts.qfii.netOiVolume"),
		QfiiPutsNetOiValue:  v.Get("puts.qfii.netOiValue"),
	})
}

// PutCallRatio fetches the TXO put/call open interest ratio in percent
func (s *Source) PutCallRatio(ctx context.Context, date string) sources.Result[float64] {
	return s.dailyValue(ctx, date, "/cht/3/pcRatioDown", 6)
}

// UsdTwd fetches the USD/TWD reference rate
func (s *Source) UsdTwd(ctx context.Context, date string) sources.Result[float64] {
	return s.dailyValue(ctx, date, "/cht/3/dailyFXRateDown", 1)
}

// dailyValue reads column col of the row dated date from a date-keyed report
func (s *Source) dailyValue(ctx context.Context, date, path string, col int) sources.Result[float64] {
	form, err := dayForm(date)
	if err != nil {
		return sources.Failed[float64](err)
	}
	rows, err := s.download(ctx, path, form, "日期")
	if err != nil {
		return sources.FromError[float64](err)
	}

	t, _ := sources.ParseDate(date)
	row, ok := sources.FindRow(rows[1:], sources.Slashed(t))
	if !ok {
		row, ok = sources.FindRow(rows[1:], sources.Compact(t))
	}
	if !ok {
		return sources.NoData[float64]("date not in report")
	}
	v := extract.ParseNumber(extract.Text(row, col))
	if v == nil {
		return sources.SchemaMismatch[float64](fmt.Sprintf("%s: column %d is not numeric", path, col))
	}
	return sources.Ok(*v)
}
