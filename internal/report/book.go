package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Cell number formats
const (
	fmtAmount  = "#,##0.00"
	fmtCount   = "#,##0"
	fmtPercent = "#0.00%"
	fmtRate    = "0.000"
	fmtPrice   = "##0.00"
)

// Font colors follow the local convention: red up, green down.
const (
	colorUp    = "FF0000"
	colorDown  = "008000"
	colorFlat  = "000000"
	colorTitle = "FFE0B2"
	colorWhite = "FFFFFF"
)

const rowHeight = 20

type styleKey struct {
	fill   string
	format string
	font   string
	align  string
	wrap   bool
}

// book wraps an excelize file with a style cache and sheet bookkeeping
type book struct {
	f      *excelize.File
	styles map[styleKey]int
	sheets int
}

func newBook() *book {
	return &book{f: excelize.NewFile(), styles: make(map[styleKey]int)}
}

// addSheet renames the default sheet on first use and appends afterwards
func (b *book) addSheet(name string) error {
	b.sheets++
	if b.sheets == 1 {
		return b.f.SetSheetName(b.f.GetSheetName(0), name)
	}
	_, err := b.f.NewSheet(name)
	return err
}

func (b *book) style(k styleKey) (int, error) {
	if id, ok := b.styles[k]; ok {
		return id, nil
	}
	s := &excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center", Horizontal: k.align, WrapText: k.wrap},
	}
	if k.fill != "" {
		s.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{k.fill}}
	}
	if k.format != "" {
		format := k.format
		s.CustomNumFmt = &format
	}
	if k.font != "" {
		s.Font = &excelize.Font{Color: k.font}
	}
	id, err := b.f.NewStyle(s)
	if err != nil {
		return 0, fmt.Errorf("create style: %w", err)
	}
	b.styles[k] = id
	return id, nil
}

// set writes v at (col, row), both 1-based. A nil value leaves the cell
// empty but still styled.
func (b *book) set(sheet string, col, row int, v any, k styleKey) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if v != nil {
		if err := b.f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	id, err := b.style(k)
	if err != nil {
		return err
	}
	return b.f.SetCellStyle(sheet, cell, cell, id)
}

func (b *book) width(sheet string, col int, w float64) error {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return err
	}
	return b.f.SetColWidth(sheet, name, name, w)
}

func (b *book) merge(sheet string, col, row, span int) error {
	from, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(col+span-1, row)
	if err != nil {
		return err
	}
	return b.f.MergeCell(sheet, from, to)
}

// signColor picks the font color for a signed figure
func signColor(v *float64) string {
	switch {
	case v == nil:
		return ""
	case *v > 0:
		return colorUp
	case *v < 0:
		return colorDown
	}
	return colorFlat
}

// scaled divides v by unit, keeping nil as an empty cell
func scaled(v *float64, unit float64) any {
	if v == nil {
		return nil
	}
	return *v / unit
}

func value(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func negate(v *float64) *float64 {
	if v == nil {
		return nil
	}
	n := -*v
	return &n
}
