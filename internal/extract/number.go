package extract

import (
	"math"
	"strconv"
	"strings"
)

var blankCells = map[string]struct{}{
	"":    {},
	"-":   {},
	"--":  {},
	"---": {},
	"N/A": {},
	"X":   {},
}

// ParseNumber parses a locale formatted cell. Thousands separators and
// surrounding whitespace are ignored, a leading "+" is accepted, and
// "(123)" or a trailing "-" marks a negative value. Blank, dash and
// unparsable cells return nil.
func ParseNumber(raw string) *float64 {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if _, blank := blankCells[s]; blank {
		return nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	} else if len(s) > 1 && strings.HasSuffix(s, "-") {
		negative = true
		s = s[:len(s)-1]
	}
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimSuffix(s, "%")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	if negative {
		v = -v
	}
	return &v
}

// Extract parses count cells of row starting at offset. Cells beyond the
// end of the row come back nil.
func Extract(row []string, offset, count int) []*float64 {
	out := make([]*float64, count)
	for i := 0; i < count; i++ {
		idx := offset + i
		if idx < 0 || idx >= len(row) {
			continue
		}
		out[i] = ParseNumber(row[idx])
	}
	return out
}

// Numbers parses every cell of rows in order and drops the cells that are
// not numeric. It mirrors how summary tables are flattened before
// positional destructuring.
func Numbers(rows ...[]string) []float64 {
	var out []float64
	for _, row := range rows {
		for _, cell := range row {
			if v := ParseNumber(cell); v != nil {
				out = append(out, *v)
			}
		}
	}
	return out
}

// Flatten concatenates several row slices, skipping leading cells of each.
// It is how institutional category blocks reported as parallel rows are
// joined before extraction.
func Flatten(skip int, rows ...[]string) []string {
	var out []string
	for _, row := range rows {
		if len(row) > skip {
			out = append(out, row[skip:]...)
		}
	}
	return out
}

// Text returns the trimmed cell at idx, or "" when out of range
func Text(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
