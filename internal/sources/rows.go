package sources

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "twmarket/internal/errors"
)

// Rows is a JSON table whose cells may be strings, numbers or null.
// Every cell is normalised to its string form.
type Rows [][]string

// UnmarshalJSON accepts mixed cell types
func (r *Rows) UnmarshalJSON(b []byte) error {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([][]string, len(raw))
	for i, row := range raw {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = cellString(cell)
		}
		out[i] = cells
	}
	*r = out
	return nil
}

// Cells is a single JSON row with mixed cell types
type Cells []string

// UnmarshalJSON accepts mixed cell types
func (c *Cells) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]string, len(raw))
	for i, cell := range raw {
		out[i] = cellString(cell)
	}
	*c = out
	return nil
}

func cellString(cell json.RawMessage) string {
	trimmed := bytes.TrimSpace(cell)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	if f, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(trimmed)
}

// FindRow returns the first row whose first cell equals key
func FindRow(rows [][]string, key string) ([]string, bool) {
	for _, row := range rows {
		if len(row) > 0 && strings.TrimSpace(row[0]) == key {
			return row, true
		}
	}
	return nil, false
}

// ParseCSV reads a downloaded CSV report. Rows are ragged, cells are
// trimmed and fully blank rows are dropped.
func ParseCSV(source, text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("read %s csv", source), err)
	}

	out := make([][]string, 0, len(records))
	for _, rec := range records {
		blank := true
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
			if rec[i] != "" {
				blank = false
			}
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out, nil
}
