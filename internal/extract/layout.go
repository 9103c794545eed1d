package extract

import (
	"fmt"
)

// Field names one column of a positional row
type Field struct {
	Name  string
	Index int
}

// Layout declares the column order of one upstream table. Width is the
// minimum number of cells a row must carry for the offsets to be valid.
type Layout struct {
	Source string
	Width  int
	Fields []Field
}

// Sequential builds a layout whose fields occupy consecutive columns
// starting at offset.
func Sequential(source string, offset int, names ...string) Layout {
	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i] = Field{Name: name, Index: offset + i}
	}
	return Layout{Source: source, Width: offset + len(names), Fields: fields}
}

// RowWidthError reports a row too short for its layout
type RowWidthError struct {
	Source string
	Want   int
	Got    int
}

func (e *RowWidthError) Error() string {
	return fmt.Sprintf("%s: row has %d cells, layout needs %d", e.Source, e.Got, e.Want)
}

// Values holds the numbers extracted by a layout
type Values map[string]*float64

// Get returns the named value, nil if absent or blank
func (v Values) Get(name string) *float64 {
	return v[name]
}

// Float returns the named value or 0
func (v Values) Float(name string) float64 {
	if p := v[name]; p != nil {
		return *p
	}
	return 0
}

// Apply extracts every field of the layout from row. A row narrower than
// the layout is rejected as a whole instead of being misread.
func (l Layout) Apply(row []string) (Values, error) {
	if len(row) < l.Width {
		return nil, &RowWidthError{Source: l.Source, Want: l.Width, Got: len(row)}
	}
	out := make(Values, len(l.Fields))
	for _, f := range l.Fields {
		out[f.Name] = ParseNumber(row[f.Index])
	}
	return out, nil
}

// ApplyPartial extracts the fields a data row carries. Fields past the end
// of a short row come back nil and the width error is still returned, so
// the caller keeps the row and reports it.
func (l Layout) ApplyPartial(row []string) (Values, error) {
	out := make(Values, len(l.Fields))
	for _, f := range l.Fields {
		out[f.Name] = Extract(row, f.Index, 1)[0]
	}
	if len(row) < l.Width {
		return out, &RowWidthError{Source: l.Source, Want: l.Width, Got: len(row)}
	}
	return out, nil
}

// ApplyNumbers maps already parsed numbers by position, for summary
// tables that are flattened with Numbers first.
func (l Layout) ApplyNumbers(nums []float64) (Values, error) {
	if len(nums) < l.Width {
		return nil, &RowWidthError{Source: l.Source, Want: l.Width, Got: len(nums)}
	}
	out := make(Values, len(l.Fields))
	for _, f := range l.Fields {
		v := nums[f.Index]
		out[f.Name] = &v
	}
	return out, nil
}
