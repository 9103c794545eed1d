// Package extract turns positional upstream rows into numbers.
//
// Exchange payloads arrive as arrays of locale-formatted strings ("1,234",
// "(56)", "--"). ParseNumber converts one cell, Extract converts a run of
// cells, and Layout maps named fields onto fixed offsets so each source
// declares its column order as data. The arithmetic helpers round
// differences to twelve significant digits, which keeps derived values
// such as 31.48 - 31.52 free of binary floating point noise.
package extract
