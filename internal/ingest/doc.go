// Package ingest wires the source adapters to the stores as pipeline
// steps. The market statistics pipeline fills one MarketStats row per
// date, one statistic group per step. The ticker pipeline runs the
// exchange and OTC adapters of each step side by side.
package ingest
