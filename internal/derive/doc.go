// Package derive computes figures that no single upstream reports:
// day-over-day deltas against the previous trading-day row, yield
// spreads, retail open interest, large trader back-month positions,
// sector aggregates and money flow.
package derive
