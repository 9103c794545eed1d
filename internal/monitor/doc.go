// Package monitor matches live quotes against price alerts and order
// triggers.
//
// Monitors are indexed per symbol and direction by threshold. A quote at
// price p fires every "price:gt" monitor with threshold <= p and every
// "price:lt" monitor with threshold >= p. A monitor is removed from the
// index before its action runs, so it fires at most once even when quotes
// arrive faster than notifications are delivered.
//
// Each watched symbol holds one quote subscription. The number of
// concurrent subscriptions is capped; registering a monitor for a new
// symbol beyond the cap fails without leaving any state behind.
package monitor
