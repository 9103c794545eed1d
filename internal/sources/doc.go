// Package sources holds the shared plumbing of the upstream adapters: a
// paced, circuit-broken HTTP client, the three-way fetch Result, date
// conventions of the Taiwanese exchanges and the warrant code rules.
//
// Each exchange lives in its own sub-package (twse, tpex, taifex,
// investing, isin). Adapters never return a nil record together with a nil
// error: an absent trading day is reported as NoData, a payload whose shape
// no longer matches the documented columns as SchemaMismatch.
package sources
