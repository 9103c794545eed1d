// Package http exposes the market data, monitor and pipeline operations
// over a chi router.
//
// Handlers stay thin: they parse and validate the request with the
// middleware validator, call one service method and either render a
// {"status":"success","data":...} envelope or hand the error to the shared
// RFC 7807 error handler. Routes:
//
//	GET  /api/health
//	GET  /api/version
//	GET  /api/market-stats?date=&days=
//	GET  /api/tickers/money-flow?market=&date=
//	GET  /api/tickers/top-movers/{direction}?market=&date=&top=
//	GET  /api/tickers/most-actives/{key}?market=&date=&top=
//	GET  /api/tickers/insti/{institution}/{direction}?market=&date=&top=
//	GET  /api/reports/{date}
//	GET  /api/pipelines
//	GET  /api/pipelines/{name}
//	POST /api/pipelines/{name}/runs
//	POST /monitor/alerts
//	POST /monitor/orders
//	GET  /monitor/subscriptions
//	GET  /monitor/{id}
//	GET  /ws
//	GET  /metrics
package http
