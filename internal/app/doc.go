// Package app wires twmarket together.
//
// New builds the stores, the upstream source adapters, the two ingestion
// pipelines and the report generator. Batch commands use those directly:
//
//	a, err := app.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer a.Close(ctx)
//	result, err := a.Ingest(ctx, ingest.StatsPipeline, a.Today())
//
// Serve additionally starts the live event hub, the quote feed and the
// price monitor engine, then serves the HTTP API until ctx is cancelled.
// Shutdown drains in-flight requests and background pipeline runs before
// the feed is closed and pending monitor dispatches finish.
//
// Errors are returned to the caller; the package never exits the process.
package app
