// Package pipeline runs ingestion steps for one trading date.
//
// Steps are registered on a Registry, ordered by their declared
// dependencies and executed one at a time by a Scheduler that waits a
// fixed spacing between upstream-bound steps. A step reports either a
// completed write or that its sources had no data for the date; neither
// a failure nor an absent dataset stops the remaining steps. Steps whose
// dependencies failed are skipped.
package pipeline
