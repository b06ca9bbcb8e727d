// Package model defines the data structures shared by the mirror engine,
// the report writers and the history database.
//
// This package contains the following main types:
//   - Entry: One same-origin resource and what happened to it
//   - PageVisit: One page the crawl driver loaded
//   - MirrorReport: The outcome of a single mirror job
//   - Comparison: The difference between two jobs of the same host
//
// Models live in their own package so that session, report and database
// can all depend on them without import cycles. Every type serializes to
// JSON for report output and database storage.
package model
