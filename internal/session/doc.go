// Package session runs mirror jobs.
//
// A Session owns the state of one job at a time: the origin host, the
// discovery ledger and the link frontier. A job runs as a pipeline:
//
//   - crawl: the crawl driver walks the site while a capture loop turns
//     the renderer's network stream into ledger entries
//   - download: every ledger entry is fetched to its local path
//   - rewrite: references to renamed resources are rewritten
//   - finalize, persist: the job report is completed and saved
//
// The capture loop is the only goroutine that touches the ledger while
// the crawl runs; the later phases run after it has drained. Progress is
// reported through an event.Emitter.
package session
