// Package database stores the history of finished mirror jobs in SQLite.
//
// Every job is saved as a row in jobs, holding the full JSON report, plus
// one row per captured resource in entries. The history lets the CLI list
// past jobs of a host, export their ledgers and compare two runs by
// content hash. It is not used to resume jobs.
//
// The driver is modernc.org/sqlite, a CGO-free SQLite, so the binary stays
// easy to cross-compile. The database is a single file in WAL mode.
package database
