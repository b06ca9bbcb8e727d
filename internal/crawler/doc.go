// Package crawler drives a page renderer across the same-origin link graph
// of a site.
//
// # Traversal
//
// The Driver moves through Idle, Starting, Visiting, Draining and Finished.
// It loads the seed, offers the page's anchors to the link frontier and
// scrolls the page so lazily loaded resources fire their network events.
// It then repeatedly takes the next pending link, marks it scanned, waits
// briefly for trailing network activity, snapshots the current page and
// navigates. When no pending link remains it snapshots the last page,
// reports the scan summary and waits once more before finishing.
//
// # Failures
//
// A navigation that fails is retried a bounded number of times and then
// skipped with an error event. Snapshot and script failures are logged and
// never interrupt traversal. Only context cancellation ends a crawl early.
//
// # Usage
//
//	d := crawler.NewDriver(r, f, crawler.WithSnapshotter(s))
//	result, err := d.Run(ctx, "https://example.com/")
package crawler
