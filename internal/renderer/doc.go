// Package renderer drives a page renderer for the crawl.
//
// A Renderer navigates to pages, reports every network response it
// completes, and answers questions about the loaded document (anchors,
// title, outer HTML). Network completions are delivered on the channel
// returned by Network; the consumer owns whatever state they feed, so no
// callback ever touches shared memory.
//
// Two implementations exist:
//   - Chrome drives a real browser through the DevTools protocol (go-rod).
//     Scripts run, lazy content loads, and every request the page makes is
//     observed.
//   - Static fetches pages over plain HTTP and parses them with goquery.
//     It requests the subresources referenced by markup and stylesheets
//     the way a browser would, without running scripts.
//
// Close stops all producers and then closes the network channel, so a
// consumer ranging over Network terminates once the renderer is closed.
package renderer
