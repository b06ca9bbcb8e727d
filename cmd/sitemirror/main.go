// Package main provides the entry point for the sitemirror CLI.
//
// sitemirror crawls a single website in a real browser, records every
// same-origin resource the pages load, downloads them under a local
// directory and rewrites references so the copy can be browsed offline.
//
// Usage:
//
//	sitemirror mirror https://example.com
//	sitemirror serve --addr 127.0.0.1:8737
//
// See --help for all available options.
package main

func main() {
	Execute()
}
