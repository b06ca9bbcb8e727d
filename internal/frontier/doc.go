// Package frontier tracks the same-origin hyperlinks of a mirror job and
// which of them have been visited.
//
// # Acceptance
//
// A candidate link is accepted when it:
//   - parses as an absolute http or https URL
//   - contains no fragment marker ("#")
//   - belongs to the job's origin (see package host)
//   - passes the optional ignore/follow path patterns
//
// The first offer of a URL wins; offering it again, visited or not, does
// nothing. Links are never removed during a job.
//
// # Path patterns
//
// Ignore patterns are checked first and reject on match. When follow
// patterns are configured, a link must match at least one of them.
// Patterns use glob syntax against the URL path:
//
//	/admin/*   everything below /admin
//	*.pdf      any path ending in .pdf
//	/a?c       single character wildcard
package frontier
