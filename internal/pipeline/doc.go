// Package pipeline runs a fixed sequence of named steps over a shared
// state value.
//
// A mirror job is a pipeline of crawl, download, rewrite and persist
// steps. Steps run strictly one after another. Cancellation is checked
// between steps, and steps registered with WithAlways (persisting the job
// record, for example) still run after a cancellation or a failed step.
package pipeline
