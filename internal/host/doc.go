// Package host decides origin membership for a mirror job.
//
// Two hosts belong to the same origin when they are equal after
// normalization: lowercase, with a single leading "www." label removed.
// Scheme and port never take part in the comparison.
package host
