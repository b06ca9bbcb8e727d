// Package event defines the progress events a mirror job reports to the
// control channel.
//
// Every event is a {channel, params} pair. Channel names and the JSON
// names of the params are the wire vocabulary seen by operators, so they
// are fixed here and nowhere else.
package event
