// Package control exposes a mirror session to an operator.
//
// Commands arrive as {channel, params} messages and are dispatched through
// a closed table; an unknown channel yields a 404 result instead of being
// ignored. Session events are broadcast to every websocket client. The
// Server bundles the command endpoint, the event socket, health and
// metrics behind a chi router.
package control
