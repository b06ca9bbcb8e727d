// Package tor runs an embedded Tor daemon for mirror jobs.
//
// With a running Daemon the browser and the downloader reach the target
// through Tor's SOCKS port, so .onion sites can be mirrored without a Tor
// installation on the host. Hostnames are resolved by Tor, never locally.
//
// Bootstrapping takes one to three minutes while the daemon fetches
// directory information and builds its first circuits.
package tor
