// Package config provides configuration structures and utilities for
// sitemirror. It defines the options of a mirror job, the YAML site
// configuration file, and the XDG and named system directories the tool
// resolves paths against.
package config
