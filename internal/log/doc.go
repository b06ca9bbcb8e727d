// Package log builds the slog logger used across sitemirror.
//
// Every record passes through SecureHandler, which masks request headers
// and credentials a mirror job can carry: cookies, authorization values,
// proxy passwords and signed query parameters in asset URLs. Masking
// applies in verbose mode too, so logs can be attached to bug reports.
//
// New writes human-readable text to the console and, when a log file is
// configured, JSON lines to a size-rotated file:
//
//	logger, closer := log.New(os.Stderr, log.Options{Verbose: true, File: "sitemirror.log"})
//	defer closer.Close()
//	logger.Info("page visited", "url", "https://example.com/?token=abc")
//	// url=https://example.com/?token=***REDACTED***
package log
