// Package logging provides a simple leveled logging interface for the
// preview engine and its binaries.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (process lifecycle, cache hits)
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions, including decoder read failures
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Engine packages log through a
// [Component] logger so messages carry their origin.
package logging
