// Package logging configures the process-wide structured logger and
// carries request-scoped loggers through contexts.
package logging
