// Package handlers implements the HTTP handlers of the proxy: the
// OpenAI-compatible chat and model endpoints, and the admin surface
// for managing the credential pools.
package handlers
