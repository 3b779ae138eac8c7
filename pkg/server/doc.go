// Package server assembles the HTTP server: routes, middleware chain,
// and graceful shutdown.
package server
