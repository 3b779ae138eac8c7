// Package middleware provides the HTTP middleware chain: request id
// propagation, access logging, panic recovery, metrics, and admin
// authentication.
package middleware
