// Package config defines the YAML configuration of the proxy, its
// defaults, validation, and environment variable overrides.
package config
