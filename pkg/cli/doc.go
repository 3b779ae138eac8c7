// Package cli provides helpers shared by the command-line surface:
// output formatting for command results and signal-aware contexts.
package cli
