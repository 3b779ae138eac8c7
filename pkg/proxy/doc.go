// Package proxy contains the HTTP surface of the translation layer:
// response writers, SSE plumbing, and the mapping from internal
// failures to OpenAI-compatible error bodies.
package proxy
