// Package types defines the OpenAI-compatible request and response
// types the proxy speaks on its inbound side.
//
// Request types model the Chat Completions API: ChatCompletionRequest,
// Message, and the MessageContent sum type covering both plain-string
// content and arrays of typed content parts (text, remote image URL,
// inline base64 image data). Content is validated at the ingress
// boundary rather than accessed ad hoc downstream.
//
// Response types cover the non-streaming completion shape, the SSE
// stream chunk shape, the models list, and OpenAI-style error bodies.
// All field names follow OpenAI's snake_case JSON convention so
// standard OpenAI SDKs work unmodified against the proxy.
package types
