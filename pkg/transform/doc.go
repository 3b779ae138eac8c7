// Package transform converts between the proxy's inbound
// OpenAI-compatible wire format and the upstream's proprietary one.
//
// The request side restructures messages (uploading inline image data,
// downgrading remote image URLs, collapsing text parts) and derives the
// upstream chat type and thinking flag from model-identifier suffixes.
//
// The response side is the stream transducer: a stateful, single-pass,
// order-preserving transform over the upstream SSE byte stream that
// stitches the "think" and "answer" phases into one coherent content
// stream wrapped in <think> markers. Its state persists across
// arbitrary fragmentation of the input, so the output is identical
// whether the stream arrives byte-by-byte or in one buffer.
package transform
