// Package upload implements the asset upload pipeline: it exchanges a
// primary token for temporary object-storage credentials at the
// upstream STS endpoint, then writes the asset bytes to the destination
// bucket over the S3 protocol and returns the durable object URL.
//
// The STS exchange is the flaky, idempotent network hop and is retried
// with bounded exponential backoff. The object write is a large data
// transfer where a blind retry risks duplicate partial writes, so its
// failures propagate to the caller instead.
package upload
