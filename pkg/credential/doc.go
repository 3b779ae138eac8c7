// Package credential manages the two pools of upstream credentials used
// by the proxy: primary bearer tokens and session cookies.
//
// # Pools
//
// Each pool holds opaque string credentials of one kind. Credentials are
// created only by explicit import, selected with a least-recently-used
// policy, invalidated when the upstream rejects them, and removed only
// by an explicit purge of invalid entries. There is no automatic expiry.
//
// # Storage
//
// Pool state is persisted through the Store interface, a minimal
// get/set over opaque keys. SQLiteStore provides durable storage across
// restarts; MemoryStore backs tests and ephemeral deployments with the
// same semantics.
//
// # Concurrency
//
// Manager serializes every read-modify-write cycle per pool behind a
// single mutex, so concurrent Insert, SelectValid, Invalidate and
// PurgeInvalid calls on the same pool never interleave at a finer grain
// than one full cycle. The two pools are independent lock domains.
package credential
