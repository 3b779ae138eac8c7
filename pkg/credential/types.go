package credential

import "time"

// Kind identifies which credential pool an operation targets.
type Kind string

const (
	// KindToken is the pool of primary bearer tokens. A primary token is
	// mandatory for every upstream call.
	KindToken Kind = "token"

	// KindCookie is the pool of session cookie values. Cookies are
	// optional; a request proceeds without one.
	KindCookie Kind = "cookie"
)

// Valid reports whether k names a known pool.
func (k Kind) Valid() bool {
	return k == KindToken || k == KindCookie
}

// Credential is a single entry in a pool.
//
// Value is never mutated after creation. Selection touches LastUsedAt;
// invalidation flips Valid and increments ErrorCount. Nothing else
// changes a credential in place.
type Credential struct {
	// ID is an opaque unique identifier assigned at insertion.
	ID string `json:"id"`

	// Value is the raw secret string.
	Value string `json:"value"`

	// Valid is true at creation and set false only by Invalidate.
	Valid bool `json:"valid"`

	// CreatedAt is when the credential was imported.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential was last selected, nil if never.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	// ErrorCount is incremented on each invalidation event.
	ErrorCount int `json:"error_count"`
}

// CredentialInfo is the masked, display-safe view of a credential
// returned by Manager.Snapshot.
type CredentialInfo struct {
	// Value is the masked secret (see MaskValue).
	Value string `json:"value"`

	// Valid mirrors Credential.Valid.
	Valid bool `json:"valid"`

	// CreatedAt mirrors Credential.CreatedAt.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt mirrors Credential.LastUsedAt.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	// ErrorCount mirrors Credential.ErrorCount.
	ErrorCount int `json:"error_count"`
}
