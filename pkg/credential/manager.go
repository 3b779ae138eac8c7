package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoCredential is returned by SelectValid when a pool has no valid
// entries. Callers must treat it as "no usable credential", not a crash.
var ErrNoCredential = errors.New("no valid credential available")

// Manager owns all credential state. It is the only mutator of the two
// pools and serializes every read-modify-write cycle per pool.
//
// Construct one Manager at process start and pass it to the handlers
// that need it; it holds no ambient global state.
type Manager struct {
	store  Store
	logger *slog.Logger

	// One lock per pool. A pool's full load-mutate-save cycle runs under
	// its lock, so operations on the same pool never interleave.
	tokenMu  sync.Mutex
	cookieMu sync.Mutex

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewManager creates a pool manager backed by the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:  store,
		logger: slog.Default().With("component", "credential.manager"),
		now:    time.Now,
	}
}

// poolKey returns the store key holding a pool's serialized state.
func poolKey(kind Kind) string {
	return "pool:" + string(kind)
}

// lockFor returns the mutex guarding the given pool.
func (m *Manager) lockFor(kind Kind) *sync.Mutex {
	if kind == KindCookie {
		return &m.cookieMu
	}
	return &m.tokenMu
}

// loadPool reads and decodes a pool. An absent key is an empty pool.
// Callers must hold the pool's lock.
func (m *Manager) loadPool(ctx context.Context, kind Kind) ([]Credential, error) {
	blob, err := m.store.Get(ctx, poolKey(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s pool: %w", kind, err)
	}
	if blob == nil {
		return nil, nil
	}

	var pool []Credential
	if err := json.Unmarshal(blob, &pool); err != nil {
		return nil, fmt.Errorf("failed to decode %s pool: %w", kind, err)
	}
	return pool, nil
}

// savePool encodes and writes a pool. Callers must hold the pool's lock.
func (m *Manager) savePool(ctx context.Context, kind Kind, pool []Credential) error {
	blob, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("failed to encode %s pool: %w", kind, err)
	}
	if err := m.store.Set(ctx, poolKey(kind), blob); err != nil {
		return fmt.Errorf("failed to save %s pool: %w", kind, err)
	}
	return nil
}

// Insert adds a credential to the pool. It returns false without error
// when the value is already present; within a pool, values are unique.
func (m *Manager) Insert(ctx context.Context, kind Kind, value string) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("unknown credential kind %q", kind)
	}
	if value == "" {
		return false, fmt.Errorf("credential value cannot be empty")
	}

	mu := m.lockFor(kind)
	mu.Lock()
	defer mu.Unlock()

	pool, err := m.loadPool(ctx, kind)
	if err != nil {
		return false, err
	}

	for _, c := range pool {
		if c.Value == value {
			return false, nil
		}
	}

	pool = append(pool, Credential{
		ID:        uuid.NewString(),
		Value:     value,
		Valid:     true,
		CreatedAt: m.now(),
	})

	if err := m.savePool(ctx, kind, pool); err != nil {
		return false, err
	}

	m.logger.Info("credential inserted",
		"kind", kind,
		"pool_size", len(pool),
	)
	return true, nil
}

// SelectValid returns the least recently used valid credential in the
// pool and touches its LastUsedAt. Credentials that have never been
// selected sort oldest, so fresh imports are tried first. Returns
// ErrNoCredential when the pool has no valid entry.
func (m *Manager) SelectValid(ctx context.Context, kind Kind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown credential kind %q", kind)
	}

	mu := m.lockFor(kind)
	mu.Lock()
	defer mu.Unlock()

	pool, err := m.loadPool(ctx, kind)
	if err != nil {
		return "", err
	}

	selected := -1
	for i, c := range pool {
		if !c.Valid {
			continue
		}
		if selected == -1 {
			selected = i
			continue
		}
		if olderUse(pool[i], pool[selected]) {
			selected = i
		}
	}

	if selected == -1 {
		return "", ErrNoCredential
	}

	usedAt := m.now()
	pool[selected].LastUsedAt = &usedAt

	if err := m.savePool(ctx, kind, pool); err != nil {
		return "", err
	}

	return pool[selected].Value, nil
}

// olderUse reports whether a was used less recently than b.
// A nil LastUsedAt counts as oldest.
func olderUse(a, b Credential) bool {
	switch {
	case a.LastUsedAt == nil && b.LastUsedAt == nil:
		return false
	case a.LastUsedAt == nil:
		return true
	case b.LastUsedAt == nil:
		return false
	default:
		return a.LastUsedAt.Before(*b.LastUsedAt)
	}
}

// Invalidate marks the credential with the given value invalid and
// increments its error count. Unknown values are a silent no-op;
// invalidation is best-effort and idempotent per call.
func (m *Manager) Invalidate(ctx context.Context, kind Kind, value string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown credential kind %q", kind)
	}

	mu := m.lockFor(kind)
	mu.Lock()
	defer mu.Unlock()

	pool, err := m.loadPool(ctx, kind)
	if err != nil {
		return err
	}

	found := false
	for i := range pool {
		if pool[i].Value == value {
			pool[i].Valid = false
			pool[i].ErrorCount++
			found = true
			break
		}
	}

	if !found {
		return nil
	}

	if err := m.savePool(ctx, kind, pool); err != nil {
		return err
	}

	m.logger.Warn("credential invalidated",
		"kind", kind,
		"value", MaskValue(value),
	)
	return nil
}

// PurgeInvalid removes all invalid entries from the pool and returns
// how many were removed.
func (m *Manager) PurgeInvalid(ctx context.Context, kind Kind) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("unknown credential kind %q", kind)
	}

	mu := m.lockFor(kind)
	mu.Lock()
	defer mu.Unlock()

	pool, err := m.loadPool(ctx, kind)
	if err != nil {
		return 0, err
	}

	kept := pool[:0]
	for _, c := range pool {
		if c.Valid {
			kept = append(kept, c)
		}
	}
	removed := len(pool) - len(kept)

	if removed == 0 {
		return 0, nil
	}

	if err := m.savePool(ctx, kind, kept); err != nil {
		return 0, err
	}

	m.logger.Info("invalid credentials purged",
		"kind", kind,
		"removed", removed,
		"remaining", len(kept),
	)
	return removed, nil
}

// Snapshot returns a masked view of every credential in the pool for
// display on the status surface. Raw secrets never leave the manager.
func (m *Manager) Snapshot(ctx context.Context, kind Kind) ([]CredentialInfo, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown credential kind %q", kind)
	}

	mu := m.lockFor(kind)
	mu.Lock()
	defer mu.Unlock()

	pool, err := m.loadPool(ctx, kind)
	if err != nil {
		return nil, err
	}

	infos := make([]CredentialInfo, 0, len(pool))
	for _, c := range pool {
		infos = append(infos, CredentialInfo{
			Value:      MaskValue(c.Value),
			Valid:      c.Valid,
			CreatedAt:  c.CreatedAt,
			LastUsedAt: c.LastUsedAt,
			ErrorCount: c.ErrorCount,
		})
	}
	return infos, nil
}

// Counts returns the number of valid and invalid credentials in a pool.
func (m *Manager) Counts(ctx context.Context, kind Kind) (valid, invalid int, err error) {
	if !kind.Valid() {
		return 0, 0, fmt.Errorf("unknown credential kind %q", kind)
	}

	mu := m.lockFor(kind)
	mu.Lock()
	defer mu.Unlock()

	pool, err := m.loadPool(ctx, kind)
	if err != nil {
		return 0, 0, err
	}

	for _, c := range pool {
		if c.Valid {
			valid++
		} else {
			invalid++
		}
	}
	return valid, invalid, nil
}
