// Package tokencache stores access tokens keyed by service account and scope set.
//
// Keys are derived with Key, which ignores scope order and duplicates. Entries are never evicted;
// a refreshed token simply replaces the previous one under the same key. Nothing is persisted.
package tokencache

import (
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Entry is an access token issued by the token endpoint.
type Entry struct {
	Token string `json:"token"`
	// Expires is the absolute expiry computed when the token was received.
	Expires time.Time `json:"expires"`
	// ExpiresIn is the lifetime in seconds exactly as reported by the server.
	ExpiresIn int64 `json:"expires_in"`
}

// Cache maps (email, scope set) pairs to entries.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(email string, scopes []string) (Entry, bool)
	Set(email string, scopes []string, entry Entry)
}

// Key derives the cache key for email and scopes.
// Every component is quoted, so no email or scope value can collide with another pair.
func Key(email string, scopes []string) string {
	sorted := slices.Clone(scopes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var b strings.Builder
	b.WriteString(strconv.Quote(email))
	b.WriteByte(':')
	for i, scope := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(scope))
	}
	return b.String()
}

// Memory is an in-process Cache guarded by a read/write mutex.
// The lock is held only for the map access itself.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Get returns the entry stored for email and scopes.
func (m *Memory) Get(email string, scopes []string) (Entry, bool) {
	key := Key(email, scopes)

	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	return entry, ok
}

// Set stores entry for email and scopes, replacing any previous entry.
func (m *Memory) Set(email string, scopes []string, entry Entry) {
	key := Key(email, scopes)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]Entry)
	}
	m.entries[key] = entry
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
