package application

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// credentialCache remembers recently verified API keys so that argon2 runs
// once per key per TTL window instead of on every request. Entries are keyed
// by a digest of the full token; raw secrets are never stored. checkedAt
// records when the key's revocation state was last read from storage.
type credentialCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]credentialCacheEntry
}

type credentialCacheEntry struct {
	keyID     string
	principal Principal
	checkedAt time.Time
	expiresAt time.Time
}

func newCredentialCache(ttl time.Duration, maxEntries int, now func() time.Time) *credentialCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &credentialCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]credentialCacheEntry),
	}
}

func (c *credentialCache) Get(token string) (credentialCacheEntry, bool) {
	if c == nil {
		return credentialCacheEntry{}, false
	}
	key := tokenDigest(token)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return credentialCacheEntry{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return credentialCacheEntry{}, false
	}
	return entry, true
}

func (c *credentialCache) Store(token, keyID string, principal Principal) {
	if c == nil {
		return
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[tokenDigest(token)] = credentialCacheEntry{keyID: keyID, principal: principal, checkedAt: now, expiresAt: now.Add(c.ttl)}
}

// MarkChecked records a fresh revocation check without extending the TTL.
func (c *credentialCache) MarkChecked(token string) {
	if c == nil {
		return
	}
	key := tokenDigest(token)
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		entry.checkedAt = c.now()
		c.entries[key] = entry
	}
}

// InvalidateKey drops every cached token issued under keyID.
func (c *credentialCache) InvalidateKey(keyID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if entry.keyID == keyID {
			delete(c.entries, key)
		}
	}
}

func (c *credentialCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *credentialCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
