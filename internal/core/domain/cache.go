package domain

import "time"

// Cache key prefixes
const (
	CachePrefixQuery = "query:"
	CachePrefixEmbed = "embed:"
)

// CacheEntry is a memoised value with an expiry
type CacheEntry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewCacheEntry creates an entry that expires ttl after now
func NewCacheEntry(key string, value []byte, now time.Time, ttl time.Duration) *CacheEntry {
	return &CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired returns true once the entry has reached its expiry
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CacheStats describes cache usage
type CacheStats struct {
	Backend   string `json:"backend"`
	Entries   int64  `json:"entries"`
	Capacity  int    `json:"capacity,omitempty"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Evictions int64  `json:"evictions"`
	Expired   int64  `json:"expired"`
	Coalesced int64  `json:"coalesced"` // Callers that joined an in-flight computation
}
