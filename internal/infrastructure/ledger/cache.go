package ledger

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"
)

// Cached operations
const (
	OpTransactions     = "transactions"
	OpDepositEvents    = "deposit_events"
	OpWithdrawalEvents = "withdrawal_events"
	OpAccount          = "account"
	OpResources        = "resources"
)

// CacheKey identifies one cacheable request.
// Two keys are equal iff all four fields are equal.
type CacheKey struct {
	Operation string
	Address   string
	TokenType string
	Cursor    string
}

// Fingerprint is a collision-resistant string form of the key.
// Fields are length-prefixed so delimiter characters inside a field cannot
// make two distinct keys hash alike.
func (k CacheKey) Fingerprint() string {
	h := sha256.New()
	var n [8]byte
	for _, part := range []string{k.Operation, k.Address, k.TokenType, k.Cursor} {
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PageCache stores raw response payloads with an expiry
type PageCache interface {
	Get(ctx context.Context, key CacheKey) ([]byte, bool)
	Set(ctx context.Context, key CacheKey, value []byte, ttl time.Duration) error
}

// MemoryCache is an in-process PageCache with per-entry TTL and LRU eviction
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	items    map[CacheKey]*list.Element
	order    *list.List
	nowFn    func() time.Time
}

type cacheEntry struct {
	key       CacheKey
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates a cache holding at most capacity entries (unbounded when <= 0)
func NewMemoryCache(capacity int) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[CacheKey]*list.Element),
		order:    list.New(),
		nowFn:    time.Now,
	}
}

// Get returns the payload for key if present and not expired
func (c *MemoryCache) Get(_ context.Context, key CacheKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}

	e := elem.Value.(*cacheEntry)
	if !c.nowFn().Before(e.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, key)
		return nil, false
	}

	c.order.MoveToFront(elem)
	return e.value, true
}

// Set stores a payload that expires ttl from now
func (c *MemoryCache) Set(_ context.Context, key CacheKey, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.nowFn().Add(ttl)
	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*cacheEntry)
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return nil
	}

	if c.capacity > 0 && c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}

	c.items[key] = c.order.PushFront(&cacheEntry{key: key, value: value, expiresAt: expiresAt})
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge drops every entry
func (c *MemoryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[CacheKey]*list.Element)
	c.order.Init()
}
