package summarizer

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"
)

// summaryCache keeps tool summaries for ttl, evicting the least recently
// used entry once capacity is reached. A nil cache stores nothing.
type summaryCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	byKey    map[string]*list.Element
	recency  *list.List // front is most recently used
}

type cachedSummary struct {
	key       string
	text      string
	expiresAt time.Time
}

func newSummaryCache(capacity int, ttl time.Duration) *summaryCache {
	if capacity <= 0 || ttl <= 0 {
		return nil
	}

	return &summaryCache{
		ttl:      ttl,
		capacity: capacity,
		byKey:    make(map[string]*list.Element, capacity),
		recency:  list.New(),
	}
}

// summaryCacheKey is empty for blank text so such requests are never cached.
func summaryCacheKey(text string, targetWords int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	h := sha256.New()
	h.Write([]byte(strconv.Itoa(targetWords)))
	h.Write([]byte{0})
	h.Write([]byte(text))

	return hex.EncodeToString(h.Sum(nil))
}

func (c *summaryCache) get(key string, now time.Time) (string, bool) {
	if c == nil || key == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.byKey[key]
	if !ok {
		return "", false
	}

	item := elem.Value.(*cachedSummary) //nolint:forcetypeassert // Only *cachedSummary is stored
	if now.After(item.expiresAt) {
		c.drop(elem)

		return "", false
	}

	c.recency.MoveToFront(elem)

	return item.text, true
}

// put stores text under key until now plus the cache TTL.
func (c *summaryCache) put(key string, text string, now time.Time) {
	if c == nil || key == "" || text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := now.Add(c.ttl)

	if elem, ok := c.byKey[key]; ok {
		item := elem.Value.(*cachedSummary) //nolint:forcetypeassert // Only *cachedSummary is stored
		item.text = text
		item.expiresAt = expiresAt
		c.recency.MoveToFront(elem)

		return
	}

	c.byKey[key] = c.recency.PushFront(&cachedSummary{key: key, text: text, expiresAt: expiresAt})

	c.dropExpired(now)
	for c.recency.Len() > c.capacity {
		c.drop(c.recency.Back())
	}
}

// purgeExpired drops expired entries and returns how many were removed.
func (c *summaryCache) purgeExpired(now time.Time) int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dropExpired(now)
}

func (c *summaryCache) len() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.recency.Len()
}

func (c *summaryCache) dropExpired(now time.Time) int {
	dropped := 0

	for elem := c.recency.Front(); elem != nil; {
		next := elem.Next()

		if now.After(elem.Value.(*cachedSummary).expiresAt) { //nolint:forcetypeassert // Only *cachedSummary is stored
			c.drop(elem)
			dropped++
		}
		elem = next
	}

	return dropped
}

func (c *summaryCache) drop(elem *list.Element) {
	item := c.recency.Remove(elem).(*cachedSummary) //nolint:forcetypeassert // Only *cachedSummary is stored
	delete(c.byKey, item.key)
}
