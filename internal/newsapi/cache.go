package newsapi

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultCacheTTL はキャッシュエントリの既定の有効期間。
	DefaultCacheTTL = 10 * time.Minute
	// DefaultCacheEntries はMemoryCacheが保持する既定の最大エントリ数。
	DefaultCacheEntries = 512
)

// Cache はNews APIの記事レスポンスのキャッシュ。
// 複数リクエストから同時に呼ばれるため、実装は並行安全でなければならない。
type Cache interface {
	Get(ctx context.Context, key string) ([]Article, bool)
	Set(ctx context.Context, key string, articles []Article)
}

type noCache struct{}

func (noCache) Get(context.Context, string) ([]Article, bool) { return nil, false }
func (noCache) Set(context.Context, string, []Article) {}

type cacheEntry struct {
	articles  []Article
	expiresAt time.Time
}

// MemoryCache はプロセス内のTTL付きキャッシュ。
// 上限に達した場合は期限切れのエントリを除去し、なお空きがなければ最も早く期限切れになるエントリを除去する。
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time // テスト用に差し替え可能
}

// NewMemoryCache はMemoryCacheを生成する。0以下の値には既定値を用いる。
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &MemoryCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get は有効期限内のエントリを返す。
func (c *MemoryCache) Get(_ context.Context, key string) ([]Article, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return cloneArticles(e.articles), true
}

// Set はエントリを保存する。空の結果は保存しない。
func (c *MemoryCache) Set(_ context.Context, key string, articles []Article) {
	if len(articles) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evict(now)
	}
	c.entries[key] = cacheEntry{
		articles:  cloneArticles(articles),
		expiresAt: now.Add(c.ttl),
	}
}

// Len は保持しているエントリ数を返す。
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evict はロックを保持した状態で呼び出す。
func (c *MemoryCache) evict(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

func cloneArticles(src []Article) []Article {
	dst := make([]Article, len(src))
	copy(dst, src)
	return dst
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = noCache{}
)
