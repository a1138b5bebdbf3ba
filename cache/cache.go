// Package cache 提供带容量与过期控制的泛型缓存
//
// 底层使用 hashicorp/golang-lru 的 expirable LRU：超过容量时驱逐最久未使用的条目，
// TTL 从写入时刻开始计算。
package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache 通用泛型缓存，并发安全
//
//	c := cache.New[string, eventing.DomainEventStream](cache.Config{
//	    Name:    "event_streams",
//	    MaxSize: 1000,
//	    TTL:     5 * time.Minute,
//	})
//	c.Set(key, stream)
//	if s, ok := c.Get(key); ok { ... }
type Cache[K comparable, V any] struct {
	name string
	max  int
	lru  *expirable.LRU[K, V]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Config 缓存配置
type Config struct {
	// Name 缓存名称（用于日志和统计）
	Name string

	// MaxSize 最大条目数，0 表示不限制
	MaxSize int

	// TTL 条目存活时间，0 表示永不过期
	TTL time.Duration
}

// CacheStats 缓存统计信息
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64 // 因容量不足被驱逐的次数
	Size      int
}

// New 创建新的缓存实例
func New[K comparable, V any](config Config) *Cache[K, V] {
	if config.Name == "" {
		config.Name = "unnamed"
	}
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	return &Cache[K, V]{
		name: config.Name,
		max:  config.MaxSize,
		lru:  expirable.NewLRU[K, V](config.MaxSize, nil, config.TTL),
	}
}

// Get 获取缓存值，过期条目视为未命中
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set 写入或覆盖缓存值
func (c *Cache[K, V]) Set(key K, value V) {
	if c.lru.Add(key, value) {
		c.evictions.Add(1)
	}
}

// Delete 删除缓存条目，返回是否存在
func (c *Cache[K, V]) Delete(key K) bool {
	return c.lru.Remove(key)
}

// Clear 清空所有缓存
func (c *Cache[K, V]) Clear() {
	c.lru.Purge()
}

// Size 当前条目数（不含已过期条目）
func (c *Cache[K, V]) Size() int {
	return c.lru.Len()
}

// Stats 获取缓存统计信息
func (c *Cache[K, V]) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.lru.Len(),
	}
}

// HitRate 命中率，范围 [0, 1]
func (c *Cache[K, V]) HitRate() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func (c *Cache[K, V]) String() string {
	s := c.Stats()
	return fmt.Sprintf("Cache[%s]: size=%d/%d, hits=%d, misses=%d, hit_rate=%.2f%%, evictions=%d",
		c.name, s.Size, c.max, s.Hits, s.Misses, c.HitRate()*100, s.Evictions)
}
