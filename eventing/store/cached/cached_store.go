// Package cached 事件存储的缓存与指标装饰器
package cached

import (
	"context"
	"sync"
	"time"

	"eventcore/cache"
	"eventcore/eventing"
	"eventcore/eventing/monitoring"
	"eventcore/eventing/store"
)

// Config 缓存配置
type Config struct {
	TTL           time.Duration // 缓存过期时间（默认: 5分钟）
	MaxAggregates int           // 最大缓存聚合数（默认: 1000）
}

// DefaultConfig 默认缓存配置
func DefaultConfig() *Config {
	return &Config{
		TTL:           5 * time.Minute,
		MaxAggregates: 1000,
	}
}

// CachedEventStore 缓存完整事件流的装饰器，适合读多写少的场景
//
// Load 与 LoadFromPlayhead 都从缓存的完整流中取数；
// 每次追加（无论成功与否）都会使该聚合的缓存失效。
type CachedEventStore struct {
	inner   store.IEventStore
	streams *cache.Cache[string, eventing.DomainEventStream]
	metrics *monitoring.Metrics

	// generation 每次追加后递增；加载期间发生过追加时结果不回填缓存
	mu         sync.Mutex
	generation uint64
}

// NewCachedEventStore config 为 nil 时使用 DefaultConfig
func NewCachedEventStore(inner store.IEventStore, config *Config) *CachedEventStore {
	if inner == nil {
		panic("NewCachedEventStore: inner IEventStore cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	return &CachedEventStore{
		inner: inner,
		streams: cache.New[string, eventing.DomainEventStream](cache.Config{
			Name:    "event_streams",
			MaxSize: config.MaxAggregates,
			TTL:     config.TTL,
		}),
		metrics: monitoring.GlobalMetrics(),
	}
}

// WithMetrics 指定指标收集器
func (s *CachedEventStore) WithMetrics(m *monitoring.Metrics) *CachedEventStore {
	if m != nil {
		s.metrics = m
	}
	return s
}

func (s *CachedEventStore) Append(ctx context.Context, id any, stream eventing.DomainEventStream) error {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return err
	}
	// 失败的追加也可能是因为缓存已经落后于存储，一并失效
	defer s.invalidate(key)
	return s.inner.Append(ctx, id, stream)
}

func (s *CachedEventStore) invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.streams.Delete(key)
}

func (s *CachedEventStore) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *CachedEventStore) Load(ctx context.Context, id any) (eventing.DomainEventStream, error) {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return eventing.DomainEventStream{}, err
	}
	return s.loadFull(ctx, id, key)
}

func (s *CachedEventStore) LoadFromPlayhead(ctx context.Context, id any, playhead int64) (eventing.DomainEventStream, error) {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return eventing.DomainEventStream{}, err
	}
	if cached, ok := s.streams.Get(key); ok {
		s.metrics.RecordCacheHit()
		return cached.FromPlayhead(playhead), nil
	}
	s.metrics.RecordCacheMiss()
	// 部分加载不回填缓存，缓存中只保存完整流
	return s.inner.LoadFromPlayhead(ctx, id, playhead)
}

func (s *CachedEventStore) loadFull(ctx context.Context, id any, key string) (eventing.DomainEventStream, error) {
	if cached, ok := s.streams.Get(key); ok {
		s.metrics.RecordCacheHit()
		return cached, nil
	}
	s.metrics.RecordCacheMiss()

	gen := s.currentGeneration()
	stream, err := s.inner.Load(ctx, id)
	if err != nil {
		return eventing.DomainEventStream{}, err
	}
	s.mu.Lock()
	if s.generation == gen {
		s.streams.Set(key, stream)
	}
	s.mu.Unlock()
	return stream, nil
}

// Invalidate 手动使某个聚合的缓存失效
func (s *CachedEventStore) Invalidate(id any) {
	if key, err := eventing.IdentityString(id); err == nil {
		s.invalidate(key)
	}
}

// Stats 缓存统计
func (s *CachedEventStore) Stats() cache.CacheStats { return s.streams.Stats() }

var _ store.IEventStore = (*CachedEventStore)(nil)
