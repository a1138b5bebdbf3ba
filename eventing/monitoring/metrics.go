// Package monitoring 事件存储与快照的运行指标
package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics 事件系统监控指标，所有方法可并发调用
type Metrics struct {
	// 事件存储指标
	eventsAppended     atomic.Int64 // 成功追加的事件数
	appendDuration     atomic.Int64 // 追加总耗时（纳秒）
	eventsLoaded       atomic.Int64 // 加载的事件数
	loadDuration       atomic.Int64 // 加载总耗时（纳秒）
	duplicateConflicts atomic.Int64 // playhead 冲突次数
	storeErrors        atomic.Int64 // 其它存储错误数

	// 快照指标
	snapshotsSaved  atomic.Int64
	snapshotsLoaded atomic.Int64
	snapshotHits    atomic.Int64
	snapshotMisses  atomic.Int64

	// 缓存指标
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	mu        sync.RWMutex
	startTime time.Time
}

// NewMetrics 创建新的指标收集器
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordAppend 记录一次成功追加
func (m *Metrics) RecordAppend(count int, d time.Duration) {
	m.eventsAppended.Add(int64(count))
	m.appendDuration.Add(int64(d))
}

// RecordLoad 记录一次加载
func (m *Metrics) RecordLoad(count int, d time.Duration) {
	m.eventsLoaded.Add(int64(count))
	m.loadDuration.Add(int64(d))
}

// RecordDuplicate 记录 playhead 冲突
func (m *Metrics) RecordDuplicate() { m.duplicateConflicts.Add(1) }

// RecordStoreError 记录存储错误
func (m *Metrics) RecordStoreError() { m.storeErrors.Add(1) }

// RecordSnapshotSaved 记录快照保存
func (m *Metrics) RecordSnapshotSaved() { m.snapshotsSaved.Add(1) }

// RecordSnapshotLoaded 记录快照读取，hit 表示找到了快照
func (m *Metrics) RecordSnapshotLoaded(hit bool) {
	m.snapshotsLoaded.Add(1)
	if hit {
		m.snapshotHits.Add(1)
	} else {
		m.snapshotMisses.Add(1)
	}
}

func (m *Metrics) RecordCacheHit()  { m.cacheHits.Add(1) }
func (m *Metrics) RecordCacheMiss() { m.cacheMisses.Add(1) }

// MetricsSnapshot 指标快照（用于读取）
type MetricsSnapshot struct {
	EventsAppended     int64
	AppendDuration     time.Duration
	EventsLoaded       int64
	LoadDuration       time.Duration
	DuplicateConflicts int64
	StoreErrors        int64

	SnapshotsSaved  int64
	SnapshotsLoaded int64
	SnapshotHits    int64
	SnapshotMisses  int64

	CacheHits   int64
	CacheMisses int64

	Uptime time.Duration
}

// Snapshot 获取当前指标快照
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	start := m.startTime
	m.mu.RUnlock()

	return MetricsSnapshot{
		EventsAppended:     m.eventsAppended.Load(),
		AppendDuration:     time.Duration(m.appendDuration.Load()),
		EventsLoaded:       m.eventsLoaded.Load(),
		LoadDuration:       time.Duration(m.loadDuration.Load()),
		DuplicateConflicts: m.duplicateConflicts.Load(),
		StoreErrors:        m.storeErrors.Load(),

		SnapshotsSaved:  m.snapshotsSaved.Load(),
		SnapshotsLoaded: m.snapshotsLoaded.Load(),
		SnapshotHits:    m.snapshotHits.Load(),
		SnapshotMisses:  m.snapshotMisses.Load(),

		CacheHits:   m.cacheHits.Load(),
		CacheMisses: m.cacheMisses.Load(),

		Uptime: time.Since(start),
	}
}

// Reset 重置所有指标
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Int64{
		&m.eventsAppended, &m.appendDuration, &m.eventsLoaded, &m.loadDuration,
		&m.duplicateConflicts, &m.storeErrors,
		&m.snapshotsSaved, &m.snapshotsLoaded, &m.snapshotHits, &m.snapshotMisses,
		&m.cacheHits, &m.cacheMisses,
	} {
		c.Store(0)
	}
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// ToMap 转换为map格式（便于JSON序列化）
func (s MetricsSnapshot) ToMap() map[string]any {
	return map[string]any{
		"uptime_seconds": s.Uptime.Seconds(),
		"event_store": map[string]any{
			"events_appended":        s.EventsAppended,
			"events_loaded":          s.EventsLoaded,
			"duplicate_conflicts":    s.DuplicateConflicts,
			"errors":                 s.StoreErrors,
			"avg_append_duration_ms": avgDuration(s.AppendDuration, s.EventsAppended),
			"avg_load_duration_ms":   avgDuration(s.LoadDuration, s.EventsLoaded),
		},
		"snapshot": map[string]any{
			"saved":    s.SnapshotsSaved,
			"loaded":   s.SnapshotsLoaded,
			"hits":     s.SnapshotHits,
			"misses":   s.SnapshotMisses,
			"hit_rate": hitRate(s.SnapshotHits, s.SnapshotMisses),
		},
		"cache": map[string]any{
			"hits":     s.CacheHits,
			"misses":   s.CacheMisses,
			"hit_rate": hitRate(s.CacheHits, s.CacheMisses),
		},
	}
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
