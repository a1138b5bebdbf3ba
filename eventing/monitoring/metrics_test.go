package monitoring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()
	m.RecordAppend(3, 30*time.Millisecond)
	m.RecordLoad(5, 10*time.Millisecond)
	m.RecordDuplicate()
	m.RecordStoreError()
	m.RecordSnapshotSaved()
	m.RecordSnapshotLoaded(true)
	m.RecordSnapshotLoaded(false)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheMiss()

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.EventsAppended)
	assert.Equal(t, int64(5), s.EventsLoaded)
	assert.Equal(t, int64(1), s.DuplicateConflicts)
	assert.Equal(t, int64(1), s.StoreErrors)
	assert.Equal(t, int64(1), s.SnapshotsSaved)
	assert.Equal(t, int64(2), s.SnapshotsLoaded)
	assert.Equal(t, int64(1), s.SnapshotHits)
	assert.Equal(t, int64(1), s.SnapshotMisses)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(2), s.CacheMisses)

	out := s.ToMap()
	snap, ok := out["snapshot"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 50.0, snap["hit_rate"], 0.001)
	es := out["event_store"].(map[string]any)
	assert.InDelta(t, 10.0, es["avg_append_duration_ms"], 0.001)
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()
	m.RecordAppend(1, time.Millisecond)
	m.RecordCacheHit()
	m.Reset()

	s := m.Snapshot()
	assert.Zero(t, s.EventsAppended)
	assert.Zero(t, s.CacheHits)
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordAppend(2, time.Microsecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), m.Snapshot().EventsAppended)
}

func TestGlobalMetrics(t *testing.T) {
	original := GlobalMetrics()
	defer SetGlobalMetrics(original)

	require.NotNil(t, original)
	custom := NewMetrics()
	SetGlobalMetrics(custom)
	assert.Same(t, custom, GlobalMetrics())

	SetGlobalMetrics(nil)
	assert.Same(t, custom, GlobalMetrics())
}
