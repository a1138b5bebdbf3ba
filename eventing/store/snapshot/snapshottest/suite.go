// Package snapshottest 提供所有快照存储实现共用的验收测试
package snapshottest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcore/eventing"
	"eventcore/eventing/serializer"
	"eventcore/eventing/store/snapshot"
)

// Counter 测试聚合，状态全部可导出以便序列化
type Counter struct {
	ID     string         `json:"id"`
	Count  int            `json:"count"`
	Labels map[string]int `json:"labels"`
	At     int64          `json:"-"`
}

func (c *Counter) AggregateRootID() any { return c.ID }
func (c *Counter) Playhead() int64      { return c.At }

// NewSerializer 返回注册了 Counter 的序列化器
func NewSerializer() *serializer.Registry {
	r := serializer.NewRegistry()
	r.MustRegister("snapshottest.counter", (*Counter)(nil))
	return r
}

// RunSnapshotStoreSuite newStore 每次调用都必须返回一个空存储，且使用 NewSerializer
func RunSnapshotStoreSuite(t *testing.T, newStore func(t *testing.T) snapshot.ISnapshotStore) {
	ctx := context.Background()

	t.Run("不存在时返回ErrSnapshotNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, snapshot.ErrSnapshotNotFound)
	})

	t.Run("保存后读取", func(t *testing.T) {
		s := newStore(t)
		c := &Counter{ID: "c-1", Count: 7, Labels: map[string]int{"a": 1}, At: 98}
		require.NoError(t, s.Save(ctx, snapshot.NewSnapshot(c)))

		got, err := s.Load(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, int64(98), got.Playhead)
		restored, ok := got.AggregateRoot.(*Counter)
		require.True(t, ok)
		assert.Equal(t, 7, restored.Count)
		assert.Equal(t, map[string]int{"a": 1}, restored.Labels)
	})

	t.Run("快照与内存实例不共享数据", func(t *testing.T) {
		s := newStore(t)
		c := &Counter{ID: "c-2", Count: 1, Labels: map[string]int{"k": 1}}
		require.NoError(t, s.Save(ctx, snapshot.NewSnapshot(c)))

		c.Count = 100
		c.Labels["k"] = 100

		got, err := s.Load(ctx, "c-2")
		require.NoError(t, err)
		restored := got.AggregateRoot.(*Counter)
		assert.Equal(t, 1, restored.Count)
		assert.Equal(t, 1, restored.Labels["k"])
		assert.NotSame(t, c, restored)

		restored.Count = 5
		again, err := s.Load(ctx, "c-2")
		require.NoError(t, err)
		assert.Equal(t, 1, again.AggregateRoot.(*Counter).Count)
	})

	t.Run("后写覆盖先写", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, snapshot.NewSnapshot(&Counter{ID: "c-3", Count: 1, At: 0})))
		require.NoError(t, s.Save(ctx, snapshot.NewSnapshot(&Counter{ID: "c-3", Count: 2, At: 99})))

		got, err := s.Load(ctx, "c-3")
		require.NoError(t, err)
		assert.Equal(t, int64(99), got.Playhead)
		assert.Equal(t, 2, got.AggregateRoot.(*Counter).Count)
	})

	t.Run("不同聚合互不影响", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, snapshot.NewSnapshot(&Counter{ID: "a", Count: 1})))
		require.NoError(t, s.Save(ctx, snapshot.NewSnapshot(&Counter{ID: "b", Count: 2})))
		got, err := s.Load(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, got.AggregateRoot.(*Counter).Count)
	})

	t.Run("无效输入", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Save(ctx, nil), snapshot.ErrInvalidSnapshot)
		assert.ErrorIs(t, s.Save(ctx, &snapshot.Snapshot{}), snapshot.ErrInvalidSnapshot)

		var convErr *eventing.IdentityConversionError
		assert.ErrorAs(t, s.Save(ctx, snapshot.NewSnapshot(&Counter{ID: ""})), &convErr)
		_, err := s.Load(ctx, 1.5)
		assert.ErrorAs(t, err, &convErr)
	})
}
