// Package storetest 提供所有 IEventStore 实现共用的验收测试
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcore/eventing"
	"eventcore/eventing/serializer"
	"eventcore/eventing/store"
)

// Started 测试事件
type Started struct {
	Name string `json:"name"`
}

func (Started) EventType() string { return "storetest.started" }

// Moved 测试事件
type Moved struct {
	Step int `json:"step"`
}

func (Moved) EventType() string { return "storetest.moved" }

// RegisterPayloads 注册测试事件，需要序列化载荷的存储在构造前调用
func RegisterPayloads(r *serializer.Registry) error {
	return r.RegisterPayloads(Started{}, Moved{})
}

var recordedOn = time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)

// Message 构造测试消息，playhead 0 为 Started，其余为 Moved
func Message(id any, playhead int64) eventing.DomainMessage {
	var payload any = Moved{Step: int(playhead)}
	if playhead == 0 {
		payload = Started{Name: "start"}
	}
	meta := eventing.NewMetadata(
		eventing.MetadataEntry{Key: "source", Value: "storetest"},
		eventing.MetadataEntry{Key: "actor", Value: "tester"},
		eventing.MetadataEntry{Key: "attempt", Value: int(playhead) + 1},
		eventing.MetadataEntry{Key: "weight", Value: 0.5},
	)
	return eventing.NewDomainMessage(id, playhead, meta, payload, recordedOn.Add(time.Duration(playhead)*time.Second))
}

// Stream 构造 playhead 区间 [from, to] 的事件流
func Stream(id any, from, to int64) eventing.DomainEventStream {
	msgs := make([]eventing.DomainMessage, 0, to-from+1)
	for p := from; p <= to; p++ {
		msgs = append(msgs, Message(id, p))
	}
	return eventing.NewDomainEventStream(msgs...)
}

// AssertSameMessages 按 playhead、载荷、元数据与记录时间比较两组消息
func AssertSameMessages(t *testing.T, want, got eventing.DomainEventStream) {
	t.Helper()
	require.Equal(t, want.Len(), got.Len(), "消息数量不一致")
	for i := 0; i < want.Len(); i++ {
		w, g := want.At(i), got.At(i)
		assert.Equal(t, eventing.MustIdentityString(w.ID()), eventing.MustIdentityString(g.ID()))
		assert.Equal(t, w.Playhead(), g.Playhead())
		assert.Equal(t, w.Payload(), g.Payload())
		assert.Equal(t, w.Metadata().Keys(), g.Metadata().Keys())
		assert.Equal(t, w.Metadata().ToMap(), g.Metadata().ToMap())
		assert.True(t, w.RecordedOn().Equal(g.RecordedOn()), "recordedOn %v != %v", w.RecordedOn(), g.RecordedOn())
	}
}

// RunEventStoreSuite 对 newStore 返回的存储执行验收测试
//
// newStore 每次调用都必须返回一个空存储。
func RunEventStoreSuite(t *testing.T, newStore func(t *testing.T) store.IEventStore) {
	ctx := context.Background()

	t.Run("追加后完整加载", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []any{"X", 42, uuid.MustParse("9b2f7d1c-3e4a-4b5c-8d6e-7f8091a2b3c4")} {
			want := Stream(id, 0, 3)
			require.NoError(t, s.Append(ctx, id, want))
			got, err := s.Load(ctx, id)
			require.NoError(t, err)
			AssertSameMessages(t, want, got)
		}
	})

	t.Run("分批追加保持顺序", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "X", Stream("X", 0, 1)))
		require.NoError(t, s.Append(ctx, "X", Stream("X", 2, 3)))
		got, err := s.Load(ctx, "X")
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1, 2, 3}, got.Playheads())
	})

	t.Run("从playhead加载包含边界", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "X", Stream("X", 0, 3)))

		got, err := s.LoadFromPlayhead(ctx, "X", 2)
		require.NoError(t, err)
		AssertSameMessages(t, Stream("X", 2, 3), got)

		again, err := s.LoadFromPlayhead(ctx, "X", 2)
		require.NoError(t, err)
		AssertSameMessages(t, got, again)

		all, err := s.LoadFromPlayhead(ctx, "X", 0)
		require.NoError(t, err)
		assert.Equal(t, 4, all.Len())

		beyond, err := s.LoadFromPlayhead(ctx, "X", 10)
		require.NoError(t, err)
		assert.True(t, beyond.IsEmpty())
	})

	t.Run("加载不存在的聚合", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, eventing.ErrStreamNotFound)

		got, err := s.LoadFromPlayhead(ctx, "missing", 0)
		require.NoError(t, err)
		assert.True(t, got.IsEmpty())
	})

	t.Run("不同聚合互不影响", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "X", Stream("X", 0, 2)))
		require.NoError(t, s.Append(ctx, "Y", Stream("Y", 0, 0)))

		y, err := s.Load(ctx, "Y")
		require.NoError(t, err)
		assert.Equal(t, []int64{0}, y.Playheads())

		x, err := s.LoadFromPlayhead(ctx, "X", 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, x.Playheads())
	})

	t.Run("重复playhead被拒绝且原记录保留", func(t *testing.T) {
		s := newStore(t)
		first := Stream("X", 0, 0)
		require.NoError(t, s.Append(ctx, "X", first))

		err := s.Append(ctx, "X", eventing.NewDomainEventStream(
			eventing.NewDomainMessage("X", 0, eventing.Metadata{}, Moved{Step: 99}, recordedOn)))
		var dup *eventing.DuplicatePlayheadError
		require.ErrorAs(t, err, &dup)
		assert.ErrorIs(t, err, eventing.ErrDuplicatePlayhead)
		assert.Equal(t, int64(0), dup.Playhead)

		got, err := s.Load(ctx, "X")
		require.NoError(t, err)
		AssertSameMessages(t, first, got)
	})

	t.Run("批内重复整批失败", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "X", Stream("X", 0, 0)))

		batch := eventing.NewDomainEventStream(Message("X", 1), Message("X", 1))
		assert.ErrorIs(t, s.Append(ctx, "X", batch), eventing.ErrDuplicatePlayhead)

		got, err := s.Load(ctx, "X")
		require.NoError(t, err)
		assert.Equal(t, []int64{0}, got.Playheads())
	})

	t.Run("playhead不连续被拒绝", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "X", Stream("X", 0, 1)))
		assert.ErrorIs(t, s.Append(ctx, "X", Stream("X", 3, 3)), eventing.ErrDuplicatePlayhead)
	})

	t.Run("新聚合可从任意playhead开始", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "Z", Stream("Z", 5, 6)))
		got, err := s.Load(ctx, "Z")
		require.NoError(t, err)
		assert.Equal(t, []int64{5, 6}, got.Playheads())
	})

	t.Run("空流追加无副作用", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "X", eventing.NewDomainEventStream()))
		_, err := s.Load(ctx, "X")
		assert.ErrorIs(t, err, eventing.ErrStreamNotFound)
	})

	t.Run("无效标识在访问存储前失败", func(t *testing.T) {
		s := newStore(t)
		bad := 3.5
		var convErr *eventing.IdentityConversionError

		assert.ErrorAs(t, s.Append(ctx, bad, eventing.NewDomainEventStream()), &convErr)
		assert.ErrorAs(t, s.Append(ctx, bad, Stream(bad, 0, 0)), &convErr)
		_, err := s.Load(ctx, bad)
		assert.ErrorAs(t, err, &convErr)
		_, err = s.LoadFromPlayhead(ctx, struct{}{}, 0)
		assert.ErrorAs(t, err, &convErr)
	})

	t.Run("并发追加至少一个失败", func(t *testing.T) {
		s := newStore(t)
		const writers = 4
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			failures  int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Append(ctx, "race", Stream("race", 0, 1))
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
					return
				}
				if errors.Is(err, eventing.ErrDuplicatePlayhead) {
					failures++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, writers-1, failures)
		got, err := s.Load(ctx, "race")
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1}, got.Playheads())
	})
}

// ManagedStore 同时支持管理接口的存储
type ManagedStore interface {
	store.IEventStore
	store.IEventStoreManagement
}

// RunManagementSuite 验证 VisitEvents 的过滤与顺序
func RunManagementSuite(t *testing.T, newStore func(t *testing.T) ManagedStore) {
	ctx := context.Background()

	setup := func(t *testing.T) ManagedStore {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "A", Stream("A", 0, 1)))
		require.NoError(t, s.Append(ctx, "B", Stream("B", 0, 2)))
		require.NoError(t, s.Append(ctx, "A", Stream("A", 2, 2)))
		return s
	}

	collect := func(t *testing.T, s ManagedStore, c *store.Criteria) []string {
		var seen []string
		err := s.VisitEvents(ctx, c, store.EventVisitorFunc(func(_ context.Context, m eventing.DomainMessage) error {
			seen = append(seen, eventing.MustIdentityString(m.ID())+":"+m.Type())
			return nil
		}))
		require.NoError(t, err)
		return seen
	}

	t.Run("遍历全部事件保持追加顺序", func(t *testing.T) {
		s := setup(t)
		assert.Equal(t, []string{
			"A:storetest.started", "A:storetest.moved",
			"B:storetest.started", "B:storetest.moved", "B:storetest.moved",
			"A:storetest.moved",
		}, collect(t, s, nil))
		assert.Len(t, collect(t, s, store.NewCriteria()), 6)
	})

	t.Run("按聚合标识过滤", func(t *testing.T) {
		s := setup(t)
		got := collect(t, s, store.NewCriteria().WithAggregateRootIDs("B"))
		assert.Equal(t, []string{"B:storetest.started", "B:storetest.moved", "B:storetest.moved"}, got)
	})

	t.Run("按事件类型过滤", func(t *testing.T) {
		s := setup(t)
		got := collect(t, s, store.NewCriteria().WithEventTypes("storetest.started"))
		assert.Equal(t, []string{"A:storetest.started", "B:storetest.started"}, got)
	})

	t.Run("组合条件为AND", func(t *testing.T) {
		s := setup(t)
		got := collect(t, s, store.NewCriteria().
			WithAggregateRootIDs("A", "C").
			WithEventTypes("storetest.moved"))
		assert.Equal(t, []string{"A:storetest.moved", "A:storetest.moved"}, got)
	})

	t.Run("按聚合类型过滤不受支持", func(t *testing.T) {
		s := setup(t)
		err := s.VisitEvents(ctx, store.NewCriteria().WithAggregateRootTypes("Account"),
			store.EventVisitorFunc(func(context.Context, eventing.DomainMessage) error { return nil }))
		assert.ErrorIs(t, err, store.ErrCriteriaNotSupported)
	})

	t.Run("访问者出错时停止", func(t *testing.T) {
		s := setup(t)
		stop := errors.New("stop")
		calls := 0
		err := s.VisitEvents(ctx, nil, store.EventVisitorFunc(func(context.Context, eventing.DomainMessage) error {
			calls++
			if calls == 2 {
				return stop
			}
			return nil
		}))
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 2, calls)
	})
}
