package eventsourced_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcore/domain/eventsourced"
	"eventcore/eventing"
	"eventcore/eventing/monitoring"
	"eventcore/eventing/store"
	"eventcore/eventing/store/snapshot"
)

type snapshotFixture struct {
	events    *spyStore
	snapshots *spySnapshots
	base      *eventsourced.EventSourcedRepository[*bankAccount]
	repo      *eventsourced.SnapshottingRepository[*bankAccount]
	metrics   *monitoring.Metrics
}

func newSnapshotFixture(t *testing.T, opts ...eventsourced.SnapshottingOption) *snapshotFixture {
	t.Helper()
	f := &snapshotFixture{
		events:    newSpyStore(),
		snapshots: newSpySnapshots(newRegistry()),
		metrics:   monitoring.NewMetrics(),
	}
	f.base = newRepository(t, f.events)
	opts = append([]eventsourced.SnapshottingOption{eventsourced.WithSnapshotMetrics(f.metrics)}, opts...)
	repo, err := eventsourced.NewSnapshottingRepository(f.base, f.snapshots, opts...)
	require.NoError(t, err)
	f.repo = repo
	return f
}

// depositUntil 逐次保存存款，直到聚合 playhead 到达 target
func depositUntil(t *testing.T, repo eventsourced.IEventSourcedRepository[*bankAccount], a *bankAccount, target int64) {
	t.Helper()
	for a.Playhead() < target {
		require.NoError(t, a.Deposit(1))
		require.NoError(t, repo.Save(context.Background(), a))
	}
}

func TestNewSnapshottingRepository_Validation(t *testing.T) {
	_, err := eventsourced.NewSnapshottingRepository[*bankAccount](nil, snapshot.NewMemoryStore(newRegistry()))
	assert.Error(t, err)
	base := newRepository(t, store.NewMemoryEventStore())
	_, err = eventsourced.NewSnapshottingRepository(base, nil)
	assert.Error(t, err)
}

func TestSnapshottingRepository_SnapshotAtInterval(t *testing.T) {
	ctx := context.Background()
	f := newSnapshotFixture(t)

	a := newBankAccount()
	require.NoError(t, a.Open("acc-1", "alice"))
	require.NoError(t, f.repo.Save(ctx, a))
	// playhead 0 是 99 的倍数
	assert.Equal(t, []int64{0}, f.snapshots.savedPlayheads())

	depositUntil(t, f.repo, a, 98)
	assert.Equal(t, []int64{0}, f.snapshots.savedPlayheads())

	depositUntil(t, f.repo, a, 99)
	assert.Equal(t, []int64{0, 99}, f.snapshots.savedPlayheads())

	depositUntil(t, f.repo, a, 102)
	assert.Equal(t, []int64{0, 99}, f.snapshots.savedPlayheads())
	assert.Equal(t, int64(2), f.metrics.Snapshot().SnapshotsSaved)

	loaded, err := f.repo.Load(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(102), loaded.Playhead())
	assert.Equal(t, 102, loaded.Balance)
	assert.Len(t, loaded.History, 102)

	// 只重放快照之后的事件，且未做完整加载
	assert.Equal(t, []int64{100}, f.events.tails)
	assert.Zero(t, f.events.loads)
	assert.Equal(t, int64(1), f.metrics.Snapshot().SnapshotHits)
}

func TestSnapshottingRepository_BatchSpanningMultiplesSnapshotsOnce(t *testing.T) {
	ctx := context.Background()
	f := newSnapshotFixture(t, eventsourced.WithSnapshotInterval(3))

	a := newBankAccount()
	require.NoError(t, a.Open("acc-1", "alice"))
	for i := 0; i < 7; i++ {
		require.NoError(t, a.Deposit(1))
	}
	// playhead 0..7 覆盖 0、3、6 三个倍数
	require.NoError(t, f.repo.Save(ctx, a))
	assert.Equal(t, []int64{7}, f.snapshots.savedPlayheads())

	loaded, err := f.repo.Load(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), loaded.Playhead())
	assert.Equal(t, 7, loaded.Balance)
	assert.Equal(t, []int64{8}, f.events.tails)
}

func TestSnapshottingRepository_FallbackMatchesPlainRepository(t *testing.T) {
	ctx := context.Background()
	f := newSnapshotFixture(t)

	// 通过普通仓储写入历史，因此没有快照
	a := newBankAccount()
	require.NoError(t, a.Open("Y", "yolanda"))
	require.NoError(t, f.base.Save(ctx, a))
	depositUntil(t, f.base, a, 20)
	require.NoError(t, a.Withdraw(4))
	require.NoError(t, f.base.Save(ctx, a))

	plain, err := f.base.Load(ctx, "Y")
	require.NoError(t, err)
	viaSnapshot, err := f.repo.Load(ctx, "Y")
	require.NoError(t, err)

	assert.Equal(t, plain.Playhead(), viaSnapshot.Playhead())
	assert.Equal(t, plain.Balance, viaSnapshot.Balance)
	assert.Equal(t, plain.History, viaSnapshot.History)
	assert.Equal(t, plain.Owner, viaSnapshot.Owner)
	assert.Empty(t, f.events.tails)
	assert.Equal(t, int64(1), f.metrics.Snapshot().SnapshotMisses)
}

func TestSnapshottingRepository_LoadNotFound(t *testing.T) {
	f := newSnapshotFixture(t)
	_, err := f.repo.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, eventsourced.ErrAggregateNotFound)
}

func TestSnapshottingRepository_SnapshotLoadErrorSurfaces(t *testing.T) {
	f := newSnapshotFixture(t)
	f.snapshots.loadErr = errors.New("redis down")
	_, err := f.repo.Load(context.Background(), "acc-1")
	assert.EqualError(t, err, "redis down")
	assert.Zero(t, f.events.calls())
}

func TestSnapshottingRepository_SnapshotSaveErrorAfterCommit(t *testing.T) {
	ctx := context.Background()
	f := newSnapshotFixture(t)
	f.snapshots.saveErr = errors.New("bucket unavailable")

	a := newBankAccount()
	require.NoError(t, a.Open("acc-1", "alice"))
	err := f.repo.Save(ctx, a)
	assert.ErrorContains(t, err, "bucket unavailable")

	// 事件已提交
	assert.True(t, a.UncommittedEvents().IsEmpty())
	loaded, err := f.base.Load(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.Owner)
}

func TestSnapshottingRepository_SnapshotIsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	f := newSnapshotFixture(t, eventsourced.WithSnapshotInterval(1))

	a := newBankAccount()
	require.NoError(t, a.Open("acc-1", "alice"))
	require.NoError(t, a.Deposit(5))
	require.NoError(t, f.repo.Save(ctx, a))

	// 保存后继续修改内存实例，不影响已保存的快照
	a.History[0] = 1000
	a.Balance = -1

	first, err := f.repo.Load(ctx, "acc-1")
	require.NoError(t, err)
	second, err := f.repo.Load(ctx, "acc-1")
	require.NoError(t, err)

	assert.Equal(t, []int{5}, first.History)
	assert.NotSame(t, first, second)
	require.NoError(t, first.Deposit(1))
	assert.True(t, second.UncommittedEvents().IsEmpty())
	assert.Equal(t, int64(2), first.Playhead())
	assert.Equal(t, int64(1), second.Playhead())
}

func TestSnapshottingRepository_CustomStrategy(t *testing.T) {
	ctx := context.Background()
	var inspected []int64
	f := newSnapshotFixture(t, eventsourced.WithSnapshotStrategy(snapshot.StrategyFunc(func(c eventing.DomainEventStream) bool {
		inspected = append(inspected, c.Playheads()...)
		return false
	})))

	a := newBankAccount()
	require.NoError(t, a.Open("acc-1", "alice"))
	require.NoError(t, a.Deposit(1))
	require.NoError(t, f.repo.Save(ctx, a))

	assert.Equal(t, []int64{0, 1}, inspected)
	assert.Empty(t, f.snapshots.savedPlayheads())
}

func TestSnapshottingRepository_EmptySaveSkipsStrategy(t *testing.T) {
	f := newSnapshotFixture(t, eventsourced.WithSnapshotStrategy(snapshot.StrategyFunc(func(eventing.DomainEventStream) bool {
		t.Fatal("strategy must not run without committed events")
		return false
	})))
	a := newBankAccount()
	a.ID = "acc-1"
	require.NoError(t, f.repo.Save(context.Background(), a))
}

func TestSnapshottingRepository_FailedAppendTakesNoSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newSnapshotFixture(t)
	f.events.appendErr = errors.New("conflict")

	a := newBankAccount()
	require.NoError(t, a.Open("acc-1", "alice"))
	assert.Error(t, f.repo.Save(ctx, a))
	assert.Empty(t, f.snapshots.savedPlayheads())
	assert.Equal(t, 1, a.UncommittedEvents().Len())
}

func TestSnapshottingRepository_SkipsSnapshotWhenAggregateMovedDuringSave(t *testing.T) {
	ctx := context.Background()
	a := newBankAccount()
	// 策略回调发生在提交之后，在此记录事件等价于保存期间的并发写入
	f := newSnapshotFixture(t, eventsourced.WithSnapshotStrategy(snapshot.StrategyFunc(
		func(eventing.DomainEventStream) bool {
			require.NoError(t, a.Deposit(1))
			return true
		})))

	require.NoError(t, a.Open("acc-9", "carol"))
	require.NoError(t, f.repo.Save(ctx, a))
	assert.Empty(t, f.snapshots.savedPlayheads())
	assert.Equal(t, []int64{1}, a.UncommittedEvents().Playheads())
	assert.Equal(t, int64(0), f.metrics.Snapshot().SnapshotsSaved)

	loaded, err := f.repo.Load(ctx, "acc-9")
	require.NoError(t, err)
	assert.Equal(t, int64(0), loaded.Playhead())
}

func TestSnapshottingRepository_SnapshotPlayheadIsLastCommitted(t *testing.T) {
	ctx := context.Background()
	f := newSnapshotFixture(t, eventsourced.WithSnapshotStrategy(snapshot.StrategyFunc(
		func(eventing.DomainEventStream) bool { return true })))

	a := newBankAccount()
	require.NoError(t, a.Open("acc-10", "dave"))
	require.NoError(t, a.Deposit(5))
	require.NoError(t, a.Deposit(7))
	require.NoError(t, f.repo.Save(ctx, a))
	assert.Equal(t, []int64{2}, f.snapshots.savedPlayheads())
}
