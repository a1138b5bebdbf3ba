package eventsourced

import (
	"context"
	"errors"
	"fmt"

	"eventcore/eventing"
	"eventcore/eventing/monitoring"
	"eventcore/eventing/store"
	"eventcore/eventing/store/snapshot"
	"eventcore/logging"
)

// DefaultSnapshotInterval 默认每 99 个 playhead 快照一次
const DefaultSnapshotInterval = snapshot.DefaultInterval

type snapshotOptions struct {
	strategy snapshot.Strategy
	metrics  *monitoring.Metrics
	logger   logging.Logger
}

// SnapshottingOption 快照仓储选项
type SnapshottingOption func(*snapshotOptions)

// WithSnapshotInterval 固定间隔策略，n <= 0 时保持 DefaultSnapshotInterval
func WithSnapshotInterval(n int64) SnapshottingOption {
	return func(o *snapshotOptions) {
		o.strategy = snapshot.NewIntervalStrategy(n)
	}
}

// WithSnapshotStrategy 自定义快照策略
func WithSnapshotStrategy(s snapshot.Strategy) SnapshottingOption {
	return func(o *snapshotOptions) {
		if s != nil {
			o.strategy = s
		}
	}
}

// WithSnapshotMetrics 指定指标收集器，默认使用全局指标
func WithSnapshotMetrics(m *monitoring.Metrics) SnapshottingOption {
	return func(o *snapshotOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSnapshotLogger 自定义日志器
func WithSnapshotLogger(l logging.Logger) SnapshottingOption {
	return func(o *snapshotOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// SnapshottingRepository 在事件溯源仓储之上增加快照
//
// 加载时先取快照，再只重放快照之后的事件；没有快照时退回完整重放。
// 保存时事件先提交，若本次提交的事件满足策略，再为提交后的状态写一份快照。
type SnapshottingRepository[T IEventSourcedAggregate] struct {
	base      *EventSourcedRepository[T]
	store     store.IEventStore
	snapshots snapshot.ISnapshotStore
	strategy  snapshot.Strategy
	metrics   *monitoring.Metrics
	logger    logging.Logger
}

// NewSnapshottingRepository base 使用的事件存储同时用于尾部重放
func NewSnapshottingRepository[T IEventSourcedAggregate](
	base *EventSourcedRepository[T],
	snapshots snapshot.ISnapshotStore,
	opts ...SnapshottingOption,
) (*SnapshottingRepository[T], error) {
	if base == nil {
		return nil, fmt.Errorf("base repository cannot be nil")
	}
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot store cannot be nil")
	}
	o := snapshotOptions{
		strategy: snapshot.NewIntervalStrategy(DefaultSnapshotInterval),
		metrics:  monitoring.GlobalMetrics(),
		logger:   logging.ComponentLogger("eventsourced.snapshotting"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &SnapshottingRepository[T]{
		base:      base,
		store:     base.store,
		snapshots: snapshots,
		strategy:  o.strategy,
		metrics:   o.metrics,
		logger:    o.logger,
	}, nil
}

func (r *SnapshottingRepository[T]) Load(ctx context.Context, id any) (T, error) {
	var zero T
	key, err := eventing.IdentityString(id)
	if err != nil {
		return zero, err
	}

	snap, err := r.snapshots.Load(ctx, key)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			r.metrics.RecordSnapshotLoaded(false)
			return r.base.Load(ctx, key)
		}
		return zero, err
	}
	r.metrics.RecordSnapshotLoaded(true)

	agg, ok := snap.AggregateRoot.(T)
	if !ok {
		return zero, fmt.Errorf("%w: snapshot of %s holds %T", snapshot.ErrInvalidSnapshot, key, snap.AggregateRoot)
	}
	agg.root().setPlayhead(snap.Playhead)

	tail, err := r.store.LoadFromPlayhead(ctx, key, snap.Playhead+1)
	if err != nil {
		return zero, err
	}
	if err := Replay(agg, tail); err != nil {
		return zero, fmt.Errorf("load aggregate %s from snapshot: %w", key, err)
	}
	r.logger.Debug(ctx, "从快照加载聚合",
		logging.String("aggregate_id", key),
		logging.Int64("snapshot_playhead", snap.Playhead),
		logging.Int("replayed", tail.Len()))
	return agg, nil
}

func (r *SnapshottingRepository[T]) Save(ctx context.Context, aggregate T) error {
	committed, err := r.base.save(ctx, aggregate)
	if err != nil || committed.IsEmpty() {
		return err
	}
	if !r.strategy.ShouldSnapshot(committed) {
		return nil
	}

	// 快照的 playhead 必须是本次提交的最后一条，且聚合状态恰好停在该处。
	// 保存期间又记录了事件时状态已超前于存储，跳过本次快照
	last := committed.At(committed.Len() - 1).Playhead()
	if aggregate.Playhead() != last {
		r.logger.Debug(ctx, "聚合在保存期间产生了新事件，跳过快照",
			logging.Any("aggregate_id", aggregate.AggregateRootID()),
			logging.Int64("committed_playhead", last),
			logging.Int64("playhead", aggregate.Playhead()))
		return nil
	}

	snap := &snapshot.Snapshot{Playhead: last, AggregateRoot: aggregate}
	if err := r.snapshots.Save(ctx, snap); err != nil {
		// 事件已提交，快照失败只影响后续加载性能
		r.logger.Warn(ctx, "保存快照失败",
			logging.Any("aggregate_id", aggregate.AggregateRootID()),
			logging.Int64("playhead", snap.Playhead),
			logging.Error(err))
		return fmt.Errorf("save snapshot: %w", err)
	}
	r.metrics.RecordSnapshotSaved()
	r.logger.Debug(ctx, "保存快照",
		logging.Any("aggregate_id", aggregate.AggregateRootID()),
		logging.Int64("playhead", snap.Playhead))
	return nil
}

var _ IEventSourcedRepository[IEventSourcedAggregate] = (*SnapshottingRepository[IEventSourcedAggregate])(nil)
