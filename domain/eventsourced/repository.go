package eventsourced

import (
	"context"
	"errors"
	"fmt"

	"eventcore/eventing"
	"eventcore/eventing/store"
	"eventcore/logging"
)

// AggregateFactory 创建一个空聚合实例，用于重放前
type AggregateFactory[T IEventSourcedAggregate] func() T

// IEventSourcedRepository 事件溯源仓储接口
type IEventSourcedRepository[T IEventSourcedAggregate] interface {
	// Load 重放事件重建聚合，不存在时返回 *AggregateNotFoundError
	Load(ctx context.Context, id any) (T, error)
	// Save 追加未提交事件，成功后清空缓冲
	Save(ctx context.Context, aggregate T) error
}

// RepositoryOption 仓储选项
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	decorators []IEventStreamDecorator
	logger     logging.Logger
}

// WithEventStreamDecorators 追加保存前的事件流装饰器，按参数顺序执行
func WithEventStreamDecorators(decorators ...IEventStreamDecorator) RepositoryOption {
	return func(o *repositoryOptions) {
		for _, d := range decorators {
			if d != nil {
				o.decorators = append(o.decorators, d)
			}
		}
	}
}

// WithLogger 自定义日志器
func WithLogger(logger logging.Logger) RepositoryOption {
	return func(o *repositoryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// EventSourcedRepository 通过完整重放事件流加载聚合
//
// 每次 Load 都返回新实例，仓储自身不缓存聚合。
type EventSourcedRepository[T IEventSourcedAggregate] struct {
	store      store.IEventStore
	factory    AggregateFactory[T]
	decorators []IEventStreamDecorator
	logger     logging.Logger
}

// NewEventSourcedRepository 创建事件溯源仓储
func NewEventSourcedRepository[T IEventSourcedAggregate](
	eventStore store.IEventStore,
	factory AggregateFactory[T],
	opts ...RepositoryOption,
) (*EventSourcedRepository[T], error) {
	if eventStore == nil {
		return nil, fmt.Errorf("event store cannot be nil")
	}
	if factory == nil {
		return nil, fmt.Errorf("aggregate factory cannot be nil")
	}
	o := repositoryOptions{logger: logging.ComponentLogger("eventsourced.repository")}
	for _, opt := range opts {
		opt(&o)
	}
	return &EventSourcedRepository[T]{
		store:      eventStore,
		factory:    factory,
		decorators: o.decorators,
		logger:     o.logger,
	}, nil
}

func (r *EventSourcedRepository[T]) Load(ctx context.Context, id any) (T, error) {
	var zero T
	key, err := eventing.IdentityString(id)
	if err != nil {
		return zero, err
	}

	stream, err := r.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, eventing.ErrStreamNotFound) {
			return zero, &AggregateNotFoundError{AggregateID: key, Cause: err}
		}
		return zero, err
	}

	agg := r.factory()
	if err := Replay(agg, stream); err != nil {
		return zero, fmt.Errorf("load aggregate %s: %w", key, err)
	}
	return agg, nil
}

func (r *EventSourcedRepository[T]) Save(ctx context.Context, aggregate T) error {
	_, err := r.save(ctx, aggregate)
	return err
}

// save 返回实际追加的事件流，供快照仓储判断是否需要快照
func (r *EventSourcedRepository[T]) save(ctx context.Context, aggregate T) (eventing.DomainEventStream, error) {
	key, err := eventing.IdentityString(aggregate.AggregateRootID())
	if err != nil {
		return eventing.DomainEventStream{}, err
	}

	pending := aggregate.UncommittedEvents()
	if pending.IsEmpty() {
		return eventing.DomainEventStream{}, nil
	}

	stream := pending
	for _, d := range r.decorators {
		stream = d.DecorateForWrite(ctx, key, stream)
	}

	if err := r.store.Append(ctx, aggregate.AggregateRootID(), stream); err != nil {
		r.logger.Warn(ctx, "保存聚合失败",
			logging.String("aggregate_id", key),
			logging.Int("count", stream.Len()),
			logging.Error(err))
		return eventing.DomainEventStream{}, err
	}

	aggregate.root().commit(pending.Len())
	r.logger.Debug(ctx, "保存聚合",
		logging.String("aggregate_id", key),
		logging.Int("count", stream.Len()),
		logging.Int64("playhead", aggregate.Playhead()))
	return pending, nil
}

var _ IEventSourcedRepository[IEventSourcedAggregate] = (*EventSourcedRepository[IEventSourcedAggregate])(nil)
