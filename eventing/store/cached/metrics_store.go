package cached

import (
	"context"
	"errors"
	"time"

	"eventcore/eventing"
	"eventcore/eventing/monitoring"
	"eventcore/eventing/store"
)

// MetricsEventStore 为任意事件存储记录追加、加载与冲突指标
type MetricsEventStore struct {
	inner   store.IEventStore
	metrics *monitoring.Metrics
}

// NewMetricsEventStore metrics 为 nil 时使用全局指标
func NewMetricsEventStore(inner store.IEventStore, metrics *monitoring.Metrics) *MetricsEventStore {
	if inner == nil {
		panic("NewMetricsEventStore: inner IEventStore cannot be nil")
	}
	if metrics == nil {
		metrics = monitoring.GlobalMetrics()
	}
	return &MetricsEventStore{inner: inner, metrics: metrics}
}

func (s *MetricsEventStore) Append(ctx context.Context, id any, stream eventing.DomainEventStream) error {
	start := time.Now()
	err := s.inner.Append(ctx, id, stream)
	s.record(err)
	if err == nil {
		s.metrics.RecordAppend(stream.Len(), time.Since(start))
	}
	return err
}

func (s *MetricsEventStore) Load(ctx context.Context, id any) (eventing.DomainEventStream, error) {
	start := time.Now()
	stream, err := s.inner.Load(ctx, id)
	if err != nil && !errors.Is(err, eventing.ErrStreamNotFound) {
		s.record(err)
	}
	s.metrics.RecordLoad(stream.Len(), time.Since(start))
	return stream, err
}

func (s *MetricsEventStore) LoadFromPlayhead(ctx context.Context, id any, playhead int64) (eventing.DomainEventStream, error) {
	start := time.Now()
	stream, err := s.inner.LoadFromPlayhead(ctx, id, playhead)
	s.record(err)
	s.metrics.RecordLoad(stream.Len(), time.Since(start))
	return stream, err
}

func (s *MetricsEventStore) record(err error) {
	switch {
	case err == nil:
	case errors.Is(err, eventing.ErrDuplicatePlayhead):
		s.metrics.RecordDuplicate()
	default:
		s.metrics.RecordStoreError()
	}
}

var _ store.IEventStore = (*MetricsEventStore)(nil)
