package store

import (
	"context"
	"sync"

	"eventcore/eventing"
)

// TraceableEventStore 记录追加事件的装饰器，主要用于测试断言
//
// 只有调用 Trace 之后成功追加的消息才会被记录。读取操作直接委托给内部存储。
type TraceableEventStore struct {
	inner IEventStore

	mu       sync.Mutex
	tracing  bool
	recorded []eventing.DomainMessage
}

func NewTraceableEventStore(inner IEventStore) *TraceableEventStore {
	if inner == nil {
		panic("NewTraceableEventStore: inner IEventStore cannot be nil")
	}
	return &TraceableEventStore{inner: inner}
}

func (s *TraceableEventStore) Append(ctx context.Context, id any, stream eventing.DomainEventStream) error {
	if err := s.inner.Append(ctx, id, stream); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracing {
		s.recorded = append(s.recorded, stream.Messages()...)
	}
	return nil
}

func (s *TraceableEventStore) Load(ctx context.Context, id any) (eventing.DomainEventStream, error) {
	return s.inner.Load(ctx, id)
}

func (s *TraceableEventStore) LoadFromPlayhead(ctx context.Context, id any, playhead int64) (eventing.DomainEventStream, error) {
	return s.inner.LoadFromPlayhead(ctx, id, playhead)
}

// Trace 开始记录
func (s *TraceableEventStore) Trace() {
	s.mu.Lock()
	s.tracing = true
	s.mu.Unlock()
}

// StopTrace 停止记录，已记录的消息保留
func (s *TraceableEventStore) StopTrace() {
	s.mu.Lock()
	s.tracing = false
	s.mu.Unlock()
}

// Events 已记录消息的载荷
func (s *TraceableEventStore) Events() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.recorded))
	for i, m := range s.recorded {
		out[i] = m.Payload()
	}
	return out
}

// Messages 已记录的消息
func (s *TraceableEventStore) Messages() []eventing.DomainMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]eventing.DomainMessage, len(s.recorded))
	copy(out, s.recorded)
	return out
}

// ClearEvents 清空已记录的消息
func (s *TraceableEventStore) ClearEvents() {
	s.mu.Lock()
	s.recorded = nil
	s.mu.Unlock()
}

var _ IEventStore = (*TraceableEventStore)(nil)
