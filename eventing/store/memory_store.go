package store

import (
	"context"
	"sync"

	"eventcore/eventing"
	"eventcore/logging"
)

type memoryRecord struct {
	key string
	msg eventing.DomainMessage
}

// MemoryEventStore 内存事件存储，用于测试与示例
//
// 所有追加在同一把锁下校验并写入，因此并发追加冲突时至少有一个失败。
type MemoryEventStore struct {
	mu      sync.RWMutex
	streams map[string][]eventing.DomainMessage
	// log 按追加顺序记录所有事件，供 VisitEvents 使用
	log    []memoryRecord
	logger logging.Logger
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		streams: make(map[string][]eventing.DomainMessage),
		logger:  logging.ComponentLogger("eventstore.memory"),
	}
}

func (m *MemoryEventStore) Append(ctx context.Context, id any, stream eventing.DomainEventStream) error {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return err
	}
	if stream.IsEmpty() {
		return nil
	}
	messages := stream.Messages()

	m.mu.Lock()
	defer m.mu.Unlock()

	current := int64(-1)
	if existing := m.streams[key]; len(existing) > 0 {
		current = existing[len(existing)-1].Playhead()
	}
	if err := CheckSequence(key, current, messages); err != nil {
		m.logger.Debug(ctx, "拒绝追加事件", logging.String("aggregate_id", key), logging.Error(err))
		return err
	}

	m.streams[key] = append(m.streams[key], messages...)
	for _, msg := range messages {
		m.log = append(m.log, memoryRecord{key: key, msg: msg})
	}
	m.logger.Debug(ctx, "追加事件",
		logging.String("aggregate_id", key),
		logging.Int("count", len(messages)),
		logging.Int64("playhead", messages[len(messages)-1].Playhead()))
	return nil
}

func (m *MemoryEventStore) Load(ctx context.Context, id any) (eventing.DomainEventStream, error) {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return eventing.DomainEventStream{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := m.streams[key]
	if len(messages) == 0 {
		return eventing.DomainEventStream{}, eventing.NewStreamNotFoundError(key)
	}
	return eventing.NewDomainEventStream(messages...), nil
}

func (m *MemoryEventStore) LoadFromPlayhead(ctx context.Context, id any, playhead int64) (eventing.DomainEventStream, error) {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return eventing.DomainEventStream{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]eventing.DomainMessage, 0)
	for _, msg := range m.streams[key] {
		if msg.Playhead() >= playhead {
			out = append(out, msg)
		}
	}
	return eventing.NewDomainEventStream(out...), nil
}

// VisitEvents 实现 IEventStoreManagement
func (m *MemoryEventStore) VisitEvents(ctx context.Context, criteria *Criteria, visitor IEventVisitor) error {
	matcher, err := criteria.Compile()
	if err != nil {
		return err
	}

	// 先复制再回调，visitor 内可以安全地访问存储
	m.mu.RLock()
	records := make([]memoryRecord, len(m.log))
	copy(records, m.log)
	m.mu.RUnlock()

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !matcher.Match(r.key, r.msg.Type()) {
			continue
		}
		if err := visitor.DoWithEvent(ctx, r.msg); err != nil {
			return err
		}
	}
	return nil
}

// Len 已保存的事件总数
func (m *MemoryEventStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.log)
}

var (
	_ IEventStore           = (*MemoryEventStore)(nil)
	_ IEventStoreManagement = (*MemoryEventStore)(nil)
)
