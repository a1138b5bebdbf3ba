package snapshot

import (
	"context"
	"sync"

	"eventcore/eventing"
	"eventcore/eventing/serializer"
	"eventcore/logging"
)

// MemoryStore 内存快照存储
//
// 保存编码后的字节，每次 Load 都得到新的聚合实例。
type MemoryStore struct {
	serializer serializer.ISerializer
	mutex      sync.RWMutex
	snapshots  map[string][]byte
}

// NewMemoryStore 创建内存快照存储
func NewMemoryStore(ser serializer.ISerializer) *MemoryStore {
	if ser == nil {
		panic("NewMemoryStore: serializer cannot be nil")
	}
	return &MemoryStore{serializer: ser, snapshots: make(map[string][]byte)}
}

func (s *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
	key, data, err := Encode(s.serializer, snap)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	s.snapshots[key] = data
	s.mutex.Unlock()
	snapshotLogger().Debug(ctx, "[MemorySnapshotStore] 保存快照",
		logging.String("aggregate_id", key),
		logging.Int64("playhead", snap.Playhead))
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id any) (*Snapshot, error) {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return nil, err
	}
	s.mutex.RLock()
	data, ok := s.snapshots[key]
	s.mutex.RUnlock()
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return Decode(s.serializer, data)
}

// Len 快照数量
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.snapshots)
}

var _ ISnapshotStore = (*MemoryStore)(nil)
