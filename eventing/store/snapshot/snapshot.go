// Package snapshot 聚合快照与快照存储
//
// 快照只是重建聚合的性能优化，事件存储始终是事实来源。
// 每个聚合只保留最新一份快照，后写覆盖先写。
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eventcore/eventing"
	"eventcore/eventing/serializer"
	"eventcore/logging"
)

func snapshotLogger() logging.Logger {
	return logging.ComponentLogger("eventstore.snapshot")
}

var (
	// ErrSnapshotNotFound 该聚合没有快照
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrInvalidSnapshot 快照或其聚合为空
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// ISnapshotAggregate 快照所需的最小聚合接口，避免依赖 domain 层
type ISnapshotAggregate interface {
	AggregateRootID() any
	Playhead() int64
}

// Snapshot 某一 playhead 时刻的聚合状态
//
// 从存储读出的 AggregateRoot 是新构造的实例，其内部 playhead 由仓储按 Playhead 恢复。
type Snapshot struct {
	Playhead      int64
	AggregateRoot ISnapshotAggregate
}

// NewSnapshot 以聚合当前 playhead 创建快照
func NewSnapshot(aggregate ISnapshotAggregate) *Snapshot {
	return &Snapshot{Playhead: aggregate.Playhead(), AggregateRoot: aggregate}
}

// ISnapshotStore 快照存储接口
type ISnapshotStore interface {
	// Load 读取最新快照，不存在时返回 ErrSnapshotNotFound
	Load(ctx context.Context, id any) (*Snapshot, error)
	// Save 保存快照，同一聚合后写覆盖先写
	Save(ctx context.Context, snapshot *Snapshot) error
}

// record 快照的持久化形式，所有存储实现共用
type record struct {
	AggregateID string                `json:"aggregate_id"`
	Playhead    int64                 `json:"playhead"`
	Aggregate   serializer.Serialized `json:"aggregate"`
	TakenOn     time.Time             `json:"taken_on"`
}

// Encode 将快照编码为 JSON，返回聚合的规范标识
//
// 聚合状态经 serializer 序列化，因此存储中的副本与内存实例不共享任何数据。
func Encode(ser serializer.ISerializer, snap *Snapshot) (string, []byte, error) {
	if snap == nil || snap.AggregateRoot == nil {
		return "", nil, ErrInvalidSnapshot
	}
	key, err := eventing.IdentityString(snap.AggregateRoot.AggregateRootID())
	if err != nil {
		return "", nil, err
	}
	state, err := ser.Serialize(snap.AggregateRoot)
	if err != nil {
		return "", nil, fmt.Errorf("serialize snapshot of %s: %w", key, err)
	}
	data, err := json.Marshal(record{
		AggregateID: key,
		Playhead:    snap.Playhead,
		Aggregate:   state,
		TakenOn:     time.Now().UTC(),
	})
	if err != nil {
		return "", nil, fmt.Errorf("encode snapshot of %s: %w", key, err)
	}
	return key, data, nil
}

// Decode Encode 的逆操作
func Decode(ser serializer.ISerializer, data []byte) (*Snapshot, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	v, err := ser.Deserialize(r.Aggregate)
	if err != nil {
		return nil, fmt.Errorf("deserialize snapshot of %s: %w", r.AggregateID, err)
	}
	agg, ok := v.(ISnapshotAggregate)
	if !ok {
		return nil, fmt.Errorf("snapshot of %s: %T does not implement ISnapshotAggregate", r.AggregateID, v)
	}
	return &Snapshot{Playhead: r.Playhead, AggregateRoot: agg}, nil
}
