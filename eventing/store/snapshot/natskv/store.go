// Package natskv 基于 NATS JetStream KV 的快照存储
package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"eventcore/eventing"
	"eventcore/eventing/serializer"
	"eventcore/eventing/store/snapshot"
	"eventcore/logging"
)

// Config NATS KV 快照存储配置
type Config struct {
	// Conn 已有连接；为空时连接 URL 并由 Store 负责关闭
	Conn *nats.Conn
	URL  string
	// Bucket KV 桶名，默认 "snapshots"，不存在时自动创建
	Bucket string
	// Replicas 新建桶的副本数，0 表示服务器默认
	Replicas int
	Logger   logging.Logger
}

// Store 键为 base64url(聚合标识)，桶只保留每个键的最新值
type Store struct {
	kv         nats.KeyValue
	conn       *nats.Conn
	ownsConn   bool
	serializer serializer.ISerializer
	logger     logging.Logger
}

// Open 连接 JetStream 并打开（必要时创建）KV 桶
func Open(ctx context.Context, cfg Config, ser serializer.ISerializer) (*Store, error) {
	if ser == nil {
		return nil, errors.New("natskv: serializer cannot be nil")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "snapshots"
	}

	conn, own := cfg.Conn, false
	if conn == nil {
		url := cfg.URL
		if url == "" {
			url = nats.DefaultURL
		}
		var err error
		if conn, err = nats.Connect(url); err != nil {
			return nil, fmt.Errorf("natskv: connect %s: %w", url, err)
		}
		own = true
	}

	kv, err := openBucket(ctx, conn, cfg)
	if err != nil {
		if own {
			conn.Close()
		}
		return nil, err
	}

	s := NewWithKeyValue(kv, ser, cfg.Logger)
	s.conn, s.ownsConn = conn, own
	return s, nil
}

func openBucket(ctx context.Context, conn *nats.Conn, cfg Config) (nats.KeyValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("natskv: jetstream: %w", err)
	}
	kv, err := js.KeyValue(cfg.Bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("natskv: open bucket %s: %w", cfg.Bucket, err)
	}
	kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "aggregate snapshots",
		History:     1,
		Replicas:    cfg.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("natskv: create bucket %s: %w", cfg.Bucket, err)
	}
	return kv, nil
}

// NewWithKeyValue 使用已打开的 KV 桶
func NewWithKeyValue(kv nats.KeyValue, ser serializer.ISerializer, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.ComponentLogger("snapshot.natskv")
	}
	return &Store{kv: kv, serializer: ser, logger: logger}
}

// encodeKey KV 键只允许有限字符集，标识统一做 base64url 编码
func encodeKey(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func (s *Store) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	id, data, err := snapshot.Encode(s.serializer, snap)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rev, err := s.kv.Put(encodeKey(id), data)
	if err != nil {
		return fmt.Errorf("natskv: save snapshot of %s: %w", id, err)
	}
	s.logger.Debug(ctx, "保存快照",
		logging.String("aggregate_id", id),
		logging.Int64("playhead", snap.Playhead),
		logging.Uint64("revision", rev))
	return nil
}

func (s *Store) Load(ctx context.Context, id any) (*snapshot.Snapshot, error) {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := s.kv.Get(encodeKey(key))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, snapshot.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("natskv: load snapshot of %s: %w", key, err)
	}
	return snapshot.Decode(s.serializer, entry.Value())
}

// Close 仅关闭由 Open 建立的连接
func (s *Store) Close() {
	if s.ownsConn && s.conn != nil {
		s.conn.Close()
	}
}

var _ snapshot.ISnapshotStore = (*Store)(nil)
