// Package redisstore 基于 Redis 的快照存储
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"eventcore/eventing"
	"eventcore/eventing/serializer"
	"eventcore/eventing/store/snapshot"
	"eventcore/logging"
)

// client 快照存储用到的 go-redis 命令子集（便于测试）
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Config Redis 快照存储配置
type Config struct {
	// Client 已有客户端；为空时按 Addr 等字段创建并由 Store 负责关闭
	Client   redis.UniversalClient
	Addr     string
	Username string
	Password string
	DB       int

	// KeyPrefix 键前缀，默认 "snapshot:"
	KeyPrefix string
	// TTL 快照过期时间，0 表示永不过期
	TTL    time.Duration
	Logger logging.Logger
}

// Store 每个聚合一个字符串键，值为编码后的快照，SET 覆盖旧值
type Store struct {
	cfg        Config
	client     client
	ownClient  bool
	serializer serializer.ISerializer
	logger     logging.Logger
}

// New 创建 Redis 快照存储
func New(cfg Config, ser serializer.ISerializer) (*Store, error) {
	if ser == nil {
		return nil, errors.New("redisstore: serializer cannot be nil")
	}
	var (
		cl  client
		own bool
	)
	if cfg.Client != nil {
		cl = cfg.Client
	} else {
		if cfg.Addr == "" {
			return nil, errors.New("redisstore: redis client not configured")
		}
		cl = redis.NewClient(&redis.Options{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB})
		own = true
	}
	return newStore(cfg, cl, own, ser), nil
}

func newStore(cfg Config, cl client, own bool, ser serializer.ISerializer) *Store {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "snapshot:"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.ComponentLogger("snapshot.redis")
	}
	return &Store{cfg: cfg, client: cl, ownClient: own, serializer: ser, logger: cfg.Logger}
}

func (s *Store) key(id string) string { return s.cfg.KeyPrefix + id }

func (s *Store) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	id, data, err := snapshot.Encode(s.serializer, snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(id), data, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redisstore: save snapshot of %s: %w", id, err)
	}
	s.logger.Debug(ctx, "保存快照", logging.String("aggregate_id", id), logging.Int64("playhead", snap.Playhead))
	return nil
}

func (s *Store) Load(ctx context.Context, id any) (*snapshot.Snapshot, error) {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, snapshot.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("redisstore: load snapshot of %s: %w", key, err)
	}
	return snapshot.Decode(s.serializer, data)
}

// Close 仅关闭由 Store 自己创建的客户端
func (s *Store) Close() error {
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}

var _ snapshot.ISnapshotStore = (*Store)(nil)
