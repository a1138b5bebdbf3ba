package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventcore/data/db"
	"eventcore/data/db/dialect"
	"eventcore/eventing"
	"eventcore/eventing/serializer"
	"eventcore/logging"
)

// DefaultSQLTableName 默认快照表名
const DefaultSQLTableName = "event_snapshots"

// SQLStore 基于 db.IDatabase 的快照存储
//
// 每个 aggregate_id 一行，Save 使用方言的 upsert 语法覆盖旧快照。
type SQLStore struct {
	db         db.IDatabase
	dialect    dialect.Dialect
	serializer serializer.ISerializer
	tableName  string
}

// NewSQLStore tableName 为空时使用 DefaultSQLTableName
func NewSQLStore(database db.IDatabase, ser serializer.ISerializer, tableName string) *SQLStore {
	if database == nil || ser == nil {
		panic("NewSQLStore: database and serializer cannot be nil")
	}
	if tableName == "" {
		tableName = DefaultSQLTableName
	}
	return &SQLStore{
		db:         database,
		dialect:    dialect.FromDatabase(database),
		serializer: ser,
		tableName:  tableName,
	}
}

// EnsureSchema 创建快照表（如不存在）
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		aggregate_id VARCHAR(255) NOT NULL PRIMARY KEY,
		playhead BIGINT NOT NULL,
		data TEXT NOT NULL,
		updated_on VARCHAR(64) NOT NULL
	)`, s.dialect.QuoteIdentifier(s.tableName))
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.tableName, err)
	}
	return nil
}

func (s *SQLStore) Save(ctx context.Context, snap *Snapshot) error {
	key, data, err := Encode(s.serializer, snap)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (aggregate_id, playhead, data, updated_on) VALUES (?, ?, ?, ?)`,
		s.dialect.QuoteIdentifier(s.tableName)) +
		s.dialect.UpsertSuffix([]string{"aggregate_id"}, []string{"playhead", "data", "updated_on"})

	if _, err := s.db.Exec(ctx, query, key, snap.Playhead, string(data), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save snapshot of %s: %w", key, err)
	}
	snapshotLogger().Debug(ctx, "[SQLSnapshotStore] 保存快照",
		logging.String("aggregate_id", key),
		logging.Int64("playhead", snap.Playhead))
	return nil
}

func (s *SQLStore) Load(ctx context.Context, id any) (*Snapshot, error) {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT data FROM %s WHERE aggregate_id = ?`, s.dialect.QuoteIdentifier(s.tableName))
	var data string
	if err := s.db.QueryRow(ctx, query, key).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("load snapshot of %s: %w", key, err)
	}
	return Decode(s.serializer, []byte(data))
}

var _ ISnapshotStore = (*SQLStore)(nil)
