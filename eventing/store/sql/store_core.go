// Package sql 基于 data/db 抽象的 SQL 事件存储
package sql

import (
	"context"
	"fmt"
	"time"

	"eventcore/data/db"
	"eventcore/data/db/dialect"
	"eventcore/eventing"
	"eventcore/eventing/serializer"
	estore "eventcore/eventing/store"
	"eventcore/logging"
)

// DefaultTableName 默认事件表名
const DefaultTableName = "event_store"

// SQLEventStore 基于通用 SQL 接口的事件存储
//
// 每条事件一行，(aggregate_id, playhead) 唯一。载荷通过 serializer 编码，
// 元数据按插入顺序编码为 JSON 对象。加载得到的消息 ID 为规范字符串。
type SQLEventStore struct {
	db         db.IDatabase
	dialect    dialect.Dialect
	serializer serializer.ISerializer
	tableName  string
	logger     logging.Logger
}

// NewSQLEventStore tableName 为空时使用 DefaultTableName
func NewSQLEventStore(database db.IDatabase, ser serializer.ISerializer, tableName string) *SQLEventStore {
	if database == nil {
		panic("NewSQLEventStore: database cannot be nil")
	}
	if ser == nil {
		panic("NewSQLEventStore: serializer cannot be nil")
	}
	if tableName == "" {
		tableName = DefaultTableName
	}
	return &SQLEventStore{
		db:         database,
		dialect:    dialect.FromDatabase(database),
		serializer: ser,
		tableName:  tableName,
		logger:     logging.ComponentLogger("eventstore.sql"),
	}
}

func (s *SQLEventStore) TableName() string { return s.tableName }

// EnsureSchema 创建事件表（如不存在）
func (s *SQLEventStore) EnsureSchema(ctx context.Context) error {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	switch s.dialect.Name() {
	case dialect.NamePostgres:
		seq = "seq BIGSERIAL PRIMARY KEY"
	case dialect.NameMySQL:
		seq = "seq BIGINT AUTO_INCREMENT PRIMARY KEY"
	}
	table := s.dialect.QuoteIdentifier(s.tableName)
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s,
		aggregate_id VARCHAR(255) NOT NULL,
		playhead BIGINT NOT NULL,
		type VARCHAR(255) NOT NULL,
		payload_type VARCHAR(255) NOT NULL,
		payload TEXT NOT NULL,
		metadata TEXT NOT NULL,
		recorded_on VARCHAR(64) NOT NULL,
		UNIQUE (aggregate_id, playhead)
	)`, table, seq)
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.tableName, err)
	}
	return nil
}

// row 事件表中的一行
type row struct {
	aggregateID string
	playhead    int64
	eventType   string
	payloadType string
	payload     string
	metadata    string
	recordedOn  string
}

func (s *SQLEventStore) encode(key string, msg eventing.DomainMessage) (row, error) {
	data, err := s.serializer.Serialize(msg.Payload())
	if err != nil {
		return row{}, fmt.Errorf("serialize payload at playhead %d: %w", msg.Playhead(), err)
	}
	meta, err := msg.Metadata().MarshalJSON()
	if err != nil {
		return row{}, fmt.Errorf("serialize metadata at playhead %d: %w", msg.Playhead(), err)
	}
	return row{
		aggregateID: key,
		playhead:    msg.Playhead(),
		eventType:   msg.Type(),
		payloadType: data.Type,
		payload:     string(data.Payload),
		metadata:    string(meta),
		recordedOn:  msg.RecordedOn().UTC().Format(time.RFC3339Nano),
	}, nil
}

func (s *SQLEventStore) decode(r row) (eventing.DomainMessage, error) {
	payload, err := s.serializer.Deserialize(serializer.Serialized{Type: r.payloadType, Payload: []byte(r.payload)})
	if err != nil {
		return eventing.DomainMessage{}, fmt.Errorf("deserialize %s@%d: %w", r.aggregateID, r.playhead, err)
	}
	var meta eventing.Metadata
	if err := meta.UnmarshalJSON([]byte(r.metadata)); err != nil {
		return eventing.DomainMessage{}, fmt.Errorf("decode metadata %s@%d: %w", r.aggregateID, r.playhead, err)
	}
	recordedOn, err := time.Parse(time.RFC3339Nano, r.recordedOn)
	if err != nil {
		return eventing.DomainMessage{}, fmt.Errorf("parse recorded_on %s@%d: %w", r.aggregateID, r.playhead, err)
	}
	return eventing.NewDomainMessage(r.aggregateID, r.playhead, meta, payload, recordedOn), nil
}

const selectColumns = "aggregate_id, playhead, type, payload_type, payload, metadata, recorded_on"

func scanRows(rows db.IRows) ([]row, error) {
	defer rows.Close()
	var out []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.aggregateID, &r.playhead, &r.eventType, &r.payloadType, &r.payload, &r.metadata, &r.recordedOn); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var (
	_ estore.IEventStore           = (*SQLEventStore)(nil)
	_ estore.IEventStoreManagement = (*SQLEventStore)(nil)
)
