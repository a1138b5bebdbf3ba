package sql

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"eventcore/data/db"
	basicdb "eventcore/data/db/basic"
	"eventcore/eventing"
	"eventcore/eventing/serializer"
	estore "eventcore/eventing/store"
	"eventcore/eventing/store/storetest"
)

// 测试辅助：创建内存数据库并初始化表
func setupTestStore(t *testing.T) *SQLEventStore {
	t.Helper()
	database, err := basicdb.New(db.DBConfig{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	reg := serializer.NewRegistry()
	require.NoError(t, storetest.RegisterPayloads(reg))

	s := NewSQLEventStore(database, reg, "")
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

// setupFileStore 使用文件数据库与多连接池，写者分布在不同连接上
func setupFileStore(t *testing.T, conns int) *SQLEventStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "events.db")
	database, err := basicdb.New(db.DBConfig{Driver: "sqlite", DSN: dsn, MaxOpenConns: conns})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	reg := serializer.NewRegistry()
	require.NoError(t, storetest.RegisterPayloads(reg))

	s := NewSQLEventStore(database, reg, "")
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestSQLEventStore_FileDBSuite(t *testing.T) {
	storetest.RunEventStoreSuite(t, func(t *testing.T) estore.IEventStore {
		return setupFileStore(t, 8)
	})
}

func TestSQLEventStore_ConcurrentWritersOnPool(t *testing.T) {
	ctx := context.Background()
	s := setupFileStore(t, 8)

	const writers = 8
	for round := 0; round < 10; round++ {
		id := fmt.Sprintf("race-%d", round)
		errs := make([]error, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.Append(ctx, id, storetest.Stream(id, 0, 1))
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, eventing.ErrDuplicatePlayhead, "round %d", round)
		}
		assert.Equal(t, 1, ok, "round %d", round)

		loaded, err := s.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1}, loaded.Playheads())
	}
}

func TestSQLEventStore_NumericMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	meta := eventing.NewMetadata(
		eventing.MetadataEntry{Key: "attempt", Value: 3},
		eventing.MetadataEntry{Key: "ratio", Value: 0.75},
	)
	require.NoError(t, s.Append(ctx, "acc-1", eventing.NewDomainEventStream(
		eventing.RecordNow("acc-1", 0, meta, storetest.Started{Name: "n"}),
	)))

	got, err := s.Load(ctx, "acc-1")
	require.NoError(t, err)
	v, _ := got.At(0).Metadata().Get("attempt")
	assert.Equal(t, 3, v)
	assert.Equal(t, meta.ToMap(), got.At(0).Metadata().ToMap())
}

func TestSQLEventStore_Suite(t *testing.T) {
	storetest.RunEventStoreSuite(t, func(t *testing.T) estore.IEventStore {
		return setupTestStore(t)
	})
}

func TestSQLEventStore_Management(t *testing.T) {
	storetest.RunManagementSuite(t, func(t *testing.T) storetest.ManagedStore {
		return setupTestStore(t)
	})
}

func TestSQLEventStore_EnsureSchemaIdempotent(t *testing.T) {
	s := setupTestStore(t)
	assert.Equal(t, DefaultTableName, s.TableName())
	assert.NoError(t, s.EnsureSchema(context.Background()))
}

func TestSQLEventStore_MetadataOrderPersisted(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	meta := eventing.NewMetadata(
		eventing.MetadataEntry{Key: "z", Value: "last-alpha"},
		eventing.MetadataEntry{Key: "a", Value: "first-alpha"},
	)
	msg := eventing.RecordNow("acc-1", 0, meta, storetest.Started{Name: "n"})
	require.NoError(t, s.Append(ctx, "acc-1", eventing.NewDomainEventStream(msg)))

	var raw string
	require.NoError(t, s.db.QueryRow(ctx, `SELECT metadata FROM event_store WHERE aggregate_id = ?`, "acc-1").Scan(&raw))
	assert.Equal(t, `{"z":"last-alpha","a":"first-alpha"}`, raw)

	got, err := s.Load(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, got.At(0).Metadata().Keys())
	assert.Equal(t, "acc-1", got.At(0).ID())
	assert.Equal(t, "storetest.started", got.At(0).Type())
}

func TestSQLEventStore_UnregisteredPayload(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	type unknown struct{ A int }
	msg := eventing.RecordNow("acc-1", 0, eventing.Metadata{}, unknown{A: 1})
	err := s.Append(ctx, "acc-1", eventing.NewDomainEventStream(msg))
	assert.ErrorIs(t, err, serializer.ErrUnregisteredValue)

	// 编码失败发生在事务之前，不会留下任何记录
	_, err = s.Load(ctx, "acc-1")
	assert.ErrorIs(t, err, eventing.ErrStreamNotFound)
}

func TestSQLEventStore_UniqueViolationMapped(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.Append(ctx, "X", storetest.Stream("X", 0, 0)))

	// 绕过序列校验直接插入，确认唯一约束本身存在
	_, err := s.db.Exec(ctx, `INSERT INTO event_store (aggregate_id, playhead, type, payload_type, payload, metadata, recorded_on)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, "X", 0, "t", "t", "{}", "{}", "2024-01-01T00:00:00Z")
	require.Error(t, err)
	assert.True(t, s.dialect.IsUniqueViolation(err))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestNewSQLEventStore_Panics(t *testing.T) {
	assert.Panics(t, func() { NewSQLEventStore(nil, serializer.NewRegistry(), "") })
}
