package natskv

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcore/eventing/store/snapshot"
	"eventcore/eventing/store/snapshot/snapshottest"
)

// fakeEntry 只实现 Value，其余方法不会被调用
type fakeEntry struct {
	nats.KeyValueEntry
	value []byte
}

func (e fakeEntry) Value() []byte { return e.value }

// fakeKV 内存实现的 Get/Put
type fakeKV struct {
	nats.KeyValue

	mu      sync.Mutex
	data    map[string][]byte
	rev     uint64
	failPut error
}

func newFakeKV() *fakeKV { return &fakeKV{data: make(map[string][]byte)} }

func (f *fakeKV) Put(key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut != nil {
		return 0, f.failPut
	}
	f.rev++
	f.data[key] = append([]byte(nil), value...)
	return f.rev, nil
}

func (f *fakeKV) Get(key string) (nats.KeyValueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	return fakeEntry{value: v}, nil
}

func TestStore_Suite(t *testing.T) {
	snapshottest.RunSnapshotStoreSuite(t, func(t *testing.T) snapshot.ISnapshotStore {
		return NewWithKeyValue(newFakeKV(), snapshottest.NewSerializer(), nil)
	})
}

func TestEncodeKey(t *testing.T) {
	kv := newFakeKV()
	s := NewWithKeyValue(kv, snapshottest.NewSerializer(), nil)

	// 含空格与斜杠的标识也能作为合法的 KV 键
	id := "tenant a/order#1"
	require.NoError(t, s.Save(context.Background(), snapshot.NewSnapshot(&snapshottest.Counter{ID: id})))
	_, ok := kv.data[encodeKey(id)]
	assert.True(t, ok)
	assert.NotContains(t, encodeKey(id), "/")
	assert.NotContains(t, encodeKey(id), "=")
}

func TestStore_PutError(t *testing.T) {
	kv := newFakeKV()
	kv.failPut = errors.New("no responders")
	s := NewWithKeyValue(kv, snapshottest.NewSerializer(), nil)

	err := s.Save(context.Background(), snapshot.NewSnapshot(&snapshottest.Counter{ID: "x"}))
	assert.ErrorContains(t, err, "no responders")
}

func TestStore_CanceledContext(t *testing.T) {
	s := NewWithKeyValue(newFakeKV(), snapshottest.NewSerializer(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Load(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Save(ctx, snapshot.NewSnapshot(&snapshottest.Counter{ID: "x"})), context.Canceled)
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), Config{}, nil)
	assert.Error(t, err)
}
