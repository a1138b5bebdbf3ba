package eventing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// 常用元数据键
const (
	MetadataCorrelationID = "correlation_id"
	MetadataCausationID   = "causation_id"
	MetadataMessageID     = "message_id"
)

// MetadataEntry 元数据中的一个键值对
type MetadataEntry struct {
	Key   string
	Value any
}

// Metadata 有序的元数据集合
//
// 值语义：With/Merge 返回新实例，原实例不变。零值即空元数据。
// JSON 编码为对象，键顺序与插入顺序一致。
type Metadata struct {
	entries []MetadataEntry
}

// NewMetadata 以给定的键值对构造元数据，重复键以后出现者为准但保留首次位置
func NewMetadata(entries ...MetadataEntry) Metadata {
	var m Metadata
	for _, e := range entries {
		m = m.With(e.Key, e.Value)
	}
	return m
}

// MetadataOf 单键值便捷构造
func MetadataOf(key string, value any) Metadata {
	return Metadata{}.With(key, value)
}

// Len 键数量
func (m Metadata) Len() int { return len(m.entries) }

// IsEmpty 是否为空
func (m Metadata) IsEmpty() bool { return len(m.entries) == 0 }

// Get 读取键
func (m Metadata) Get(key string) (any, bool) {
	for _, e := range m.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// GetString 读取字符串值，不存在或类型不符时返回空串
func (m Metadata) GetString(key string) string {
	v, ok := m.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Keys 按插入顺序返回所有键
func (m Metadata) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries 返回键值对副本
func (m Metadata) Entries() []MetadataEntry {
	out := make([]MetadataEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// With 返回设置了 key 的新元数据；已存在的键原位替换
func (m Metadata) With(key string, value any) Metadata {
	out := make([]MetadataEntry, len(m.entries), len(m.entries)+1)
	copy(out, m.entries)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return Metadata{entries: out}
		}
	}
	return Metadata{entries: append(out, MetadataEntry{Key: key, Value: value})}
}

// Merge 合并 other，冲突时 other 的值覆盖
func (m Metadata) Merge(other Metadata) Metadata {
	out := m
	for _, e := range other.entries {
		out = out.With(e.Key, e.Value)
	}
	return out
}

// ToMap 转换为普通 map（丢失顺序）
func (m Metadata) ToMap() map[string]any {
	out := make(map[string]any, len(m.entries))
	for _, e := range m.entries {
		out[e.Key] = e.Value
	}
	return out
}

// MarshalJSON 按插入顺序编码
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata %q: %w", e.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 解码对象并保留键顺序
//
// JSON 整数解码为 int（超出 int 范围时为 int64），其余数字为 float64，
// 嵌套的对象与数组同样处理。
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = Metadata{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata: expected JSON object, got %v", tok)
	}
	var out Metadata
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metadata: expected string key, got %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("metadata %q: %w", key, err)
		}
		out = out.With(key, restoreNumbers(value))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

func restoreNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			if i >= math.MinInt && i <= math.MaxInt {
				return int(i)
			}
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = restoreNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = restoreNumbers(e)
		}
		return x
	}
	return v
}
