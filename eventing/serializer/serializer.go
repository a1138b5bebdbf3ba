// Package serializer 提供按稳定类型名注册的 JSON 序列化器
//
// 事件载荷与快照中的聚合都通过它落盘，类型名一经注册就不应修改，
// 重命名 Go 类型只需保持注册名不变。
package serializer

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"eventcore/eventing"
)

var (
	// ErrUnknownType 反序列化时类型名未注册
	ErrUnknownType = errors.New("serializer: unknown type")
	// ErrUnregisteredValue 序列化时值的类型未注册
	ErrUnregisteredValue = errors.New("serializer: value type not registered")
)

// Serialized 序列化结果
type Serialized struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ISerializer 序列化器接口
type ISerializer interface {
	Serialize(v any) (Serialized, error)
	Deserialize(s Serialized) (any, error)
}

// Registry 类型注册表，实现 ISerializer
//
// 注册时给出的样本决定反序列化结果的形态：值类型样本得到值，指针样本得到指针。
type Registry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
}

// Register 以 name 注册 sample 的类型
//
// sample 可以是值（AccountOpened{}）或类型化的指针（(*Account)(nil)）。
func (r *Registry) Register(name string, sample any) error {
	if name == "" {
		return fmt.Errorf("serializer: type name cannot be empty")
	}
	if sample == nil {
		return fmt.Errorf("serializer: sample cannot be nil for type %s", name)
	}
	t := reflect.TypeOf(sample)
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Pointer {
		return fmt.Errorf("serializer: pointer to pointer is not supported for type %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		if existing == t {
			return nil
		}
		return fmt.Errorf("serializer: type name already registered: %s", name)
	}
	if existing, ok := r.byType[t]; ok {
		return fmt.Errorf("serializer: %s already registered as %s", t, existing)
	}
	r.byName[name] = t
	r.byType[t] = name
	return nil
}

// MustRegister 注册（失败 panic）
func (r *Registry) MustRegister(name string, sample any) {
	if err := r.Register(name, sample); err != nil {
		panic(err)
	}
}

// RegisterPayloads 以 eventing.PayloadType 作为名称注册多个样本
func (r *Registry) RegisterPayloads(samples ...any) error {
	for _, s := range samples {
		if err := r.Register(eventing.PayloadType(s), s); err != nil {
			return err
		}
	}
	return nil
}

// RegisterType 泛型便捷注册
func RegisterType[T any](r *Registry, name string) error {
	var zero T
	if t := reflect.TypeOf((*T)(nil)).Elem(); t.Kind() == reflect.Interface {
		return fmt.Errorf("serializer: interface type %s cannot be registered", t)
	}
	return r.Register(name, any(zero))
}

// Has 类型名是否已注册
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Types 已注册的类型名（排序）
func (r *Registry) Types() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// NameOf 返回值对应的注册名
func (r *Registry) NameOf(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byType[reflect.TypeOf(v)]
	return name, ok
}

// Serialize 序列化为 {Type, Payload}
func (r *Registry) Serialize(v any) (Serialized, error) {
	name, ok := r.NameOf(v)
	if !ok {
		return Serialized{}, fmt.Errorf("%w: %T", ErrUnregisteredValue, v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Serialized{}, fmt.Errorf("serializer: marshal %s: %w", name, err)
	}
	return Serialized{Type: name, Payload: data}, nil
}

// Deserialize 按类型名构造新实例并解码
func (r *Registry) Deserialize(s Serialized) (any, error) {
	r.mu.RLock()
	t, ok := r.byName[s.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, s.Type)
	}

	if t.Kind() == reflect.Pointer {
		ptr := reflect.New(t.Elem())
		if err := json.Unmarshal(s.Payload, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("serializer: unmarshal %s: %w", s.Type, err)
		}
		return ptr.Interface(), nil
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(s.Payload, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("serializer: unmarshal %s: %w", s.Type, err)
	}
	return ptr.Elem().Interface(), nil
}

// Clone 序列化后再反序列化，得到与 v 不共享内存的副本
func Clone(s ISerializer, v any) (any, error) {
	data, err := s.Serialize(v)
	if err != nil {
		return nil, err
	}
	return s.Deserialize(data)
}

var global = NewRegistry()

// Global 全局注册表
func Global() *Registry { return global }
