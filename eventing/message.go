package eventing

import (
	"reflect"
	"time"
)

// ITypedEvent 事件载荷可实现此接口提供稳定的类型名
type ITypedEvent interface {
	EventType() string
}

// DomainMessage 已记录的领域事件
//
// 不可变：所有字段只能通过构造函数设置，AndMetadata 返回新的消息。
type DomainMessage struct {
	id         any
	playhead   int64
	metadata   Metadata
	payload    any
	recordedOn time.Time
}

// NewDomainMessage 构造领域消息
func NewDomainMessage(id any, playhead int64, metadata Metadata, payload any, recordedOn time.Time) DomainMessage {
	return DomainMessage{
		id:         id,
		playhead:   playhead,
		metadata:   metadata,
		payload:    payload,
		recordedOn: recordedOn,
	}
}

// RecordNow 以当前 UTC 时间构造领域消息
func RecordNow(id any, playhead int64, metadata Metadata, payload any) DomainMessage {
	return NewDomainMessage(id, playhead, metadata, payload, time.Now().UTC())
}

func (m DomainMessage) ID() any               { return m.id }
func (m DomainMessage) Playhead() int64       { return m.playhead }
func (m DomainMessage) Metadata() Metadata    { return m.metadata }
func (m DomainMessage) Payload() any          { return m.payload }
func (m DomainMessage) RecordedOn() time.Time { return m.recordedOn }

// Type 载荷类型名
func (m DomainMessage) Type() string {
	return PayloadType(m.payload)
}

// AndMetadata 返回合并了额外元数据的新消息
func (m DomainMessage) AndMetadata(extra Metadata) DomainMessage {
	if extra.IsEmpty() {
		return m
	}
	out := m
	out.metadata = m.metadata.Merge(extra)
	return out
}

// PayloadType 优先使用 ITypedEvent，否则取 Go 类型名（指针解引用）
func PayloadType(payload any) string {
	if payload == nil {
		return ""
	}
	if te, ok := payload.(ITypedEvent); ok {
		return te.EventType()
	}
	t := reflect.TypeOf(payload)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
