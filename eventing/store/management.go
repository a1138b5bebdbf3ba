package store

import (
	"context"
	"errors"

	"eventcore/eventing"
)

// ErrCriteriaNotSupported 存储无法按该条件过滤
//
// 聚合根类型不是事件记录的一部分，按类型过滤总是返回此错误。
var ErrCriteriaNotSupported = errors.New("event store: criteria not supported")

// Criteria 事件遍历条件
//
// 不同维度之间为 AND，同一维度内为 OR；空维度不参与过滤。
type Criteria struct {
	AggregateRootTypes []string
	AggregateRootIDs   []any
	EventTypes         []string
}

// NewCriteria 创建空条件（匹配所有事件）
func NewCriteria() *Criteria { return &Criteria{} }

func (c *Criteria) WithAggregateRootTypes(types ...string) *Criteria {
	out := c.clone()
	out.AggregateRootTypes = append(out.AggregateRootTypes, types...)
	return out
}

func (c *Criteria) WithAggregateRootIDs(ids ...any) *Criteria {
	out := c.clone()
	out.AggregateRootIDs = append(out.AggregateRootIDs, ids...)
	return out
}

func (c *Criteria) WithEventTypes(types ...string) *Criteria {
	out := c.clone()
	out.EventTypes = append(out.EventTypes, types...)
	return out
}

func (c *Criteria) clone() *Criteria {
	if c == nil {
		return &Criteria{}
	}
	return &Criteria{
		AggregateRootTypes: append([]string(nil), c.AggregateRootTypes...),
		AggregateRootIDs:   append([]any(nil), c.AggregateRootIDs...),
		EventTypes:         append([]string(nil), c.EventTypes...),
	}
}

// Compile 转换标识并校验条件，返回可重复使用的匹配器
func (c *Criteria) Compile() (*Matcher, error) {
	m := &Matcher{}
	if c == nil {
		return m, nil
	}
	if len(c.AggregateRootTypes) > 0 {
		return nil, ErrCriteriaNotSupported
	}
	if len(c.AggregateRootIDs) > 0 {
		m.ids = make(map[string]struct{}, len(c.AggregateRootIDs))
		for _, id := range c.AggregateRootIDs {
			key, err := eventing.IdentityString(id)
			if err != nil {
				return nil, err
			}
			m.ids[key] = struct{}{}
		}
	}
	if len(c.EventTypes) > 0 {
		m.types = make(map[string]struct{}, len(c.EventTypes))
		for _, t := range c.EventTypes {
			m.types[t] = struct{}{}
		}
	}
	return m, nil
}

// Matcher 已编译的条件
type Matcher struct {
	ids   map[string]struct{}
	types map[string]struct{}
}

// AggregateIDs 限定的聚合标识，nil 表示不限
func (m *Matcher) AggregateIDs() []string {
	if m.ids == nil {
		return nil
	}
	out := make([]string, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	return out
}

// EventTypes 限定的事件类型，nil 表示不限
func (m *Matcher) EventTypes() []string {
	if m.types == nil {
		return nil
	}
	out := make([]string, 0, len(m.types))
	for t := range m.types {
		out = append(out, t)
	}
	return out
}

// Match idKey 为消息所属聚合的规范标识
func (m *Matcher) Match(idKey, eventType string) bool {
	if m.ids != nil {
		if _, ok := m.ids[idKey]; !ok {
			return false
		}
	}
	if m.types != nil {
		if _, ok := m.types[eventType]; !ok {
			return false
		}
	}
	return true
}

// IEventVisitor 事件访问者
type IEventVisitor interface {
	DoWithEvent(ctx context.Context, msg eventing.DomainMessage) error
}

// EventVisitorFunc 函数式访问者
type EventVisitorFunc func(ctx context.Context, msg eventing.DomainMessage) error

func (f EventVisitorFunc) DoWithEvent(ctx context.Context, msg eventing.DomainMessage) error {
	return f(ctx, msg)
}

// IEventStoreManagement 事件存储管理接口（可选扩展）
type IEventStoreManagement interface {
	// VisitEvents 按追加顺序把满足条件的事件交给 visitor
	//
	// visitor 返回错误时立即停止并返回该错误。
	VisitEvents(ctx context.Context, criteria *Criteria, visitor IEventVisitor) error
}
