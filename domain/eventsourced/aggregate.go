// Package eventsourced 事件溯源聚合根与仓储
package eventsourced

import (
	"sync"

	"eventcore/eventing"
)

// IEventSourcedAggregate 事件溯源聚合根接口
//
// 具体聚合内嵌 AggregateRoot 并实现 AggregateRootID 与 ApplyEvent：
//
//	type BankAccount struct {
//	    eventsourced.AggregateRoot
//	    ID      string
//	    Balance int
//	}
//
//	func (a *BankAccount) ApplyEvent(payload any) error {
//	    switch e := payload.(type) {
//	    case *MoneyDeposited:
//	        a.Balance += e.Amount
//	    }
//	    return nil
//	}
type IEventSourcedAggregate interface {
	// AggregateRootID 聚合标识，必须可转换为规范字符串
	AggregateRootID() any
	// ApplyEvent 将一个事件载荷作用于聚合状态，不涉及 playhead
	ApplyEvent(payload any) error
	// Playhead 最后一个已应用事件的 playhead，空聚合为 -1
	Playhead() int64
	// UncommittedEvents 自上次保存以来产生的事件副本
	UncommittedEvents() eventing.DomainEventStream

	root() *AggregateRoot
}

// AggregateRoot 聚合根基础状态：playhead 计数与未提交事件缓冲
//
// 零值即为一个尚未应用任何事件的聚合。字段均不导出，
// 因此不会进入快照的序列化结果，playhead 由快照自身携带。
type AggregateRoot struct {
	mu sync.RWMutex
	// next 下一个事件的 playhead，即 Playhead()+1
	next        int64
	uncommitted []eventing.DomainMessage
}

func (a *AggregateRoot) Playhead() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.next - 1
}

func (a *AggregateRoot) UncommittedEvents() eventing.DomainEventStream {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return eventing.NewDomainEventStream(a.uncommitted...)
}

// HasUncommittedEvents 是否存在待保存的事件
func (a *AggregateRoot) HasUncommittedEvents() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.uncommitted) > 0
}

func (a *AggregateRoot) root() *AggregateRoot { return a }

// record 分配下一个 playhead 并写入缓冲
func (a *AggregateRoot) record(id any, payload any, md eventing.Metadata) eventing.DomainMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	msg := eventing.RecordNow(id, a.next, md, payload)
	a.next++
	a.uncommitted = append(a.uncommitted, msg)
	return msg
}

func (a *AggregateRoot) setPlayhead(p int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next = p + 1
}

// commit 丢弃缓冲中前 n 条已持久化的事件，保存期间新记录的事件保留
func (a *AggregateRoot) commit(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n >= len(a.uncommitted) {
		a.uncommitted = nil
		return
	}
	rest := make([]eventing.DomainMessage, len(a.uncommitted)-n)
	copy(rest, a.uncommitted[n:])
	a.uncommitted = rest
}

// RecordThat 应用事件并记录为未提交，命令处理方法应调用它
//
//	func (a *BankAccount) Deposit(amount int) error {
//	    return eventsourced.RecordThat(a, &MoneyDeposited{Amount: amount})
//	}
//
// ApplyEvent 失败时聚合保持原状，事件不会进入缓冲。
func RecordThat(agg IEventSourcedAggregate, payload any) error {
	return RecordThatWithMetadata(agg, payload, eventing.Metadata{})
}

// RecordThatWithMetadata 同 RecordThat，并附带消息元数据
func RecordThatWithMetadata(agg IEventSourcedAggregate, payload any, md eventing.Metadata) error {
	if err := agg.ApplyEvent(payload); err != nil {
		return err
	}
	agg.root().record(agg.AggregateRootID(), payload, md)
	return nil
}

// Replay 按顺序应用历史事件流，逐条推进 playhead
func Replay(agg IEventSourcedAggregate, stream eventing.DomainEventStream) error {
	r := agg.root()
	for _, msg := range stream.Messages() {
		if err := agg.ApplyEvent(msg.Payload()); err != nil {
			return &ApplyError{Playhead: msg.Playhead(), Type: msg.Type(), Cause: err}
		}
		r.setPlayhead(msg.Playhead())
	}
	return nil
}
