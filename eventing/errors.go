package eventing

import (
	"errors"
	"fmt"
)

// EventStoreError 事件存储错误基类
//
// 预定义的哨兵值通过 Code 比较，因此携带不同 Cause 的实例依然可以被 errors.Is 识别。
type EventStoreError struct {
	Code    string
	Message string
	Cause   error
}

func (e *EventStoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EventStoreError) Unwrap() error { return e.Cause }

// Is 按错误码匹配
func (e *EventStoreError) Is(target error) bool {
	var t *EventStoreError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithCause 返回携带原因的副本，哨兵本身不被修改
func (e *EventStoreError) WithCause(cause error) *EventStoreError {
	return &EventStoreError{Code: e.Code, Message: e.Message, Cause: cause}
}

var (
	// ErrStreamNotFound 完整加载时该聚合没有任何事件
	ErrStreamNotFound = &EventStoreError{Code: "STREAM_NOT_FOUND", Message: "event stream not found"}
	// ErrDuplicatePlayhead 与 *DuplicatePlayheadError 匹配
	ErrDuplicatePlayhead = &EventStoreError{Code: "DUPLICATE_PLAYHEAD", Message: "duplicate playhead"}
	// ErrIdentityConversion 与 *IdentityConversionError 匹配
	ErrIdentityConversion = &EventStoreError{Code: "IDENTITY_CONVERSION", Message: "aggregate identity cannot be converted to a string"}
)

// NewStreamNotFoundError 创建指定聚合的流不存在错误
func NewStreamNotFoundError(id string) error {
	return ErrStreamNotFound.WithCause(fmt.Errorf("aggregate %q has no events", id))
}

// DuplicatePlayheadError 追加时 playhead 与已有记录冲突或不连续
//
// 典型原因是两个写者基于同一份状态并发保存，调用方应重新加载后再决定是否重试。
type DuplicatePlayheadError struct {
	AggregateID string
	// Playhead 被拒绝的消息 playhead
	Playhead int64
	// Current 追加前该聚合已提交的最大 playhead，没有事件时为 -1
	Current int64
	Cause   error
}

func (e *DuplicatePlayheadError) Error() string {
	msg := fmt.Sprintf("duplicate playhead: aggregate %q playhead %d conflicts with committed playhead %d",
		e.AggregateID, e.Playhead, e.Current)
	if e.Cause != nil {
		return msg + fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return msg
}

func (e *DuplicatePlayheadError) Unwrap() error { return e.Cause }

// Is 使 errors.Is(err, ErrDuplicatePlayhead) 成立
func (e *DuplicatePlayheadError) Is(target error) bool {
	return target == ErrDuplicatePlayhead
}

func NewDuplicatePlayheadError(id string, playhead, current int64) *DuplicatePlayheadError {
	return &DuplicatePlayheadError{AggregateID: id, Playhead: playhead, Current: current}
}

// IdentityConversionError 聚合标识无法转换为规范字符串
//
// 这是调用方的编程错误，不应重试。
type IdentityConversionError struct {
	ID     any
	Reason string
}

func (e *IdentityConversionError) Error() string {
	return fmt.Sprintf("identity conversion failed for %T(%v): %s", e.ID, e.ID, e.Reason)
}

// Is 使 errors.Is(err, ErrIdentityConversion) 成立
func (e *IdentityConversionError) Is(target error) bool {
	return target == ErrIdentityConversion
}
