package eventsourced

import (
	"errors"
	"fmt"
)

// ErrAggregateNotFound 聚合不存在，可用 errors.Is 匹配
var ErrAggregateNotFound = errors.New("aggregate not found")

// AggregateNotFoundError 由事件存储的 ErrStreamNotFound 转换而来
type AggregateNotFoundError struct {
	AggregateID string
	Cause       error
}

func (e *AggregateNotFoundError) Error() string {
	return fmt.Sprintf("aggregate %s not found", e.AggregateID)
}

func (e *AggregateNotFoundError) Unwrap() error { return e.Cause }

func (e *AggregateNotFoundError) Is(target error) bool { return target == ErrAggregateNotFound }

// ApplyError 重放历史事件失败
type ApplyError struct {
	Playhead int64
	Type     string
	Cause    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply event %s at playhead %d: %v", e.Type, e.Playhead, e.Cause)
}

func (e *ApplyError) Unwrap() error { return e.Cause }
