package errors

import (
	"context"
	stdErrors "errors"

	"eventcore/domain/eventsourced"
	"eventcore/eventing"
	"eventcore/eventing/store"
	"eventcore/eventing/store/snapshot"
)

// Normalize 将事件存储与仓储的错误规范化为 AppError，原始错误保留为 cause
//
// 已是 AppError 的错误原样返回；未识别的错误也原样返回，由调用方决定是否 Wrap。
func Normalize(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return err
	}
	if n, ok := classify(err); ok {
		return n
	}
	return err
}

// classify 识别领域错误，未识别时返回 false
func classify(err error) (IError, bool) {
	switch {
	case stdErrors.Is(err, eventsourced.ErrAggregateNotFound):
		return WrapError(err, ErrCodeNotFound, "聚合未找到"), true
	case stdErrors.Is(err, eventing.ErrStreamNotFound):
		return WrapError(err, ErrCodeNotFound, "事件流不存在"), true
	case stdErrors.Is(err, snapshot.ErrSnapshotNotFound):
		return WrapError(err, ErrCodeNotFound, "快照不存在"), true
	case stdErrors.Is(err, eventing.ErrDuplicatePlayhead):
		return WrapError(err, ErrCodeConcurrency, "事件存储并发冲突"), true
	case stdErrors.Is(err, eventing.ErrIdentityConversion):
		return WrapError(err, ErrCodeInvalidInput, "无效的聚合标识"), true
	case stdErrors.Is(err, store.ErrCriteriaNotSupported):
		return WrapError(err, ErrCodeInvalidInput, "存储不支持该查询条件"), true
	case stdErrors.Is(err, context.DeadlineExceeded):
		return WrapError(err, ErrCodeTimeout, "操作超时"), true
	}
	return nil, false
}
