package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"runtime"

	"eventcore/logging"
)

// Wrap 包装错误并附加错误码，在服务边界使用
func Wrap(ctx context.Context, err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	logging.GetLogger().Debug(ctx, "错误包装",
		logging.String("error_code", string(code)),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)),
		logging.Error(err))
	return WrapError(err, code, msg)
}

// WrapWithLog 包装错误并记录警告日志
func WrapWithLog(ctx context.Context, err error, code ErrorCode, msg string, fields ...logging.Field) error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	all := append([]logging.Field{
		logging.Error(err),
		logging.String("error_code", string(code)),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)),
	}, fields...)
	logging.GetLogger().Warn(ctx, msg, all...)
	return WrapError(err, code, msg)
}

// WrapStoreError 包装仓储或存储操作的错误
//
// 已知的领域错误按 Normalize 映射，不记录日志；其余视为存储故障并记录警告。
func WrapStoreError(ctx context.Context, err error, operation string) error {
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
	return WrapWithLog(ctx, err, ErrCodeDatabase,
		fmt.Sprintf("存储操作失败: %s", operation),
		logging.String("operation", operation))
}
