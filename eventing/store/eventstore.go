package store

import (
	"context"

	"eventcore/eventing"
)

// IEventStore 追加式事件存储的核心接口
//
// 每个聚合的事件按 playhead 严格递增保存，同一聚合内 playhead 唯一。
// 所有方法在访问存储前先将 id 转换为规范字符串，
// 转换失败返回 *eventing.IdentityConversionError。
type IEventStore interface {
	// Append 追加事件流
	//
	// 空流不做任何事。每条消息的 playhead 必须恰好比前一条大 1
	// （第一条比已提交的最大 playhead 大 1，新聚合可以从任意非负值开始）。
	// 违反时返回 *eventing.DuplicatePlayheadError，且整批都不会被写入。
	Append(ctx context.Context, id any, stream eventing.DomainEventStream) error

	// Load 按 playhead 升序加载完整事件流
	//
	// 没有任何事件时返回 eventing.ErrStreamNotFound。
	Load(ctx context.Context, id any) (eventing.DomainEventStream, error)

	// LoadFromPlayhead 加载 playhead >= playhead 的事件
	//
	// 聚合不存在或没有满足条件的事件时返回空流，而不是错误。
	LoadFromPlayhead(ctx context.Context, id any, playhead int64) (eventing.DomainEventStream, error)
}

// CheckSequence 校验待追加消息的 playhead 序列
//
// current 为已提交的最大 playhead，没有事件时为 -1。
func CheckSequence(id string, current int64, messages []eventing.DomainMessage) error {
	if len(messages) == 0 {
		return nil
	}
	expected := current + 1
	if current < 0 {
		expected = messages[0].Playhead()
		if expected < 0 {
			return eventing.NewDuplicatePlayheadError(id, expected, current)
		}
	}
	for _, msg := range messages {
		if msg.Playhead() != expected {
			return eventing.NewDuplicatePlayheadError(id, msg.Playhead(), current)
		}
		expected++
	}
	return nil
}
