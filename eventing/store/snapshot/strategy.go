package snapshot

import "eventcore/eventing"

// DefaultInterval 默认快照间隔
const DefaultInterval = 99

// Strategy 快照策略：根据刚提交的事件判断是否需要快照
type Strategy interface {
	ShouldSnapshot(committed eventing.DomainEventStream) bool
}

// IntervalStrategy 任一提交事件的 playhead 为 Interval 的整数倍时快照
//
// playhead 0 也是倍数，因此聚合的第一次保存总会产生快照。
// 一次保存跨越多个倍数时仍只快照一次。
type IntervalStrategy struct {
	Interval int64
}

// NewIntervalStrategy interval <= 0 时使用 DefaultInterval
func NewIntervalStrategy(interval int64) *IntervalStrategy {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &IntervalStrategy{Interval: interval}
}

func (s *IntervalStrategy) ShouldSnapshot(committed eventing.DomainEventStream) bool {
	for _, p := range committed.Playheads() {
		if p%s.Interval == 0 {
			return true
		}
	}
	return false
}

// StrategyFunc 函数式策略
type StrategyFunc func(committed eventing.DomainEventStream) bool

func (f StrategyFunc) ShouldSnapshot(committed eventing.DomainEventStream) bool { return f(committed) }
