package monitoring

import "sync/atomic"

var global atomic.Pointer[Metrics]

func init() {
	global.Store(NewMetrics())
}

// GlobalMetrics 获取全局指标收集器
//
// 存储与仓储未显式注入 Metrics 时使用该实例。
func GlobalMetrics() *Metrics { return global.Load() }

// SetGlobalMetrics 替换全局指标收集器，nil 被忽略
func SetGlobalMetrics(m *Metrics) {
	if m != nil {
		global.Store(m)
	}
}
