package eventing

// DomainEventStream 有序、不可变的领域消息序列，可以为空
type DomainEventStream struct {
	messages []DomainMessage
}

// NewDomainEventStream 复制传入的消息构造事件流
func NewDomainEventStream(messages ...DomainMessage) DomainEventStream {
	if len(messages) == 0 {
		return DomainEventStream{}
	}
	out := make([]DomainMessage, len(messages))
	copy(out, messages)
	return DomainEventStream{messages: out}
}

// Len 消息数量
func (s DomainEventStream) Len() int { return len(s.messages) }

// IsEmpty 是否为空流
func (s DomainEventStream) IsEmpty() bool { return len(s.messages) == 0 }

// At 第 i 条消息
func (s DomainEventStream) At(i int) DomainMessage { return s.messages[i] }

// Messages 返回消息副本
func (s DomainEventStream) Messages() []DomainMessage {
	out := make([]DomainMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Payloads 按顺序返回载荷
func (s DomainEventStream) Payloads() []any {
	out := make([]any, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.payload
	}
	return out
}

// Playheads 按顺序返回 playhead
func (s DomainEventStream) Playheads() []int64 {
	out := make([]int64, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.playhead
	}
	return out
}

// Map 对每条消息应用 fn，返回新的事件流
func (s DomainEventStream) Map(fn func(DomainMessage) DomainMessage) DomainEventStream {
	out := make([]DomainMessage, len(s.messages))
	for i, m := range s.messages {
		out[i] = fn(m)
	}
	return DomainEventStream{messages: out}
}

// Filter 保留满足 keep 的消息
func (s DomainEventStream) Filter(keep func(DomainMessage) bool) DomainEventStream {
	out := make([]DomainMessage, 0, len(s.messages))
	for _, m := range s.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	return DomainEventStream{messages: out}
}

// FromPlayhead 保留 playhead >= from 的消息
func (s DomainEventStream) FromPlayhead(from int64) DomainEventStream {
	return s.Filter(func(m DomainMessage) bool { return m.playhead >= from })
}
