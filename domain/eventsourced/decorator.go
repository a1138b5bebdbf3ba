package eventsourced

import (
	"context"

	"github.com/google/uuid"

	"eventcore/eventing"
)

// IEventStreamDecorator 保存前对事件流做变换，例如补充元数据
//
// 实现只能变换单个聚合的流，不得增删或重排消息。
type IEventStreamDecorator interface {
	DecorateForWrite(ctx context.Context, id string, stream eventing.DomainEventStream) eventing.DomainEventStream
}

// EventStreamDecoratorFunc 函数式装饰器
type EventStreamDecoratorFunc func(ctx context.Context, id string, stream eventing.DomainEventStream) eventing.DomainEventStream

func (f EventStreamDecoratorFunc) DecorateForWrite(ctx context.Context, id string, stream eventing.DomainEventStream) eventing.DomainEventStream {
	return f(ctx, id, stream)
}

// IMetadataEnricher 为单条消息生成附加元数据
type IMetadataEnricher interface {
	Enrich(ctx context.Context, msg eventing.DomainMessage) eventing.Metadata
}

// MetadataEnricherFunc 函数式 enricher
type MetadataEnricherFunc func(ctx context.Context, msg eventing.DomainMessage) eventing.Metadata

func (f MetadataEnricherFunc) Enrich(ctx context.Context, msg eventing.DomainMessage) eventing.Metadata {
	return f(ctx, msg)
}

// MetadataEnrichingDecorator 依次应用 enricher，后者覆盖前者的同名键
type MetadataEnrichingDecorator struct {
	enrichers []IMetadataEnricher
}

func NewMetadataEnrichingDecorator(enrichers ...IMetadataEnricher) *MetadataEnrichingDecorator {
	return &MetadataEnrichingDecorator{enrichers: enrichers}
}

// Register 追加 enricher
func (d *MetadataEnrichingDecorator) Register(e IMetadataEnricher) {
	d.enrichers = append(d.enrichers, e)
}

func (d *MetadataEnrichingDecorator) DecorateForWrite(ctx context.Context, _ string, stream eventing.DomainEventStream) eventing.DomainEventStream {
	if len(d.enrichers) == 0 {
		return stream
	}
	return stream.Map(func(msg eventing.DomainMessage) eventing.DomainMessage {
		for _, e := range d.enrichers {
			msg = msg.AndMetadata(e.Enrich(ctx, msg))
		}
		return msg
	})
}

// CorrelationEnricher 从上下文复制关联 ID 与因果 ID
type CorrelationEnricher struct{}

func (CorrelationEnricher) Enrich(ctx context.Context, _ eventing.DomainMessage) eventing.Metadata {
	var md eventing.Metadata
	if id := eventing.CorrelationID(ctx); id != "" {
		md = md.With(eventing.MetadataCorrelationID, id)
	}
	if id := eventing.CausationID(ctx); id != "" {
		md = md.With(eventing.MetadataCausationID, id)
	}
	return md
}

// MessageIDEnricher 为尚无 message_id 的消息生成 UUID
type MessageIDEnricher struct{}

func (MessageIDEnricher) Enrich(_ context.Context, msg eventing.DomainMessage) eventing.Metadata {
	if _, ok := msg.Metadata().Get(eventing.MetadataMessageID); ok {
		return eventing.Metadata{}
	}
	return eventing.MetadataOf(eventing.MetadataMessageID, uuid.NewString())
}

// StaticEnricher 为每条消息附加固定元数据
type StaticEnricher struct {
	Metadata eventing.Metadata
}

func (e StaticEnricher) Enrich(context.Context, eventing.DomainMessage) eventing.Metadata {
	return e.Metadata
}

var (
	_ IEventStreamDecorator = (*MetadataEnrichingDecorator)(nil)
	_ IMetadataEnricher     = CorrelationEnricher{}
	_ IMetadataEnricher     = MessageIDEnricher{}
	_ IMetadataEnricher     = StaticEnricher{}
)
