package sql

import (
	"context"
	"fmt"
	"strings"

	"eventcore/eventing"
	estore "eventcore/eventing/store"
)

func (s *SQLEventStore) Load(ctx context.Context, id any) (eventing.DomainEventStream, error) {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return eventing.DomainEventStream{}, err
	}
	stream, err := s.load(ctx, key, 0, false)
	if err != nil {
		return eventing.DomainEventStream{}, err
	}
	if stream.IsEmpty() {
		return eventing.DomainEventStream{}, eventing.NewStreamNotFoundError(key)
	}
	return stream, nil
}

func (s *SQLEventStore) LoadFromPlayhead(ctx context.Context, id any, playhead int64) (eventing.DomainEventStream, error) {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return eventing.DomainEventStream{}, err
	}
	return s.load(ctx, key, playhead, true)
}

func (s *SQLEventStore) load(ctx context.Context, key string, from int64, bounded bool) (eventing.DomainEventStream, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE aggregate_id = ?`,
		selectColumns, s.dialect.QuoteIdentifier(s.tableName))
	args := []any{key}
	if bounded {
		query += ` AND playhead >= ?`
		args = append(args, from)
	}
	query += ` ORDER BY playhead ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return eventing.DomainEventStream{}, fmt.Errorf("load events of %s: %w", key, err)
	}
	records, err := scanRows(rows)
	if err != nil {
		return eventing.DomainEventStream{}, fmt.Errorf("scan events of %s: %w", key, err)
	}
	return s.decodeAll(records)
}

func (s *SQLEventStore) decodeAll(records []row) (eventing.DomainEventStream, error) {
	messages := make([]eventing.DomainMessage, 0, len(records))
	for _, r := range records {
		msg, err := s.decode(r)
		if err != nil {
			return eventing.DomainEventStream{}, err
		}
		messages = append(messages, msg)
	}
	return eventing.NewDomainEventStream(messages...), nil
}

// VisitEvents 按追加顺序（seq）遍历事件，过滤条件下推到 WHERE 子句
func (s *SQLEventStore) VisitEvents(ctx context.Context, criteria *estore.Criteria, visitor estore.IEventVisitor) error {
	matcher, err := criteria.Compile()
	if err != nil {
		return err
	}

	var (
		where []string
		args  []any
	)
	if ids := matcher.AggregateIDs(); ids != nil {
		where = append(where, "aggregate_id IN ("+placeholders(len(ids))+")")
		for _, id := range ids {
			args = append(args, id)
		}
	}
	if types := matcher.EventTypes(); types != nil {
		where = append(where, "type IN ("+placeholders(len(types))+")")
		for _, t := range types {
			args = append(args, t)
		}
	}
	query := fmt.Sprintf(`SELECT %s FROM %s`, selectColumns, s.dialect.QuoteIdentifier(s.tableName))
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("visit events: %w", err)
	}
	// 先读完结果集再回调，避免 visitor 在单连接池上访问存储时死锁
	records, err := scanRows(rows)
	if err != nil {
		return fmt.Errorf("visit events: %w", err)
	}
	for _, r := range records {
		msg, err := s.decode(r)
		if err != nil {
			return err
		}
		if err := visitor.DoWithEvent(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
