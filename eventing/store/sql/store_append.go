package sql

import (
	"context"
	"errors"
	"fmt"

	"eventcore/data/db"
	"eventcore/eventing"
	estore "eventcore/eventing/store"
	"eventcore/logging"
)

// Append 在单个事务中校验并写入整批事件
//
// 序列校验与唯一约束共同保证并发追加时最多一个写者成功，
// 唯一约束冲突映射为 *eventing.DuplicatePlayheadError。
func (s *SQLEventStore) Append(ctx context.Context, id any, stream eventing.DomainEventStream) error {
	key, err := eventing.IdentityString(id)
	if err != nil {
		return err
	}
	if stream.IsEmpty() {
		return nil
	}

	messages := stream.Messages()
	rows := make([]row, len(messages))
	for i, msg := range messages {
		if rows[i], err = s.encode(key, msg); err != nil {
			return err
		}
	}

	insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.dialect.QuoteIdentifier(s.tableName), selectColumns)

	err = db.WithTx(ctx, s.db, func(tx db.ITransaction) error {
		current, err := s.currentPlayhead(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := estore.CheckSequence(key, current, messages); err != nil {
			return err
		}
		for _, r := range rows {
			_, err := tx.Exec(ctx, insert,
				r.aggregateID, r.playhead, r.eventType, r.payloadType, r.payload, r.metadata, r.recordedOn)
			if err != nil {
				if s.dialect.IsUniqueViolation(err) {
					dup := eventing.NewDuplicatePlayheadError(key, r.playhead, current)
					dup.Cause = err
					return dup
				}
				return fmt.Errorf("insert event %s@%d: %w", key, r.playhead, err)
			}
		}
		return nil
	})
	if err != nil {
		// 并发写者在事务提交时才发现冲突，提交错误同样可能是唯一约束
		var dup *eventing.DuplicatePlayheadError
		if !errors.As(err, &dup) && s.dialect.IsUniqueViolation(err) {
			dup = eventing.NewDuplicatePlayheadError(key, messages[0].Playhead(), -1)
			dup.Cause = err
			err = dup
		}
		s.logger.Debug(ctx, "追加事件失败", logging.String("aggregate_id", key), logging.Error(err))
		return err
	}

	s.logger.Debug(ctx, "追加事件",
		logging.String("aggregate_id", key),
		logging.Int("count", len(messages)),
		logging.Int64("playhead", messages[len(messages)-1].Playhead()))
	return nil
}

func (s *SQLEventStore) currentPlayhead(ctx context.Context, tx db.ITransaction, key string) (int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(playhead), -1) FROM %s WHERE aggregate_id = ?`,
		s.dialect.QuoteIdentifier(s.tableName))
	var current int64
	if err := tx.QueryRow(ctx, query, key).Scan(&current); err != nil {
		return 0, fmt.Errorf("query current playhead of %s: %w", key, err)
	}
	return current, nil
}
