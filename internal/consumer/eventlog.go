package consumer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLog records every handled record in Postgres and skips records it has already seen,
// so a redelivered event does not notify twice.
type EventLog struct {
	pool *pgxpool.Pool
	next Handler
}

// NewEventLog wraps next with the log backed by pool.
func NewEventLog(pool *pgxpool.Pool, next Handler) *EventLog {
	return &EventLog{pool: pool, next: next}
}

// Handle stores msg and calls the wrapped handler in one transaction. The row is kept only
// when the wrapped handler succeeds.
func (l *EventLog) Handle(ctx context.Context, msg Message) (err error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`INSERT INTO activity_event_log (event_type, schema_id, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.SchemaID,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		recordDuplicate(msg.Topic)
		return tx.Rollback(ctx)
	}

	if err = l.next.Handle(ctx, msg); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
