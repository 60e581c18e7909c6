package outbox

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

// Event is one domain event to be written to the outbox in the caller's transaction.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	PartitionKey  string
	// DedupeKey makes enqueueing idempotent; a repeated key is ignored.
	DedupeKey string
	Payload   any
}

// Enqueue inserts ev into the outbox using tx, so it commits or rolls back with the state change.
func Enqueue(ctx context.Context, tx pgx.Tx, ev Event) error {
	route, err := RouteFor(ev.EventType)
	if err != nil {
		return err
	}
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		ev.AggregateType,
		ev.AggregateID,
		ev.EventType,
		route.Topic,
		route.SchemaSubject,
		ev.PartitionKey,
		body,
		nullIfEmpty(ev.DedupeKey),
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
