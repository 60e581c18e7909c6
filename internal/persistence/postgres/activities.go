// Package postgres provides Postgres-backed repositories. Activity writes record their
// domain events in the outbox within the same transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/events"
	"example.com/shareactivities/internal/observability"
	"example.com/shareactivities/internal/outbox"
)

const activityColumns = `activity_id, name, description, type, priority, notes, location, attachments, status,
        owner_id, family_id, created_at, updated_at, expires_at, recur_on`

// ActivityRepository persists activities and their outbox events.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// FindAll returns every activity ordered by creation time.
func (r *ActivityRepository) FindAll(ctx context.Context) ([]domain.Activity, error) {
	return r.list(ctx, `SELECT `+activityColumns+` FROM activities ORDER BY created_at, activity_id`)
}

// ListByFamily returns the activities of one family.
func (r *ActivityRepository) ListByFamily(ctx context.Context, familyID string) ([]domain.Activity, error) {
	return r.list(ctx, `SELECT `+activityColumns+` FROM activities WHERE family_id = $1 ORDER BY created_at, activity_id`, familyID)
}

// ListPersonalByOwnerEmail returns the activities without family owned by the user with email.
func (r *ActivityRepository) ListPersonalByOwnerEmail(ctx context.Context, email string) ([]domain.Activity, error) {
	const query = `SELECT a.activity_id, a.name, a.description, a.type, a.priority, a.notes, a.location, a.attachments, a.status,
        a.owner_id, a.family_id, a.created_at, a.updated_at, a.expires_at, a.recur_on
        FROM activities a JOIN users u ON u.user_id = a.owner_id
        WHERE a.family_id IS NULL AND lower(u.email) = lower($1)
        ORDER BY a.created_at, a.activity_id`
	return r.list(ctx, query, email)
}

// FindByID returns nil when the activity does not exist.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id = $1`, id)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

// ExistsByID reports whether an activity row exists.
func (r *ActivityRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM activities WHERE activity_id = $1)`, id).Scan(&exists)
	return exists, err
}

// DeleteByID removes an activity. Deleting a missing row is not an error.
func (r *ActivityRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE activity_id = $1`, id)
	return err
}

// Save inserts or updates activity. An insert enqueues activity.created; an update that
// changes the status enqueues activity.status_changed.
func (r *ActivityRepository) Save(ctx context.Context, activity domain.Activity) (err error) {
	if activity.UpdatedAt.IsZero() {
		activity.UpdatedAt = activity.CreatedAt
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var previous string
	err = tx.QueryRow(ctx, `SELECT status FROM activities WHERE activity_id = $1 FOR UPDATE`, activity.ID).Scan(&previous)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if err = r.insert(ctx, tx, activity); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err = r.update(ctx, tx, activity, domain.Status(previous)); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

func (r *ActivityRepository) insert(ctx context.Context, tx pgx.Tx, a domain.Activity) error {
	const stmt = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	if _, err := tx.Exec(ctx, stmt, activityArgs(a)...); err != nil {
		return fmt.Errorf("insert activity %s: %w", a.ID, err)
	}

	return outbox.Enqueue(ctx, tx, outbox.Event{
		AggregateType: "activity",
		AggregateID:   a.ID,
		EventType:     events.TypeActivityCreated,
		PartitionKey:  partitionKey(a),
		DedupeKey:     fmt.Sprintf("%s:%s", a.ID, events.TypeActivityCreated),
		Payload: events.ActivityCreated{
			ActivityID: a.ID,
			Name:       a.Name,
			OwnerID:    a.OwnerID,
			FamilyID:   a.FamilyID,
			Status:     string(a.Status),
			CreatedAt:  a.CreatedAt,
			ExpiresAt:  a.ExpiresAt,
			RecurOn:    a.RecurOn,
		},
	})
}

func (r *ActivityRepository) update(ctx context.Context, tx pgx.Tx, a domain.Activity, previous domain.Status) error {
	const stmt = `UPDATE activities SET name = $2, description = $3, type = $4, priority = $5, notes = $6, location = $7,
        attachments = $8, status = $9, owner_id = $10, family_id = $11, created_at = $12, updated_at = $13,
        expires_at = $14, recur_on = $15
        WHERE activity_id = $1`

	if _, err := tx.Exec(ctx, stmt, activityArgs(a)...); err != nil {
		return fmt.Errorf("update activity %s: %w", a.ID, err)
	}
	if previous == a.Status {
		return nil
	}

	return outbox.Enqueue(ctx, tx, outbox.Event{
		AggregateType: "activity",
		AggregateID:   a.ID,
		EventType:     events.TypeActivityStatusChanged,
		PartitionKey:  partitionKey(a),
		DedupeKey:     fmt.Sprintf("%s:%s:%d", a.ID, events.TypeActivityStatusChanged, a.UpdatedAt.UnixNano()),
		Payload: events.ActivityStatusChanged{
			ActivityID:     a.ID,
			Name:           a.Name,
			OwnerID:        a.OwnerID,
			FamilyID:       a.FamilyID,
			PreviousStatus: string(previous),
			Status:         string(a.Status),
			OccurredAt:     a.UpdatedAt,
		},
	})
}

func (r *ActivityRepository) list(ctx context.Context, query string, args ...any) ([]domain.Activity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, activity)
	}
	return results, rows.Err()
}

// partitionKey keeps every event of one family, or of one owner's personal list, ordered.
func partitionKey(a domain.Activity) string {
	if a.HasFamily() {
		return "family:" + a.FamilyID
	}
	return "owner:" + a.OwnerID
}

func activityArgs(a domain.Activity) []any {
	attachments := a.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return []any{
		a.ID, a.Name, a.Description, a.Type, a.Priority, a.Notes, a.Location, attachments, string(a.Status),
		a.OwnerID, nullIfEmpty(a.FamilyID), a.CreatedAt, a.UpdatedAt, a.ExpiresAt, a.RecurOn,
	}
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var (
		a        domain.Activity
		status   string
		familyID *string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Type, &a.Priority, &a.Notes, &a.Location, &a.Attachments,
		&status, &a.OwnerID, &familyID, &a.CreatedAt, &a.UpdatedAt, &a.ExpiresAt, &a.RecurOn)
	if err != nil {
		return domain.Activity{}, err
	}
	a.Status = domain.Status(status)
	if familyID != nil {
		a.FamilyID = *familyID
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	a.ExpiresAt = utcPtr(a.ExpiresAt)
	a.RecurOn = utcPtr(a.RecurOn)
	return a, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
