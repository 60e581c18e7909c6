//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/events"
)

func TestActivityRepositoryRecordsOutboxEvents(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	seedDirectory(t, ctx, pool)

	repo := NewActivityRepository(pool)
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	recur := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	activity := domain.Activity{
		ID:          uuid.NewString(),
		Name:        "Pagar luz",
		Status:      domain.StatusPending,
		OwnerID:     "u-1",
		FamilyID:    "f-1",
		Attachments: []string{"boleto.pdf"},
		CreatedAt:   created,
		UpdatedAt:   created,
		RecurOn:     &recur,
	}
	require.NoError(t, repo.Save(ctx, activity))

	stored, err := repo.FindByID(ctx, activity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "f-1", stored.FamilyID)
	require.Equal(t, []string{"boleto.pdf"}, stored.Attachments)
	require.True(t, recur.Equal(*stored.RecurOn))
	require.Nil(t, stored.ExpiresAt)

	// Same status: no new event.
	stored.Notes = "conta de janeiro"
	require.NoError(t, repo.Save(ctx, *stored))

	stored.Status = domain.StatusDone
	stored.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, repo.Save(ctx, *stored))

	rows, err := pool.Query(ctx, `SELECT event_type, topic, partition_key FROM outbox ORDER BY event_id`)
	require.NoError(t, err)
	defer rows.Close()

	var got [][3]string
	for rows.Next() {
		var row [3]string
		require.NoError(t, rows.Scan(&row[0], &row[1], &row[2]))
		got = append(got, row)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, [][3]string{
		{events.TypeActivityCreated, "activity_events", "family:f-1"},
		{events.TypeActivityStatusChanged, "activity_status_changed", "family:f-1"},
	}, got)
}

func TestActivityRepositoryListings(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	seedDirectory(t, ctx, pool)

	repo := NewActivityRepository(pool)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	personal := domain.Activity{ID: "a-personal", Name: "Dentista", Status: domain.StatusPending, OwnerID: "u-1", CreatedAt: now}
	family := domain.Activity{ID: "a-family", Name: "Mercado", Status: domain.StatusPending, OwnerID: "u-2", FamilyID: "f-1", CreatedAt: now.Add(time.Minute)}
	require.NoError(t, repo.Save(ctx, personal))
	require.NoError(t, repo.Save(ctx, family))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "a-personal", all[0].ID)

	byFamily, err := repo.ListByFamily(ctx, "f-1")
	require.NoError(t, err)
	require.Len(t, byFamily, 1)
	require.Equal(t, "a-family", byFamily[0].ID)

	mine, err := repo.ListPersonalByOwnerEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "a-personal", mine[0].ID)

	exists, err := repo.ExistsByID(ctx, "a-family")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, repo.DeleteByID(ctx, "a-family"))
	missing, err := repo.FindByID(ctx, "a-family")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestDirectoryRepositories(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	seedDirectory(t, ctx, pool)

	users := NewUserRepository(pool)
	user, err := users.FindByEmail(ctx, "ana@EXAMPLE.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, "ExponentPushToken[ana]", user.PushToken)

	unknown, err := users.FindByID(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, unknown)

	families := NewFamilyRepository(pool)
	members, err := families.ListMembers(ctx, "f-1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, "", members[1].User.PushToken)

	_, err = families.ListMembers(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrFamilyNotFound)

	chat := NewChatRepository(pool)
	at := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, chat.Save(ctx, domain.ChatMessage{ID: "m-2", RoomID: "f-1", SenderID: "u-2", Content: "depois", CreatedAt: at.Add(time.Second)}))
	require.NoError(t, chat.Save(ctx, domain.ChatMessage{ID: "m-1", RoomID: "f-1", SenderID: "u-1", Content: "oi", CreatedAt: at}))

	history, err := chat.FindAllByRoom(ctx, "f-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "m-1", history[0].ID)
}

func seedDirectory(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	stmts := []string{
		`INSERT INTO users (user_id, name, email, push_token) VALUES ('u-1', 'Ana', 'ana@example.com', 'ExponentPushToken[ana]')`,
		`INSERT INTO users (user_id, name, email) VALUES ('u-2', 'Bruno', 'bruno@example.com')`,
		`INSERT INTO families (family_id, name) VALUES ('f-1', 'Casa')`,
		`INSERT INTO family_members (family_id, user_id, is_admin) VALUES ('f-1', 'u-1', TRUE), ('f-1', 'u-2', FALSE)`,
	}
	for _, stmt := range stmts {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}
}

func setupPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("shareactivities"),
		postgrescontainer.WithUsername("household"),
		postgrescontainer.WithPassword("household"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	files, err := filepath.Glob(filepath.Join(resolvePath(t, "../../../db/migrations"), "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)

	for _, file := range files {
		contents, err := os.ReadFile(file)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(contents))
		require.NoErrorf(t, err, "execute migration %s", file)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
