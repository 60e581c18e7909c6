// Package persistence selects the repository backend used by the binaries.
package persistence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/errors"

	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/persistence/memory"
	"example.com/shareactivities/internal/persistence/postgres"
)

// Backend names accepted by Open.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Stores bundles the repositories of one backend. Pool is nil for the memory backend.
type Stores struct {
	Activities domain.ActivityRepository
	Families   domain.FamilyRepository
	Users      domain.UserRepository
	Chat       domain.ChatRepository
	Pool       *pgxpool.Pool
	Memory     *memory.Store
}

// Open connects the requested backend.
func Open(ctx context.Context, backend, postgresURL string) (*Stores, error) {
	switch backend {
	case BackendMemory:
		store := memory.NewStore()
		return &Stores{
			Activities: store.Activities(),
			Families:   store.Families(),
			Users:      store.Users(),
			Chat:       store.Chat(),
			Memory:     store,
		}, nil
	case BackendPostgres, "":
		pool, err := pgxpool.New(ctx, postgresURL)
		if err != nil {
			return nil, errors.Annotate(err, "connect to postgres")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, errors.Annotate(err, "ping postgres")
		}
		return &Stores{
			Activities: postgres.NewActivityRepository(pool),
			Families:   postgres.NewFamilyRepository(pool),
			Users:      postgres.NewUserRepository(pool),
			Chat:       postgres.NewChatRepository(pool),
			Pool:       pool,
		}, nil
	}
	return nil, errors.NotValidf("store backend %q", backend)
}

// Close releases the connection pool, if any.
func (s *Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}
