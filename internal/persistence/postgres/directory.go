package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/shareactivities/internal/domain"
)

// FamilyRepository reads families and memberships.
type FamilyRepository struct {
	pool *pgxpool.Pool
}

// NewFamilyRepository constructs a FamilyRepository.
func NewFamilyRepository(pool *pgxpool.Pool) *FamilyRepository {
	return &FamilyRepository{pool: pool}
}

// FindByID returns nil when the family does not exist.
func (r *FamilyRepository) FindByID(ctx context.Context, id string) (*domain.Family, error) {
	var f domain.Family
	err := r.pool.QueryRow(ctx, `SELECT family_id, name FROM families WHERE family_id = $1`, id).Scan(&f.ID, &f.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// ListMembers returns the members of familyID, or domain.ErrFamilyNotFound.
func (r *FamilyRepository) ListMembers(ctx context.Context, familyID string) ([]domain.Member, error) {
	family, err := r.FindByID(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, domain.ErrFamilyNotFound
	}

	const query = `SELECT u.user_id, u.name, u.email, COALESCE(u.push_token, ''), m.is_admin
        FROM family_members m JOIN users u ON u.user_id = m.user_id
        WHERE m.family_id = $1
        ORDER BY u.name, u.user_id`

	rows, err := r.pool.Query(ctx, query, familyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Member, error) {
		var m domain.Member
		err := row.Scan(&m.User.ID, &m.User.Name, &m.User.Email, &m.User.PushToken, &m.IsAdmin)
		return m, err
	})
}

// UserRepository reads users.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByID returns nil when the user does not exist.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT user_id, name, email, COALESCE(push_token, '') FROM users WHERE user_id = $1`, id)
}

// FindByEmail matches case-insensitively and returns nil when no user has email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT user_id, name, email, COALESCE(push_token, '') FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	var u domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PushToken); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// ChatRepository persists room messages.
type ChatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository constructs a ChatRepository.
func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

// Save stores msg.
func (r *ChatRepository) Save(ctx context.Context, msg domain.ChatMessage) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_messages (message_id, room_id, sender_id, content, created_at) VALUES ($1,$2,$3,$4,$5)`,
		msg.ID, msg.RoomID, msg.SenderID, msg.Content, msg.CreatedAt,
	)
	return err
}

// FindAllByRoom returns the room history oldest first.
func (r *ChatRepository) FindAllByRoom(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT message_id, room_id, sender_id, content, created_at FROM chat_messages WHERE room_id = $1 ORDER BY created_at, message_id`,
		roomID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ChatMessage, error) {
		var m domain.ChatMessage
		err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.CreatedAt)
		m.CreatedAt = m.CreatedAt.UTC()
		return m, err
	})
}
