package store

import (
	"context"
	"fmt"

	users "github.com/AdamBeresnev/bracket-engine/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type UserStore struct {
	db *sqlx.DB
}

const (
	getUserQuery    = "SELECT * FROM users WHERE id = ?"
	getUsersQuery   = "SELECT * FROM users WHERE id IN (?)"
	upsertUserQuery = `
		INSERT INTO users (id, username, avatar_url, role, created_at) VALUES
		(:id, :username, :avatar_url, :role, :created_at)
		ON CONFLICT (id) DO UPDATE SET
		username = excluded.username,
		avatar_url = excluded.avatar_url,
		role = excluded.role
	`
)

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	var user users.User
	err := s.db.GetContext(ctx, &user, s.db.Rebind(getUserQuery), id)
	if err != nil {
		return nil, translate(err, "get user")
	}
	return &user, nil
}

// GetUsers resolves a batch of ids. Unknown ids are simply absent from the map.
func (s *UserStore) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]users.User, error) {
	result := make(map[uuid.UUID]users.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	query, params, err := sqlx.In(getUsersQuery, args)
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	var found []users.User
	if err := s.db.SelectContext(ctx, &found, s.db.Rebind(query), params...); err != nil {
		return nil, translate(err, "get users")
	}
	for _, u := range found {
		result[u.ID] = u
	}
	return result, nil
}

// UpsertUser creates the user or refreshes its handle, avatar and role.
func (s *UserStore) UpsertUser(ctx context.Context, user *users.User) error {
	_, err := s.db.NamedExecContext(ctx, upsertUserQuery, user)
	return translate(err, "upsert user")
}
