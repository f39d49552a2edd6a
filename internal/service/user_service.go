package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	users "github.com/AdamBeresnev/bracket-engine/internal/user"
	"github.com/google/uuid"
)

type UserService struct {
	store *store.UserStore
}

func NewUserService(store *store.UserStore) *UserService {
	return &UserService{store: store}
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	return s.store.GetUser(ctx, id)
}

// EnsureUser mirrors an identity issued by the auth service. The stored handle
// and role follow the latest token.
func (s *UserService) EnsureUser(ctx context.Context, id uuid.UUID, username string, role users.Role) (*users.User, error) {
	username = strings.TrimSpace(username)
	if role == "" {
		role = users.RolePlayer
	}

	user, err := s.store.GetUser(ctx, id)
	switch {
	case err == nil:
		if (username == "" || user.Username == username) && user.Role == role {
			return user, nil
		}
		if username != "" {
			user.Username = username
		}
		user.Role = role
	case errors.Is(err, bracket.ErrNotFound):
		if username == "" {
			username = "player-" + id.String()[:8]
		}
		user = &users.User{ID: id, Username: username, Role: role, CreatedAt: time.Now().UTC()}
	default:
		return nil, err
	}

	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
