package users

import (
	"time"

	"github.com/google/uuid"
)

type ContextKey string

const UserKey ContextKey = "user"

type Role string

const (
	RolePlayer Role = "player"
	RoleAdmin  Role = "admin"
)

// User mirrors an identity issued by the external auth service. Only the
// display handle is kept locally.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
