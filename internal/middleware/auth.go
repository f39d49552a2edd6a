package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/bracket-engine/internal/httputil"
	users "github.com/AdamBeresnev/bracket-engine/internal/user"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

type ContextKey string

const UserIDKey ContextKey = "userID"
const RoleKey ContextKey = "role"

// SessionUserKey is the scs key holding the signed-in user id.
const SessionUserKey = "userID"

type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*users.User, error)
	EnsureUser(ctx context.Context, id uuid.UUID, username string, role users.Role) (*users.User, error)
}

// LoadIdentity resolves the caller from a bearer token or, failing that, the
// browser session. Anonymous requests pass through untouched.
func LoadIdentity(sessionManager *scs.SessionManager, verifier *TokenVerifier, directory UserDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
				claims, userID, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
				if err != nil {
					slog.Warn("rejected bearer token", "error", err)
					httputil.Unauthorized(w)
					return
				}
				user, err := directory.EnsureUser(ctx, userID, claims.Name, claims.Role)
				if err != nil {
					httputil.InternalServerError(w, "Failed to resolve user", err)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
				return
			}

			if sessionManager != nil {
				if userIDStr := sessionManager.GetString(ctx, SessionUserKey); userIDStr != "" {
					userID, err := uuid.Parse(userIDStr)
					if err != nil {
						sessionManager.Remove(ctx, SessionUserKey)
					} else if user, err := directory.GetUser(ctx, userID); err == nil {
						ctx = WithUser(ctx, user)
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserIDFromContext(r.Context()); !ok {
			httputil.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithIdentity attaches a caller to ctx without a full user record.
func WithIdentity(ctx context.Context, userID uuid.UUID, role users.Role) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, RoleKey, role)
}

func WithUser(ctx context.Context, user *users.User) context.Context {
	ctx = WithIdentity(ctx, user.ID, user.Role)
	return context.WithValue(ctx, users.UserKey, user)
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(UserIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}

func IsAdmin(ctx context.Context) bool {
	role, _ := ctx.Value(RoleKey).(users.Role)
	return role == users.RoleAdmin
}

func GetAuthenticatedUser(ctx context.Context) *users.User {
	user, ok := ctx.Value(users.UserKey).(*users.User)
	if !ok {
		return nil
	}
	return user
}
