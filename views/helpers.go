package views

import (
	"context"

	"github.com/AdamBeresnev/bracket-engine/internal/middleware"
	users "github.com/AdamBeresnev/bracket-engine/internal/user"
)

func GetUser(ctx context.Context) *users.User {
	return middleware.GetAuthenticatedUser(ctx)
}
