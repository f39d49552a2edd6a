package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	users "github.com/AdamBeresnev/bracket-engine/internal/user"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewUserStore(db)

	user := &users.User{ID: uuid.New(), Username: "kiri", Role: users.RolePlayer, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.UpsertUser(ctx, user))

	user.Username = "kirito"
	user.Role = users.RoleAdmin
	require.NoError(t, store.UpsertUser(ctx, user))

	fetched, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "kirito", fetched.Username)
	assert.True(t, fetched.IsAdmin())

	_, err = store.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, bracket.ErrNotFound)
}

func TestGetUsers(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewUserStore(db)

	var ids []uuid.UUID
	for _, name := range []string{"ann", "ben"} {
		u := &users.User{ID: uuid.New(), Username: name, Role: users.RolePlayer, CreatedAt: time.Now().UTC()}
		require.NoError(t, store.UpsertUser(ctx, u))
		ids = append(ids, u.ID)
	}

	found, err := store.GetUsers(ctx, append(ids, uuid.New()))
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "ann", found[ids[0]].Username)
	assert.Equal(t, "ben", found[ids[1]].Username)

	empty, err := store.GetUsers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
