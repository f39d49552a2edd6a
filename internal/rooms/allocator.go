// Package rooms hands out live game sessions for matches that are about to
// start. Game rules run elsewhere; the engine only stores the reference.
package rooms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

type Allocator interface {
	AllocateSession(ctx context.Context, matchID uuid.UUID, participantIDs []uuid.UUID) (string, error)
}

// LocalAllocator issues opaque room references without talking to a game
// server. It is the default when no external allocator is configured.
type LocalAllocator struct{}

func NewLocalAllocator() *LocalAllocator {
	return &LocalAllocator{}
}

func (a *LocalAllocator) AllocateSession(ctx context.Context, matchID uuid.UUID, participantIDs []uuid.UUID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(participantIDs) != 2 {
		return "", fmt.Errorf("a session needs exactly 2 participants, got %d", len(participantIDs))
	}

	ref := "room-" + uuid.NewString()
	slog.Info("game session allocated", "match_id", matchID, "session_ref", ref)
	return ref, nil
}

// AllocatorFunc adapts a plain function to Allocator.
type AllocatorFunc func(ctx context.Context, matchID uuid.UUID, participantIDs []uuid.UUID) (string, error)

func (f AllocatorFunc) AllocateSession(ctx context.Context, matchID uuid.UUID, participantIDs []uuid.UUID) (string, error) {
	return f(ctx, matchID, participantIDs)
}
