package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/ledger"
	"github.com/AdamBeresnev/bracket-engine/internal/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Ledger moves coins on behalf of tournaments. Every call joins the
// transaction passed as ext.
type Ledger interface {
	Debit(ctx context.Context, ext sqlx.ExtContext, key ledger.Key, userID uuid.UUID, amount int64) (bool, error)
	Credit(ctx context.Context, ext sqlx.ExtContext, key ledger.Key, userID uuid.UUID, amount int64) (bool, error)
	Refund(ctx context.Context, ext sqlx.ExtContext, tournamentID, participantID uuid.UUID) (int64, error)
}

// Notifier receives tournament events once they are committed.
type Notifier interface {
	Publish(tournamentID uuid.UUID, messageType string, payload interface{})
}

type nopNotifier struct{}

func (nopNotifier) Publish(uuid.UUID, string, interface{}) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func callerID(ctx context.Context) (uuid.UUID, error) {
	id, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: not signed in", bracket.ErrForbidden)
	}
	return id, nil
}

func requireCreator(ctx context.Context, t *bracket.Tournament, allowAdmin bool) error {
	id, err := callerID(ctx)
	if err != nil {
		return err
	}
	if id == t.CreatorID || (allowAdmin && middleware.IsAdmin(ctx)) {
		return nil
	}
	return fmt.Errorf("%w: only the tournament creator may do this", bracket.ErrForbidden)
}

// checkInvariant logs defects loudly before handing the error back.
func checkInvariant(op string, tournamentID uuid.UUID, err error) error {
	if errors.Is(err, bracket.ErrInvariant) {
		slog.Error("bracket invariant violated", "op", op, "tournament_id", tournamentID, "error", err)
	}
	return err
}
