package bracket

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentPreparing   TournamentStatus = "preparing"
	TournamentRegistering TournamentStatus = "registering"
	TournamentActive      TournamentStatus = "active"
	TournamentCompleted   TournamentStatus = "completed"
	TournamentCancelled   TournamentStatus = "cancelled"
)

func (s TournamentStatus) Valid() bool {
	switch s {
	case TournamentPreparing, TournamentRegistering, TournamentActive, TournamentCompleted, TournamentCancelled:
		return true
	}
	return false
}

func (s TournamentStatus) Terminal() bool {
	return s == TournamentCompleted || s == TournamentCancelled
}

var tournamentTransitions = map[TournamentStatus][]TournamentStatus{
	TournamentPreparing:   {TournamentRegistering, TournamentCancelled},
	TournamentRegistering: {TournamentActive, TournamentCancelled},
	TournamentActive:      {TournamentCompleted, TournamentCancelled},
}

func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	for _, allowed := range tournamentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type TournamentType string

const (
	SingleElimination TournamentType = "single_elimination"
	DoubleElimination TournamentType = "double_elimination"
	RoundRobin        TournamentType = "round_robin"
	Swiss             TournamentType = "swiss"
)

func (t TournamentType) Valid() bool {
	switch t {
	case SingleElimination, DoubleElimination, RoundRobin, Swiss:
		return true
	}
	return false
}

// Supported reports whether brackets can be generated for the type.
func (t TournamentType) Supported() bool {
	return t == SingleElimination
}

const MaxNameLength = 100

type Tournament struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	Name            string           `db:"name" json:"name"`
	Description     *string          `db:"description" json:"description,omitempty"`
	Type            TournamentType   `db:"tournament_type" json:"type"`
	Status          TournamentStatus `db:"status" json:"status"`
	MaxParticipants int              `db:"max_participants" json:"max_participants"`
	EntryFee        int64            `db:"entry_fee" json:"entry_fee"`
	PrizePool       int64            `db:"prize_pool" json:"prize_pool"`
	CreatorID       uuid.UUID        `db:"creator_id" json:"creator_id"`
	ChampionID      *uuid.UUID       `db:"champion_id" json:"champion_id,omitempty"`
	CancelReason    *string          `db:"cancel_reason" json:"cancel_reason,omitempty"`

	StartsAt    *time.Time `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt      *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Validate checks the user-controlled fields of a tournament.
func (t *Tournament) Validate() error {
	name := strings.TrimSpace(t.Name)
	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, MaxNameLength)
	case !t.Type.Valid():
		return fmt.Errorf("%w: unknown tournament type %q", ErrValidation, t.Type)
	case !t.Type.Supported():
		return fmt.Errorf("%w: tournament type %q is not supported yet", ErrValidation, t.Type)
	case t.MaxParticipants < 2:
		return fmt.Errorf("%w: max_participants must be at least 2", ErrValidation)
	case t.EntryFee < 0:
		return fmt.Errorf("%w: entry_fee must not be negative", ErrValidation)
	case t.PrizePool < 0:
		return fmt.Errorf("%w: prize_pool must not be negative", ErrValidation)
	case t.StartsAt != nil && t.EndsAt != nil && !t.EndsAt.After(*t.StartsAt):
		return fmt.Errorf("%w: ends_at must be after starts_at", ErrValidation)
	}
	return nil
}

// TransitionTo moves the tournament to next and stamps the matching
// lifecycle timestamp. The tournament is untouched on error.
func (t *Tournament) TransitionTo(next TournamentStatus, now time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: tournament is %s, cannot move to %s", ErrInvalidTransition, t.Status, next)
	}

	t.Status = next
	t.UpdatedAt = now
	switch next {
	case TournamentActive:
		t.StartedAt = &now
	case TournamentCompleted:
		t.CompletedAt = &now
	case TournamentCancelled:
		t.CancelledAt = &now
	}
	return nil
}

// Editable reports whether tournament settings may still change.
func (t *Tournament) Editable() bool {
	return t.Status == TournamentPreparing || t.Status == TournamentRegistering
}
