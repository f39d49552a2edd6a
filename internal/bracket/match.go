package bracket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchWaiting   MatchStatus = "waiting"
	MatchActive    MatchStatus = "active"
	MatchCompleted MatchStatus = "completed"
)

type Slot int

const (
	Slot1 Slot = 1
	Slot2 Slot = 2
)

// ReadyState records which seated participants have signalled readiness.
type ReadyState struct {
	Ready1 bool `db:"ready_1" json:"participant1"`
	Ready2 bool `db:"ready_2" json:"participant2"`
}

func (r ReadyState) Both() bool {
	return r.Ready1 && r.Ready2
}

func (r ReadyState) Has(slot Slot) bool {
	if slot == Slot1 {
		return r.Ready1
	}
	return r.Ready2
}

func (r *ReadyState) set(slot Slot) {
	if slot == Slot1 {
		r.Ready1 = true
	} else {
		r.Ready2 = true
	}
}

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Topology is derived from (round, position) only.
	Round    int `db:"round" json:"round"`
	Position int `db:"position" json:"position"`

	Participant1ID *uuid.UUID  `db:"participant1_id" json:"participant1_id"`
	Participant2ID *uuid.UUID  `db:"participant2_id" json:"participant2_id"`
	WinnerID       *uuid.UUID  `db:"winner_id" json:"winner_id"`
	Status         MatchStatus `db:"status" json:"status"`
	IsBye          bool        `db:"is_bye" json:"is_bye"`
	ReadyState     `json:"ready"`
	SessionRef     *string `db:"session_ref" json:"session_ref,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

func (m *Match) Participant(slot Slot) *uuid.UUID {
	if slot == Slot1 {
		return m.Participant1ID
	}
	return m.Participant2ID
}

// SlotOf returns the slot the participant occupies in this match.
func (m *Match) SlotOf(participantID uuid.UUID) (Slot, bool) {
	if m.Participant1ID != nil && *m.Participant1ID == participantID {
		return Slot1, true
	}
	if m.Participant2ID != nil && *m.Participant2ID == participantID {
		return Slot2, true
	}
	return 0, false
}

func (m *Match) bothSeated() bool {
	return m.Participant1ID != nil && m.Participant2ID != nil
}

// Seat places a participant into an empty slot of a pending match. Once both
// slots are filled the match moves to waiting.
func (m *Match) Seat(slot Slot, participantID uuid.UUID) error {
	if m.Status != MatchPending {
		return fmt.Errorf("%w: cannot seat into %s match %d/%d", ErrInvariant, m.Status, m.Round, m.Position)
	}
	if slot != Slot1 && slot != Slot2 {
		return fmt.Errorf("%w: unknown slot %d", ErrInvariant, slot)
	}
	if m.Participant(slot) != nil {
		return fmt.Errorf("%w: slot %d of match %d/%d is already taken", ErrInvariant, slot, m.Round, m.Position)
	}
	if other := m.Participant(3 - slot); other != nil && *other == participantID {
		return fmt.Errorf("%w: participant seated twice in match %d/%d", ErrInvariant, m.Round, m.Position)
	}

	id := participantID
	if slot == Slot1 {
		m.Participant1ID = &id
	} else {
		m.Participant2ID = &id
	}
	if m.bothSeated() {
		m.Status = MatchWaiting
	}
	return nil
}

// ResolveBye completes a round-one match that has exactly one participant,
// without it ever becoming active.
func (m *Match) ResolveBye(now time.Time) error {
	if m.Status != MatchPending {
		return fmt.Errorf("%w: bye on %s match", ErrInvalidTransition, m.Status)
	}
	var winner *uuid.UUID
	switch {
	case m.Participant1ID != nil && m.Participant2ID == nil:
		winner = m.Participant1ID
	case m.Participant1ID == nil && m.Participant2ID != nil:
		winner = m.Participant2ID
	default:
		return fmt.Errorf("%w: bye match %d/%d must have exactly one participant", ErrInvariant, m.Round, m.Position)
	}

	w := *winner
	m.WinnerID = &w
	m.IsBye = true
	m.Status = MatchCompleted
	m.CompletedAt = &now
	return nil
}

// MarkReady records a readiness signal. It reports whether anything changed;
// repeated signals from the same participant are no-ops.
func (m *Match) MarkReady(participantID uuid.UUID) (bool, error) {
	slot, ok := m.SlotOf(participantID)
	if !ok {
		return false, fmt.Errorf("%w: participant is not seated in this match", ErrValidation)
	}

	switch m.Status {
	case MatchWaiting:
		if m.Has(slot) {
			return false, nil
		}
		m.set(slot)
		return true, nil
	case MatchActive:
		return false, nil
	default:
		return false, fmt.Errorf("%w: cannot signal ready on %s match", ErrInvalidTransition, m.Status)
	}
}

// Activate starts gameplay once both participants are ready.
func (m *Match) Activate(sessionRef string) error {
	if m.Status != MatchWaiting {
		return fmt.Errorf("%w: cannot activate %s match", ErrInvalidTransition, m.Status)
	}
	if !m.Both() {
		return fmt.Errorf("%w: both participants must be ready", ErrInvalidTransition)
	}

	ref := sessionRef
	m.SessionRef = &ref
	m.Status = MatchActive
	return nil
}

// Complete records the winner of an active match.
func (m *Match) Complete(winnerID uuid.UUID, now time.Time) error {
	if m.Status != MatchActive {
		return fmt.Errorf("%w: cannot complete %s match", ErrInvalidTransition, m.Status)
	}
	if _, ok := m.SlotOf(winnerID); !ok {
		return fmt.Errorf("%w: winner must be one of the match participants", ErrValidation)
	}

	w := winnerID
	m.WinnerID = &w
	m.Status = MatchCompleted
	m.CompletedAt = &now
	return nil
}

// LoserID is nil for byes and unfinished matches.
func (m *Match) LoserID() *uuid.UUID {
	if m.Status != MatchCompleted || m.WinnerID == nil || m.IsBye {
		return nil
	}
	if m.Participant1ID != nil && *m.Participant1ID == *m.WinnerID {
		return m.Participant2ID
	}
	return m.Participant1ID
}

// Validate checks the structural invariants of a single match.
func (m *Match) Validate() error {
	if m.Round < 1 || m.Position < 0 {
		return fmt.Errorf("%w: bad coordinates %d/%d", ErrInvariant, m.Round, m.Position)
	}
	if m.bothSeated() && *m.Participant1ID == *m.Participant2ID {
		return fmt.Errorf("%w: match %d/%d has the same participant twice", ErrInvariant, m.Round, m.Position)
	}
	if m.Status != MatchCompleted && m.WinnerID != nil {
		return fmt.Errorf("%w: %s match %d/%d has a winner", ErrInvariant, m.Status, m.Round, m.Position)
	}

	switch m.Status {
	case MatchPending:
		if m.bothSeated() {
			return fmt.Errorf("%w: pending match %d/%d has both slots filled", ErrInvariant, m.Round, m.Position)
		}
	case MatchWaiting, MatchActive:
		if !m.bothSeated() {
			return fmt.Errorf("%w: %s match %d/%d is missing a participant", ErrInvariant, m.Status, m.Round, m.Position)
		}
	case MatchCompleted:
		if m.WinnerID == nil {
			return fmt.Errorf("%w: completed match %d/%d has no winner", ErrInvariant, m.Round, m.Position)
		}
		if _, ok := m.SlotOf(*m.WinnerID); !ok {
			return fmt.Errorf("%w: winner of match %d/%d is not a participant", ErrInvariant, m.Round, m.Position)
		}
		if m.IsBye && m.bothSeated() {
			return fmt.Errorf("%w: bye match %d/%d has two participants", ErrInvariant, m.Round, m.Position)
		}
		if !m.IsBye && !m.bothSeated() {
			return fmt.Errorf("%w: played match %d/%d is missing a participant", ErrInvariant, m.Round, m.Position)
		}
	default:
		return fmt.Errorf("%w: unknown match status %q", ErrInvariant, m.Status)
	}
	return nil
}
