package bracket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitingMatch(t *testing.T) (*Match, uuid.UUID, uuid.UUID) {
	t.Helper()

	p1, p2 := uuid.New(), uuid.New()
	m := &Match{ID: uuid.New(), Round: 1, Position: 0, Status: MatchPending}
	require.NoError(t, m.Seat(Slot1, p1))
	assert.Equal(t, MatchPending, m.Status)
	require.NoError(t, m.Seat(Slot2, p2))
	assert.Equal(t, MatchWaiting, m.Status)
	return m, p1, p2
}

func TestMatchLifecycle(t *testing.T) {
	m, p1, p2 := waitingMatch(t)

	changed, err := m.MarkReady(p1)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = m.MarkReady(p1)
	require.NoError(t, err)
	assert.False(t, changed, "duplicate ready signal must be a no-op")

	assert.ErrorIs(t, m.Activate("room-1"), ErrInvalidTransition)

	changed, err = m.MarkReady(p2)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, m.Both())

	require.NoError(t, m.Activate("room-1"))
	assert.Equal(t, MatchActive, m.Status)
	require.NotNil(t, m.SessionRef)
	assert.Equal(t, "room-1", *m.SessionRef)

	changed, err = m.MarkReady(p2)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, m.Complete(p2, time.Now()))
	assert.Equal(t, MatchCompleted, m.Status)
	assert.Equal(t, p2, *m.WinnerID)
	assert.Equal(t, p1, *m.LoserID())
	assert.NoError(t, m.Validate())
}

func TestMatchIllegalTransitionsDoNotMutate(t *testing.T) {
	m, p1, p2 := waitingMatch(t)

	before := *m
	assert.ErrorIs(t, m.Complete(p1, time.Now()), ErrInvalidTransition)
	assert.Equal(t, before, *m)

	_, err := m.MarkReady(uuid.New())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, before, *m)

	_, _ = m.MarkReady(p1)
	_, _ = m.MarkReady(p2)
	require.NoError(t, m.Activate("room"))

	before = *m
	assert.ErrorIs(t, m.Complete(uuid.New(), time.Now()), ErrValidation)
	assert.Equal(t, before, *m)

	require.NoError(t, m.Complete(p1, time.Now()))
	before = *m
	assert.ErrorIs(t, m.Complete(p1, time.Now()), ErrInvalidTransition)
	_, err = m.MarkReady(p1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, before, *m)
}

func TestMatchPendingCannotProgress(t *testing.T) {
	p1 := uuid.New()
	m := &Match{Round: 2, Position: 0, Status: MatchPending}
	require.NoError(t, m.Seat(Slot1, p1))

	_, err := m.MarkReady(p1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, m.Activate("room"), ErrInvalidTransition)
	assert.ErrorIs(t, m.Complete(p1, time.Now()), ErrInvalidTransition)
	assert.ErrorIs(t, m.Seat(Slot1, uuid.New()), ErrInvariant)
	assert.ErrorIs(t, m.Seat(Slot2, p1), ErrInvariant)
	assert.Equal(t, MatchPending, m.Status)
}

func TestResolveBye(t *testing.T) {
	p := uuid.New()
	m := &Match{Round: 1, Position: 0, Status: MatchPending}
	require.NoError(t, m.Seat(Slot2, p))

	require.NoError(t, m.ResolveBye(time.Now()))
	assert.True(t, m.IsBye)
	assert.Equal(t, MatchCompleted, m.Status)
	assert.Equal(t, p, *m.WinnerID)
	assert.Nil(t, m.LoserID())
	assert.NoError(t, m.Validate())

	empty := &Match{Round: 1, Status: MatchPending}
	assert.ErrorIs(t, empty.ResolveBye(time.Now()), ErrInvariant)
}

func TestMatchValidate(t *testing.T) {
	p1, p2, stranger := uuid.New(), uuid.New(), uuid.New()

	testCases := []struct {
		name  string
		match Match
		valid bool
	}{
		{"pending empty", Match{Round: 1, Status: MatchPending}, true},
		{"waiting seated", Match{Round: 1, Status: MatchWaiting, Participant1ID: &p1, Participant2ID: &p2}, true},
		{"waiting half seated", Match{Round: 1, Status: MatchWaiting, Participant1ID: &p1}, false},
		{"active half seated", Match{Round: 1, Status: MatchActive, Participant2ID: &p2}, false},
		{"completed no winner", Match{Round: 1, Status: MatchCompleted, Participant1ID: &p1, Participant2ID: &p2}, false},
		{"completed stranger wins", Match{Round: 1, Status: MatchCompleted, Participant1ID: &p1, Participant2ID: &p2, WinnerID: &stranger}, false},
		{"completed", Match{Round: 1, Status: MatchCompleted, Participant1ID: &p1, Participant2ID: &p2, WinnerID: &p2}, true},
		{"winner before completion", Match{Round: 1, Status: MatchActive, Participant1ID: &p1, Participant2ID: &p2, WinnerID: &p1}, false},
		{"same participant twice", Match{Round: 1, Status: MatchWaiting, Participant1ID: &p1, Participant2ID: &p1}, false},
		{"bad round", Match{Round: 0, Status: MatchPending}, false},
		{"unknown status", Match{Round: 1, Status: "paused"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.match.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvariant)
			}
		})
	}
}
