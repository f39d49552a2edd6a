package bracket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTournamentTransitions(t *testing.T) {
	testCases := []struct {
		from, to TournamentStatus
		allowed  bool
	}{
		{TournamentPreparing, TournamentRegistering, true},
		{TournamentPreparing, TournamentActive, false},
		{TournamentPreparing, TournamentCancelled, true},
		{TournamentRegistering, TournamentActive, true},
		{TournamentRegistering, TournamentCompleted, false},
		{TournamentActive, TournamentCompleted, true},
		{TournamentActive, TournamentCancelled, true},
		{TournamentActive, TournamentActive, false},
		{TournamentCompleted, TournamentCancelled, false},
		{TournamentCancelled, TournamentRegistering, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			tournament := &Tournament{Status: tc.from}
			err := tournament.TransitionTo(tc.to, time.Now())
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, tc.to, tournament.Status)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tc.from, tournament.Status)
			}
		})
	}
}

func TestTransitionStampsTimestamps(t *testing.T) {
	now := time.Now().UTC()
	tournament := &Tournament{Status: TournamentRegistering}

	require.NoError(t, tournament.TransitionTo(TournamentActive, now))
	require.NotNil(t, tournament.StartedAt)
	assert.Equal(t, now, *tournament.StartedAt)

	require.NoError(t, tournament.TransitionTo(TournamentCancelled, now))
	assert.NotNil(t, tournament.CancelledAt)
	assert.Nil(t, tournament.CompletedAt)
}

func TestTournamentValidate(t *testing.T) {
	start := time.Now()
	before := start.Add(-time.Hour)

	valid := func() Tournament {
		return Tournament{Name: "Spring Cup", Type: SingleElimination, MaxParticipants: 8, EntryFee: 10, PrizePool: 100}
	}

	testCases := []struct {
		name   string
		modify func(*Tournament)
		ok     bool
	}{
		{"valid", func(*Tournament) {}, true},
		{"blank name", func(t *Tournament) { t.Name = "   " }, false},
		{"long name", func(t *Tournament) { t.Name = string(make([]byte, MaxNameLength+1)) + "x" }, false},
		{"unknown type", func(t *Tournament) { t.Type = "ladder" }, false},
		{"unsupported type", func(t *Tournament) { t.Type = RoundRobin }, false},
		{"one participant", func(t *Tournament) { t.MaxParticipants = 1 }, false},
		{"negative fee", func(t *Tournament) { t.EntryFee = -1 }, false},
		{"negative prize", func(t *Tournament) { t.PrizePool = -5 }, false},
		{"free entry", func(t *Tournament) { t.EntryFee = 0; t.PrizePool = 0 }, true},
		{"ends before start", func(t *Tournament) { t.StartsAt = &start; t.EndsAt = &before }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tournament := valid()
			tc.modify(&tournament)
			err := tournament.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}
