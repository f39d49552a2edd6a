package bracket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(t *testing.T, b *Bracket, m *Match, winner uuid.UUID) *Advancement {
	t.Helper()

	_, err := m.MarkReady(*m.Participant1ID)
	require.NoError(t, err)
	_, err = m.MarkReady(*m.Participant2ID)
	require.NoError(t, err)
	require.NoError(t, m.Activate("room"))
	require.NoError(t, m.Complete(winner, time.Now()))

	adv, err := b.Advance(m)
	require.NoError(t, err)
	return adv
}

func TestAdvance_FourParticipants(t *testing.T) {
	tournamentID := uuid.New()
	ps := makeParticipants(tournamentID, 4)

	b, err := BuildSingleElimination(tournamentID, ps, time.Now())
	require.NoError(t, err)

	m0, _ := b.Match(1, 0)
	m1, _ := b.Match(1, 1)
	assert.Equal(t, ps[0].ID, *m0.Participant1ID)
	assert.Equal(t, ps[3].ID, *m0.Participant2ID)

	adv := play(t, b, m0, ps[0].ID)
	require.NotNil(t, adv.Next)
	assert.Equal(t, ps[3].ID, *adv.EliminatedID)
	assert.Nil(t, adv.ChampionID)
	assert.Equal(t, ps[0].ID, *adv.Next.Participant1ID)
	assert.Equal(t, MatchPending, adv.Next.Status)

	adv = play(t, b, m1, ps[1].ID)
	assert.Equal(t, ps[1].ID, *adv.Next.Participant2ID)
	assert.Equal(t, MatchWaiting, adv.Next.Status)

	adv = play(t, b, b.Final(), ps[0].ID)
	assert.Nil(t, adv.Next)
	require.NotNil(t, adv.ChampionID)
	assert.Equal(t, ps[0].ID, *adv.ChampionID)
	assert.Equal(t, ps[1].ID, *adv.EliminatedID)
	assert.NoError(t, b.Validate())
}

func TestAdvance_RejectsUnfinishedMatch(t *testing.T) {
	tournamentID := uuid.New()
	b, err := BuildSingleElimination(tournamentID, makeParticipants(tournamentID, 4), time.Now())
	require.NoError(t, err)

	m, _ := b.Match(1, 0)
	_, err = b.Advance(m)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdvance_RedeliveryIsRejected(t *testing.T) {
	tournamentID := uuid.New()
	ps := makeParticipants(tournamentID, 4)
	b, err := BuildSingleElimination(tournamentID, ps, time.Now())
	require.NoError(t, err)

	m, _ := b.Match(1, 0)
	play(t, b, m, ps[0].ID)

	// A second delivery fails at the state machine, and advancing the same
	// match again would find its downstream slot already taken.
	assert.ErrorIs(t, m.Complete(ps[0].ID, time.Now()), ErrInvalidTransition)
	_, err = b.Advance(m)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestAdvance_EveryoneButChampionEliminated(t *testing.T) {
	for _, n := range []int{2, 3, 5, 7, 8, 11} {
		tournamentID := uuid.New()
		ps := makeParticipants(tournamentID, n)
		b, err := BuildSingleElimination(tournamentID, ps, time.Now())
		require.NoError(t, err)

		eliminated := make(map[uuid.UUID]bool)
		var champion *uuid.UUID
		for r := 1; r <= b.Rounds; r++ {
			for p := 0; p < MatchesInRound(b.Size, r); p++ {
				m, _ := b.Match(r, p)
				if m.Status == MatchCompleted {
					continue
				}
				require.Equal(t, MatchWaiting, m.Status, "n=%d match %d/%d", n, r, p)
				// Lower seed number wins.
				winner := *m.Participant1ID
				adv := play(t, b, m, winner)
				if adv.EliminatedID != nil {
					eliminated[*adv.EliminatedID] = true
				}
				champion = adv.ChampionID
			}
		}

		require.NotNil(t, champion, "n=%d", n)
		assert.Equal(t, ps[0].ID, *champion)
		assert.Len(t, eliminated, n-1)
		assert.False(t, eliminated[*champion])
		assert.NoError(t, b.Validate())
	}
}

func TestNewBracket_RejectsBrokenTopology(t *testing.T) {
	tournamentID := uuid.New()

	_, err := NewBracket(tournamentID, nil)
	assert.ErrorIs(t, err, ErrInvariant)

	twoMatches := []Match{
		{ID: uuid.New(), TournamentID: tournamentID, Round: 1, Position: 0, Status: MatchPending},
		{ID: uuid.New(), TournamentID: tournamentID, Round: 1, Position: 1, Status: MatchPending},
	}
	_, err = NewBracket(tournamentID, twoMatches)
	assert.ErrorIs(t, err, ErrInvariant)

	duplicate := []Match{
		{ID: uuid.New(), TournamentID: tournamentID, Round: 1, Position: 0, Status: MatchPending},
		{ID: uuid.New(), TournamentID: tournamentID, Round: 1, Position: 0, Status: MatchPending},
		{ID: uuid.New(), TournamentID: tournamentID, Round: 2, Position: 0, Status: MatchPending},
	}
	_, err = NewBracket(tournamentID, duplicate)
	assert.ErrorIs(t, err, ErrInvariant)

	foreign := []Match{{ID: uuid.New(), TournamentID: uuid.New(), Round: 1, Position: 0}}
	_, err = NewBracket(tournamentID, foreign)
	assert.ErrorIs(t, err, ErrInvariant)
}
