package bracket

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// BuildSingleElimination lays out the whole match tree for the given
// participants. Seeds beyond the participant count are byes; because of the
// seed fold they always face the top seeds, and they are resolved and
// advanced before the bracket is returned.
func BuildSingleElimination(tournamentID uuid.UUID, participants []Participant, now time.Time) (*Bracket, error) {
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 participants, have %d", ErrValidation, len(participants))
	}

	seeded := make([]Participant, len(participants))
	copy(seeded, participants)
	sort.SliceStable(seeded, func(i, j int) bool { return seeded[i].Seed < seeded[j].Seed })

	size := BracketSize(len(seeded))
	rounds := RoundCount(size)

	matches := make([]Match, 0, size-1)
	for r := 1; r <= rounds; r++ {
		for p := 0; p < MatchesInRound(size, r); p++ {
			matches = append(matches, Match{
				ID:           uuid.New(),
				TournamentID: tournamentID,
				Round:        r,
				Position:     p,
				Status:       MatchPending,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
	}

	b, err := NewBracket(tournamentID, matches)
	if err != nil {
		return nil, err
	}

	for i, pair := range SeedPairs(size) {
		m, _ := b.Match(1, i)
		if pair[0] < len(seeded) {
			if err := m.Seat(Slot1, seeded[pair[0]].ID); err != nil {
				return nil, err
			}
		}
		if pair[1] < len(seeded) {
			if err := m.Seat(Slot2, seeded[pair[1]].ID); err != nil {
				return nil, err
			}
		}
	}

	for p := 0; p < MatchesInRound(size, 1); p++ {
		m, _ := b.Match(1, p)
		if m.Status != MatchPending {
			continue
		}
		if err := m.ResolveBye(now); err != nil {
			return nil, err
		}
		if _, err := b.Advance(m); err != nil {
			return nil, err
		}
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// PlayedMatches counts the matches that need an actual game.
func PlayedMatches(matches []Match) int {
	n := 0
	for _, m := range matches {
		if !m.IsBye {
			n++
		}
	}
	return n
}
