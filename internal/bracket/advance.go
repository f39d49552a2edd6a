package bracket

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Bracket is the match tree of one tournament, indexed by (round, position).
type Bracket struct {
	TournamentID uuid.UUID
	Size         int
	Rounds       int

	matches []*Match
	byCoord map[Coord]*Match
	byID    map[uuid.UUID]*Match
}

// NewBracket indexes an existing set of matches and checks that they form a
// complete single-elimination tree.
func NewBracket(tournamentID uuid.UUID, matches []Match) (*Bracket, error) {
	size := len(matches) + 1
	if len(matches) == 0 || BracketSize(size) != size {
		return nil, fmt.Errorf("%w: %d matches do not form a bracket", ErrInvariant, len(matches))
	}

	b := &Bracket{
		TournamentID: tournamentID,
		Size:         size,
		Rounds:       RoundCount(size),
		matches:      make([]*Match, 0, len(matches)),
		byCoord:      make(map[Coord]*Match, len(matches)),
		byID:         make(map[uuid.UUID]*Match, len(matches)),
	}

	for i := range matches {
		m := matches[i]
		if m.TournamentID != tournamentID {
			return nil, fmt.Errorf("%w: match %s belongs to another tournament", ErrInvariant, m.ID)
		}
		if m.Position >= MatchesInRound(size, m.Round) {
			return nil, fmt.Errorf("%w: match %d/%d is outside the bracket", ErrInvariant, m.Round, m.Position)
		}
		c := Coord{m.Round, m.Position}
		if _, dup := b.byCoord[c]; dup {
			return nil, fmt.Errorf("%w: duplicate match at %d/%d", ErrInvariant, m.Round, m.Position)
		}
		b.matches = append(b.matches, &m)
		b.byCoord[c] = &m
		b.byID[m.ID] = &m
	}

	sort.Slice(b.matches, func(i, j int) bool {
		if b.matches[i].Round != b.matches[j].Round {
			return b.matches[i].Round < b.matches[j].Round
		}
		return b.matches[i].Position < b.matches[j].Position
	})
	return b, nil
}

func (b *Bracket) Match(round, position int) (*Match, bool) {
	m, ok := b.byCoord[Coord{round, position}]
	return m, ok
}

func (b *Bracket) Find(id uuid.UUID) (*Match, bool) {
	m, ok := b.byID[id]
	return m, ok
}

// Final is the only match without a downstream match.
func (b *Bracket) Final() *Match {
	m, _ := b.Match(b.Rounds, 0)
	return m
}

func (b *Bracket) IsFinal(m *Match) bool {
	return m.Round == b.Rounds && m.Position == 0
}

// Matches returns copies ordered by round, then position.
func (b *Bracket) Matches() []Match {
	out := make([]Match, len(b.matches))
	for i, m := range b.matches {
		out[i] = *m
	}
	return out
}

// Validate checks every match plus the feeder relationship: a seated
// participant must be the winner of the feeding match.
func (b *Bracket) Validate() error {
	for _, m := range b.matches {
		if err := m.Validate(); err != nil {
			return err
		}
		left, right, ok := Feeders(m.Round, m.Position)
		if !ok {
			continue
		}
		for slot, c := range map[Slot]Coord{Slot1: left, Slot2: right} {
			seated := m.Participant(slot)
			if seated == nil {
				continue
			}
			feeder, _ := b.Match(c.Round, c.Position)
			if feeder == nil || feeder.WinnerID == nil || *feeder.WinnerID != *seated {
				return fmt.Errorf("%w: slot %d of match %d/%d was not filled by its feeder", ErrInvariant, slot, m.Round, m.Position)
			}
		}
	}
	return nil
}

// Advancement describes what a completed match changed in the bracket.
type Advancement struct {
	Match        *Match
	Next         *Match
	EliminatedID *uuid.UUID
	ChampionID   *uuid.UUID
}

// Advance propagates the winner of a completed match into its downstream
// slot, or crowns the champion when the match is the final.
func (b *Bracket) Advance(m *Match) (*Advancement, error) {
	if m.Status != MatchCompleted {
		return nil, fmt.Errorf("%w: match %d/%d is %s", ErrInvalidTransition, m.Round, m.Position, m.Status)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	adv := &Advancement{Match: m, EliminatedID: m.LoserID()}
	if b.IsFinal(m) {
		champion := *m.WinnerID
		adv.ChampionID = &champion
		return adv, nil
	}

	round, position := Downstream(m.Round, m.Position)
	next, ok := b.Match(round, position)
	if !ok {
		return nil, fmt.Errorf("%w: match %d/%d has no downstream match", ErrInvariant, m.Round, m.Position)
	}
	if err := next.Seat(DownstreamSlot(m.Position), *m.WinnerID); err != nil {
		return nil, err
	}
	adv.Next = next
	return adv, nil
}
