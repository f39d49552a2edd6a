package views

import (
	"sort"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/service"
	"github.com/google/uuid"
)

type BracketData struct {
	Tournament *bracket.Tournament
	Rounds     map[int][]bracket.Match
	RoundNums  []int
	Names      map[uuid.UUID]string
}

func PrepareBracketData(view *service.BracketView) BracketData {
	names := make(map[uuid.UUID]string, len(view.Participants))
	for _, p := range view.Participants {
		names[p.ID] = p.Username
	}

	rounds := make(map[int][]bracket.Match)
	var roundNums []int
	for _, m := range view.Matches {
		if _, exists := rounds[m.Round]; !exists {
			roundNums = append(roundNums, m.Round)
		}
		rounds[m.Round] = append(rounds[m.Round], m)
	}

	sort.Ints(roundNums)
	for _, r := range roundNums {
		sort.Slice(rounds[r], func(i, j int) bool {
			return rounds[r][i].Position < rounds[r][j].Position
		})
	}

	return BracketData{
		Tournament: view.Tournament,
		Rounds:     rounds,
		RoundNums:  roundNums,
		Names:      names,
	}
}

// RoundTitle names a round counted from the final backwards.
func (d BracketData) RoundTitle(round int) string {
	if len(d.RoundNums) == 0 {
		return ""
	}
	switch d.RoundNums[len(d.RoundNums)-1] - round {
	case 0:
		return "Final"
	case 1:
		return "Semifinals"
	case 2:
		return "Quarterfinals"
	}
	return "Round " + itoa(round)
}

// SlotName is the handle in a slot, "BYE" for the empty side of a bye and
// "TBD" while the feeder is unfinished.
func (d BracketData) SlotName(m bracket.Match, id *uuid.UUID) string {
	if id == nil {
		if m.IsBye {
			return "BYE"
		}
		return "TBD"
	}
	if name, ok := d.Names[*id]; ok && name != "" {
		return name
	}
	return "unknown"
}
