package views

import (
	"bytes"
	"context"
	"testing"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participantView(name string) service.ParticipantView {
	return service.ParticipantView{
		Participant: bracket.Participant{ID: uuid.New()},
		Username:    name,
	}
}

func TestPrepareBracketData(t *testing.T) {
	ann, ben, cat := participantView("ann"), participantView("<ben>"), participantView("cat")

	// three players: ann has the bye, ben and cat play round one
	view := &service.BracketView{
		Tournament:   &bracket.Tournament{Name: "Cup & Co", Status: bracket.TournamentActive},
		Rounds:       2,
		Participants: []service.ParticipantView{ann, ben, cat},
		Matches: []bracket.Match{
			{ID: uuid.New(), Round: 2, Position: 0, Participant1ID: &ann.ID, Status: bracket.MatchPending},
			{ID: uuid.New(), Round: 1, Position: 1, Participant1ID: &ben.ID, Participant2ID: &cat.ID, Status: bracket.MatchWaiting},
			{ID: uuid.New(), Round: 1, Position: 0, Participant1ID: &ann.ID, WinnerID: &ann.ID, IsBye: true, Status: bracket.MatchCompleted},
		},
	}

	data := PrepareBracketData(view)

	assert.Equal(t, []int{1, 2}, data.RoundNums)
	require.Len(t, data.Rounds[1], 2)
	assert.Equal(t, 0, data.Rounds[1][0].Position)
	assert.Equal(t, 1, data.Rounds[1][1].Position)

	assert.Equal(t, "Semifinals", data.RoundTitle(1))
	assert.Equal(t, "Final", data.RoundTitle(2))

	bye := data.Rounds[1][0]
	assert.Equal(t, "ann", data.SlotName(bye, bye.Participant1ID))
	assert.Equal(t, "BYE", data.SlotName(bye, bye.Participant2ID))

	final := data.Rounds[2][0]
	assert.Equal(t, "TBD", data.SlotName(final, final.Participant2ID))

	stranger := uuid.New()
	assert.Equal(t, "unknown", data.SlotName(final, &stranger))
}

func TestRoundTitleEarlyRounds(t *testing.T) {
	data := BracketData{RoundNums: []int{1, 2, 3, 4}}

	assert.Equal(t, "Round 1", data.RoundTitle(1))
	assert.Equal(t, "Quarterfinals", data.RoundTitle(2))
	assert.Equal(t, "Final", data.RoundTitle(4))
}

func TestBracketPageEscapesNames(t *testing.T) {
	ben, cat := participantView("<ben>"), participantView("cat")
	view := &service.BracketView{
		Tournament:   &bracket.Tournament{Name: "Cup & Co", Status: bracket.TournamentCompleted},
		Participants: []service.ParticipantView{ben, cat},
		Matches: []bracket.Match{
			{ID: uuid.New(), Round: 1, Position: 0, Participant1ID: &ben.ID, Participant2ID: &cat.ID, WinnerID: &cat.ID, Status: bracket.MatchCompleted},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, BracketPage(PrepareBracketData(view)).Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, "<h1>Cup &amp; Co</h1>")
	assert.Contains(t, html, `<div class="slot">&lt;ben&gt;</div>`)
	assert.Contains(t, html, `<div class="slot winner">cat</div>`)
	assert.NotContains(t, html, "<ben>")
}

func TestBracketPageBeforeStart(t *testing.T) {
	view := &service.BracketView{Tournament: &bracket.Tournament{Name: "Open Cup", Status: bracket.TournamentRegistering}}

	var buf bytes.Buffer
	require.NoError(t, BracketPage(PrepareBracketData(view)).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "drawn when the tournament starts")
}
