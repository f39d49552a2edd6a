package service

import (
	"context"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type BracketService struct {
	store        *store.TournamentStore
	participants *ParticipantService
}

func NewBracketService(store *store.TournamentStore, participants *ParticipantService) *BracketService {
	return &BracketService{store: store, participants: participants}
}

// BracketView is the read projection of a tournament's match tree. Matches
// are ordered by round, then position.
type BracketView struct {
	Tournament   *bracket.Tournament `json:"tournament"`
	Rounds       int                 `json:"rounds"`
	Matches      []bracket.Match     `json:"matches"`
	Participants []ParticipantView   `json:"participants"`
}

func (s *BracketService) GetBracket(ctx context.Context, tournamentID uuid.UUID) (*BracketView, error) {
	var (
		view         BracketView
		participants []bracket.Participant
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.store.GetTournament(gCtx, tournamentID)
		view.Tournament = t
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.store.GetParticipants(gCtx, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		view.Matches, err = s.store.GetMatches(gCtx, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(view.Matches) > 0 {
		view.Rounds = bracket.RoundCount(len(view.Matches) + 1)
	}

	var err error
	view.Participants, err = s.participants.withHandles(ctx, participants)
	if err != nil {
		return nil, err
	}
	return &view, nil
}
