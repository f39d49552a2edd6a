package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/realtime"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/AdamBeresnev/bracket-engine/internal/utils"
	"github.com/google/uuid"
)

type TournamentService struct {
	store    *store.TournamentStore
	ledger   Ledger
	notifier Notifier
}

func NewTournamentService(store *store.TournamentStore, ledger Ledger, notifier Notifier) *TournamentService {
	return &TournamentService{store: store, ledger: ledger, notifier: notifierOrNop(notifier)}
}

type CreateTournamentInput struct {
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	Type            bracket.TournamentType `json:"type"`
	MaxParticipants int                    `json:"max_participants"`
	EntryFee        int64                  `json:"entry_fee"`
	PrizePool       int64                  `json:"prize_pool"`
	StartsAt        *time.Time             `json:"starts_at"`
	EndsAt          *time.Time             `json:"ends_at"`
}

// UpdateTournamentInput carries only the fields being changed.
type UpdateTournamentInput struct {
	Name            *string    `json:"name"`
	Description     *string    `json:"description"`
	MaxParticipants *int       `json:"max_participants"`
	EntryFee        *int64     `json:"entry_fee"`
	PrizePool       *int64     `json:"prize_pool"`
	StartsAt        *time.Time `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at"`
}

type RegistrationStatus string

const (
	RegistrationOpen   RegistrationStatus = "open"
	RegistrationFull   RegistrationStatus = "full"
	RegistrationClosed RegistrationStatus = "closed"
)

type TournamentStats struct {
	TournamentID       uuid.UUID                `json:"tournament_id"`
	Status             bracket.TournamentStatus `json:"status"`
	TotalParticipants  int                      `json:"total_participants"`
	MaxParticipants    int                      `json:"max_participants"`
	RegistrationStatus RegistrationStatus       `json:"registration_status"`
	MinutesUntilStart  *int                     `json:"minutes_until_start,omitempty"`
}

func (s *TournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*bracket.Tournament, error) {
	creatorID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if input.Type == "" {
		input.Type = bracket.SingleElimination
	}

	now := time.Now().UTC()
	tournament := &bracket.Tournament{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(input.Name),
		Description:     utils.StringOrNil(input.Description),
		Type:            input.Type,
		Status:          bracket.TournamentPreparing,
		MaxParticipants: input.MaxParticipants,
		EntryFee:        input.EntryFee,
		PrizePool:       input.PrizePool,
		CreatorID:       creatorID,
		StartsAt:        input.StartsAt,
		EndsAt:          input.EndsAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tournament.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.store.CreateTournament(ctx, tx, tournament); err != nil {
		return nil, err
	}
	if err := store.Commit(tx); err != nil {
		return nil, err
	}

	slog.Info("tournament created", "tournament_id", tournament.ID, "creator_id", creatorID)
	return tournament, nil
}

func (s *TournamentService) OpenRegistration(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	tournament, err := s.transition(ctx, id, bracket.TournamentRegistering, func(t *bracket.Tournament) error {
		return requireCreator(ctx, t, false)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(id, realtime.MessageTournamentUpdated, tournament)
	return tournament, nil
}

// transition moves a tournament to next under the row lock after authorize
// has accepted the caller.
func (s *TournamentService) transition(ctx context.Context, id uuid.UUID, next bracket.TournamentStatus, authorize func(*bracket.Tournament) error) (*bracket.Tournament, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.LockTournamentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(tournament); err != nil {
		return nil, err
	}

	previous := tournament.Status
	if err := tournament.TransitionTo(next, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTournamentTx(ctx, tx, tournament, previous); err != nil {
		return nil, err
	}
	if err := store.Commit(tx); err != nil {
		return nil, err
	}

	slog.Info("tournament status changed", "tournament_id", id, "from", previous, "to", next)
	return tournament, nil
}

func (s *TournamentService) UpdateTournament(ctx context.Context, id uuid.UUID, input UpdateTournamentInput) (*bracket.Tournament, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.LockTournamentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := requireCreator(ctx, tournament, false); err != nil {
		return nil, err
	}
	if !tournament.Editable() {
		return nil, fmt.Errorf("%w: %s tournaments cannot be edited", bracket.ErrInvalidTransition, tournament.Status)
	}

	count, err := s.store.CountParticipantsTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		tournament.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		tournament.Description = utils.StringOrNil(*input.Description)
	}
	if input.MaxParticipants != nil {
		if *input.MaxParticipants < count {
			return nil, fmt.Errorf("%w: %d participants already registered", bracket.ErrValidation, count)
		}
		tournament.MaxParticipants = *input.MaxParticipants
	}
	if input.EntryFee != nil && *input.EntryFee != tournament.EntryFee {
		if count > 0 {
			return nil, fmt.Errorf("%w: entry fee is fixed once players have registered", bracket.ErrInvalidTransition)
		}
		tournament.EntryFee = *input.EntryFee
	}
	if input.PrizePool != nil {
		tournament.PrizePool = *input.PrizePool
	}
	if input.StartsAt != nil {
		tournament.StartsAt = input.StartsAt
	}
	if input.EndsAt != nil {
		tournament.EndsAt = input.EndsAt
	}
	if err := tournament.Validate(); err != nil {
		return nil, err
	}

	tournament.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateTournamentTx(ctx, tx, tournament, tournament.Status); err != nil {
		return nil, err
	}
	if err := store.Commit(tx); err != nil {
		return nil, err
	}

	s.notifier.Publish(id, realtime.MessageTournamentUpdated, tournament)
	return tournament, nil
}

// Start closes registration and builds the bracket. The status change and the
// match records are written in the same transaction, so a second call sees an
// active tournament and fails.
func (s *TournamentService) Start(ctx context.Context, id uuid.UUID) (*bracket.Bracket, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.LockTournamentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := requireCreator(ctx, tournament, false); err != nil {
		return nil, err
	}
	if tournament.Status != bracket.TournamentRegistering {
		return nil, fmt.Errorf("%w: tournament is %s", bracket.ErrInvalidTransition, tournament.Status)
	}

	built, err := s.store.HasMatchesTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if built {
		return nil, checkInvariant("start", id, fmt.Errorf("%w: registering tournament already has matches", bracket.ErrInvariant))
	}

	participants, err := s.store.GetParticipantsTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 participants to start, have %d", bracket.ErrInvalidTransition, len(participants))
	}

	now := time.Now().UTC()
	if err := tournament.TransitionTo(bracket.TournamentActive, now); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTournamentTx(ctx, tx, tournament, bracket.TournamentRegistering); err != nil {
		return nil, err
	}

	b, err := bracket.BuildSingleElimination(id, participants, now)
	if err != nil {
		return nil, checkInvariant("start", id, err)
	}
	if err := s.store.CreateMatches(ctx, tx, b.Matches()); err != nil {
		return nil, err
	}
	if err := store.Commit(tx); err != nil {
		return nil, err
	}

	slog.Info("tournament started", "tournament_id", id, "participants", len(participants), "bracket_size", b.Size)
	s.notifier.Publish(id, realtime.MessageBracketUpdated, b.Matches())
	return b, nil
}

// Cancel stops the tournament and refunds every collected entry fee. Games
// already in progress are left to the room allocator.
func (s *TournamentService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*bracket.Tournament, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.LockTournamentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := requireCreator(ctx, tournament, true); err != nil {
		return nil, err
	}

	previous := tournament.Status
	if err := tournament.TransitionTo(bracket.TournamentCancelled, time.Now().UTC()); err != nil {
		return nil, err
	}
	tournament.CancelReason = utils.StringOrNil(reason)
	if err := s.store.UpdateTournamentTx(ctx, tx, tournament, previous); err != nil {
		return nil, err
	}

	participants, err := s.store.GetParticipantsTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	var refunded int64
	for _, p := range participants {
		amount, err := s.ledger.Refund(ctx, tx, id, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to refund participant %s: %w", p.ID, err)
		}
		refunded += amount
	}

	if err := store.Commit(tx); err != nil {
		return nil, err
	}

	slog.Info("tournament cancelled", "tournament_id", id, "from", previous, "refunded", refunded)
	s.notifier.Publish(id, realtime.MessageTournamentCancelled, tournament)
	return tournament, nil
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return s.store.GetTournament(ctx, id)
}

func (s *TournamentService) ListTournaments(ctx context.Context, filter store.TournamentFilter) ([]store.TournamentSummary, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", bracket.ErrValidation, status)
		}
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown tournament type %q", bracket.ErrValidation, filter.Type)
	}
	return s.store.ListTournaments(ctx, filter)
}

// ActiveTournaments lists tournaments players can still join or follow.
func (s *TournamentService) ActiveTournaments(ctx context.Context, limit, offset int) ([]store.TournamentSummary, error) {
	return s.store.ListTournaments(ctx, store.TournamentFilter{
		Statuses: []bracket.TournamentStatus{bracket.TournamentRegistering, bracket.TournamentActive},
		Limit:    limit,
		Offset:   offset,
	})
}

func (s *TournamentService) MyTournaments(ctx context.Context) ([]store.TournamentSummary, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListTournaments(ctx, store.TournamentFilter{CreatorID: &userID, Limit: store.MaxPageSize})
}

func (s *TournamentService) Stats(ctx context.Context, id uuid.UUID) (*TournamentStats, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountParticipants(ctx, id)
	if err != nil {
		return nil, err
	}

	stats := &TournamentStats{
		TournamentID:       id,
		Status:             tournament.Status,
		TotalParticipants:  count,
		MaxParticipants:    tournament.MaxParticipants,
		RegistrationStatus: RegistrationClosed,
	}
	if tournament.Status == bracket.TournamentRegistering {
		stats.RegistrationStatus = RegistrationOpen
		if count >= tournament.MaxParticipants {
			stats.RegistrationStatus = RegistrationFull
		}
	}
	if tournament.StartsAt != nil && !tournament.Status.Terminal() {
		if until := time.Until(*tournament.StartsAt); until > 0 {
			minutes := int(until / time.Minute)
			stats.MinutesUntilStart = &minutes
		}
	}
	return stats, nil
}
