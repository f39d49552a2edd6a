package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/ledger"
	"github.com/AdamBeresnev/bracket-engine/internal/middleware"
	"github.com/AdamBeresnev/bracket-engine/internal/realtime"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/google/uuid"
)

type ParticipantService struct {
	store     *store.TournamentStore
	userStore *store.UserStore
	ledger    Ledger
	notifier  Notifier
}

func NewParticipantService(store *store.TournamentStore, userStore *store.UserStore, ledger Ledger, notifier Notifier) *ParticipantService {
	return &ParticipantService{store: store, userStore: userStore, ledger: ledger, notifier: notifierOrNop(notifier)}
}

// ParticipantView is a registration joined with the display handle of its
// user.
type ParticipantView struct {
	bracket.Participant
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

type registrationEvent struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	UserID        uuid.UUID `json:"user_id"`
	Registered    bool      `json:"registered"`
}

// Register signs userID up for the tournament and collects the entry fee in
// the same transaction. Players register themselves; admins may register
// anyone.
func (s *ParticipantService) Register(ctx context.Context, tournamentID, userID uuid.UUID) (*bracket.Participant, error) {
	if err := s.authorizeFor(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.userStore.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.LockTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != bracket.TournamentRegistering {
		return nil, fmt.Errorf("%w: registration is not open (tournament is %s)", bracket.ErrInvalidTransition, tournament.Status)
	}

	_, err = s.store.GetParticipantByUserTx(ctx, tx, tournamentID, userID)
	switch {
	case err == nil:
		return nil, bracket.ErrAlreadyRegistered
	case !errors.Is(err, bracket.ErrNotFound):
		return nil, err
	}

	count, err := s.store.CountParticipantsTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if count >= tournament.MaxParticipants {
		return nil, fmt.Errorf("%w: %d of %d places taken", bracket.ErrCapacityExceeded, count, tournament.MaxParticipants)
	}

	seed, err := s.store.NextSeedTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}

	participant := &bracket.Participant{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		UserID:       userID,
		Seed:         seed,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.store.CreateParticipantTx(ctx, tx, participant); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, bracket.ErrAlreadyRegistered
		}
		return nil, err
	}

	key := ledger.Key{TournamentID: tournamentID, ParticipantID: participant.ID, Reason: ledger.ReasonEntryFee}
	if _, err := s.ledger.Debit(ctx, tx, key, userID, tournament.EntryFee); err != nil {
		return nil, err
	}

	if err := store.Commit(tx); err != nil {
		return nil, err
	}

	slog.Info("participant registered", "tournament_id", tournamentID, "user_id", userID, "seed", seed)
	s.notifier.Publish(tournamentID, realtime.MessageTournamentUpdated, registrationEvent{participant.ID, userID, true})
	return participant, nil
}

// Unregister withdraws userID while registration is still open and returns
// the refunded amount.
func (s *ParticipantService) Unregister(ctx context.Context, tournamentID, userID uuid.UUID) (int64, error) {
	if err := s.authorizeFor(ctx, userID); err != nil {
		return 0, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	tournament, err := s.store.LockTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return 0, err
	}
	if tournament.Status != bracket.TournamentRegistering {
		return 0, fmt.Errorf("%w: cannot leave a %s tournament", bracket.ErrInvalidTransition, tournament.Status)
	}

	participant, err := s.store.GetParticipantByUserTx(ctx, tx, tournamentID, userID)
	if err != nil {
		return 0, err
	}

	refunded, err := s.ledger.Refund(ctx, tx, tournamentID, participant.ID)
	if err != nil {
		return 0, err
	}
	if err := s.store.DeleteParticipantTx(ctx, tx, participant.ID); err != nil {
		return 0, err
	}
	if err := store.Commit(tx); err != nil {
		return 0, err
	}

	slog.Info("participant unregistered", "tournament_id", tournamentID, "user_id", userID, "refunded", refunded)
	s.notifier.Publish(tournamentID, realtime.MessageTournamentUpdated, registrationEvent{participant.ID, userID, false})
	return refunded, nil
}

func (s *ParticipantService) authorizeFor(ctx context.Context, userID uuid.UUID) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	if caller != userID && !middleware.IsAdmin(ctx) {
		return fmt.Errorf("%w: cannot act for another player", bracket.ErrForbidden)
	}
	return nil
}

// Participants lists the registrations in seed order with user handles.
func (s *ParticipantService) Participants(ctx context.Context, tournamentID uuid.UUID) ([]ParticipantView, error) {
	if _, err := s.store.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	participants, err := s.store.GetParticipants(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return s.withHandles(ctx, participants)
}

func (s *ParticipantService) withHandles(ctx context.Context, participants []bracket.Participant) ([]ParticipantView, error) {
	ids := make([]uuid.UUID, len(participants))
	for i, p := range participants {
		ids[i] = p.UserID
	}
	found, err := s.userStore.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]ParticipantView, len(participants))
	for i, p := range participants {
		views[i] = ParticipantView{Participant: p}
		if u, ok := found[p.UserID]; ok {
			views[i].Username = u.Username
			views[i].AvatarURL = u.AvatarURL
		}
	}
	return views, nil
}

// MyParticipations lists the tournaments the caller has registered for.
func (s *ParticipantService) MyParticipations(ctx context.Context) ([]store.TournamentSummary, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.GetTournamentsByParticipant(ctx, userID)
}
