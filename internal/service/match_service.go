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
	"github.com/AdamBeresnev/bracket-engine/internal/rooms"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	store     *store.TournamentStore
	ledger    Ledger
	allocator rooms.Allocator
	notifier  Notifier
}

func NewMatchService(store *store.TournamentStore, ledger Ledger, allocator rooms.Allocator, notifier Notifier) *MatchService {
	return &MatchService{store: store, ledger: ledger, allocator: allocator, notifier: notifierOrNop(notifier)}
}

// MatchResult is everything a reported result changed.
type MatchResult struct {
	Match      *bracket.Match      `json:"match"`
	Next       *bracket.Match      `json:"next,omitempty"`
	Tournament *bracket.Tournament `json:"tournament"`
	ChampionID *uuid.UUID          `json:"champion_id,omitempty"`
	PrizePaid  bool                `json:"prize_paid"`
}

// SetReady records that the caller is ready to play matchID. When the second
// participant signals, a game session is allocated and the match goes
// active; an allocation failure leaves the match waiting.
func (s *MatchService) SetReady(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	found, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.lockActive(ctx, tx, found.TournamentID); err != nil {
		return nil, err
	}
	participant, err := s.store.GetParticipantByUserTx(ctx, tx, found.TournamentID, userID)
	if errors.Is(err, bracket.ErrNotFound) {
		return nil, fmt.Errorf("%w: not a participant of this tournament", bracket.ErrForbidden)
	}
	if err != nil {
		return nil, err
	}

	match, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	expected := match.Status

	changed, err := match.MarkReady(participant.ID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return match, nil
	}

	if match.Both() {
		ref, err := s.allocator.AllocateSession(ctx, match.ID, []uuid.UUID{*match.Participant1ID, *match.Participant2ID})
		if err != nil {
			slog.Warn("game session allocation failed", "match_id", match.ID, "error", err)
			return nil, fmt.Errorf("failed to allocate game session: %w", err)
		}
		if err := match.Activate(ref); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateMatchTx(ctx, tx, match, expected); err != nil {
		return nil, err
	}
	if err := store.Commit(tx); err != nil {
		return nil, err
	}

	if match.Status == bracket.MatchActive {
		slog.Info("match started", "match_id", match.ID, "session_ref", *match.SessionRef)
	}
	s.notifier.Publish(match.TournamentID, realtime.MessageMatchUpdated, match)
	return match, nil
}

// ReportMatchResult completes an active match and advances the winner. When
// the match is the final the tournament completes and the prize pool is paid
// to the champion. Re-delivering a result fails with ErrInvalidTransition.
func (s *MatchService) ReportMatchResult(ctx context.Context, matchID, winnerID uuid.UUID) (*MatchResult, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	found, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	tournamentID := found.TournamentID

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.lockActive(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.GetMatchesTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	b, err := bracket.NewBracket(tournamentID, matches)
	if err != nil {
		return nil, checkInvariant("report result", tournamentID, err)
	}
	match, ok := b.Find(matchID)
	if !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, bracket.ErrNotFound)
	}

	if err := s.authorizeReporter(ctx, tx, tournament, match, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := match.Complete(winnerID, now); err != nil {
		return nil, err
	}
	adv, err := b.Advance(match)
	if err != nil {
		return nil, checkInvariant("report result", tournamentID, err)
	}
	if err := b.Validate(); err != nil {
		return nil, checkInvariant("report result", tournamentID, err)
	}

	if err := s.store.UpdateMatchTx(ctx, tx, match, bracket.MatchActive); err != nil {
		return nil, err
	}
	if adv.Next != nil {
		if err := s.store.UpdateMatchTx(ctx, tx, adv.Next, bracket.MatchPending); err != nil {
			return nil, err
		}
	}
	if adv.EliminatedID != nil {
		if err := s.store.EliminateParticipantTx(ctx, tx, *adv.EliminatedID); err != nil {
			return nil, checkInvariant("report result", tournamentID, err)
		}
	}

	result := &MatchResult{Match: match, Next: adv.Next, Tournament: tournament, ChampionID: adv.ChampionID}
	if adv.ChampionID != nil {
		if result.PrizePaid, err = s.crown(ctx, tx, tournament, *adv.ChampionID, now); err != nil {
			return nil, err
		}
	}

	if err := store.Commit(tx); err != nil {
		return nil, err
	}

	slog.Info("match completed", "match_id", matchID, "round", match.Round, "position", match.Position, "winner_id", winnerID)
	s.notifier.Publish(tournamentID, realtime.MessageMatchUpdated, match)
	s.notifier.Publish(tournamentID, realtime.MessageBracketUpdated, b.Matches())
	if adv.ChampionID != nil {
		slog.Info("tournament completed", "tournament_id", tournamentID, "champion_id", *adv.ChampionID, "prize_paid", result.PrizePaid)
		s.notifier.Publish(tournamentID, realtime.MessageTournamentCompleted, tournament)
	}
	return result, nil
}

// crown completes the tournament and pays the prize pool, keyed so the payout
// can happen only once.
func (s *MatchService) crown(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, championID uuid.UUID, now time.Time) (bool, error) {
	if err := tournament.TransitionTo(bracket.TournamentCompleted, now); err != nil {
		return false, err
	}
	tournament.ChampionID = &championID
	if err := s.store.UpdateTournamentTx(ctx, tx, tournament, bracket.TournamentActive); err != nil {
		return false, err
	}

	participants, err := s.store.GetParticipantsTx(ctx, tx, tournament.ID)
	if err != nil {
		return false, err
	}
	var champion *bracket.Participant
	for i := range participants {
		if participants[i].ID == championID {
			champion = &participants[i]
		} else if !participants[i].Eliminated {
			return false, checkInvariant("crown", tournament.ID,
				fmt.Errorf("%w: participant %s is still in the running", bracket.ErrInvariant, participants[i].ID))
		}
	}
	if champion == nil {
		return false, checkInvariant("crown", tournament.ID, fmt.Errorf("%w: champion is not registered", bracket.ErrInvariant))
	}
	if champion.Eliminated {
		return false, checkInvariant("crown", tournament.ID, fmt.Errorf("%w: champion was eliminated", bracket.ErrInvariant))
	}

	key := ledger.Key{TournamentID: tournament.ID, ParticipantID: championID, Reason: ledger.ReasonPrize}
	return s.ledger.Credit(ctx, tx, key, champion.UserID, tournament.PrizePool)
}

func (s *MatchService) lockActive(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (*bracket.Tournament, error) {
	tournament, err := s.store.LockTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != bracket.TournamentActive {
		return nil, fmt.Errorf("%w: tournament is %s", bracket.ErrInvalidTransition, tournament.Status)
	}
	return tournament, nil
}

// authorizeReporter accepts the creator, an admin or one of the two players.
func (s *MatchService) authorizeReporter(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, match *bracket.Match, userID uuid.UUID) error {
	if userID == tournament.CreatorID || middleware.IsAdmin(ctx) {
		return nil
	}
	participant, err := s.store.GetParticipantByUserTx(ctx, tx, tournament.ID, userID)
	if err != nil && !errors.Is(err, bracket.ErrNotFound) {
		return err
	}
	if participant != nil {
		if _, seated := match.SlotOf(participant.ID); seated {
			return nil
		}
	}
	return fmt.Errorf("%w: only the players, the creator or an admin may report this match", bracket.ErrForbidden)
}

// NextMatch returns the caller's earliest unfinished match in the tournament.
func (s *MatchService) NextMatch(ctx context.Context, tournamentID uuid.UUID) (*bracket.Match, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	participant, err := s.store.GetParticipantByUser(ctx, tournamentID, userID)
	if err != nil {
		return nil, err
	}
	match, err := s.store.GetNextMatchForParticipant(ctx, tournamentID, participant.ID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, fmt.Errorf("no upcoming match: %w", bracket.ErrNotFound)
	}
	return match, nil
}
