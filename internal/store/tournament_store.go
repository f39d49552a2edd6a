package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

// TournamentSummary is a tournament with its current registration count.
type TournamentSummary struct {
	bracket.Tournament
	ParticipantCount int `db:"participant_count" json:"participant_count"`
}

type TournamentFilter struct {
	Statuses    []bracket.TournamentStatus
	Type        bracket.TournamentType
	CreatorID   *uuid.UUID
	EntryFeeMax *int64
	HasSpace    bool
	Limit       int
	Offset      int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

const (
	createTournamentQuery = `
		INSERT INTO tournaments (id, name, description, tournament_type, status, max_participants, entry_fee, prize_pool,
			creator_id, starts_at, ends_at, created_at, updated_at)
		VALUES (:id, :name, :description, :tournament_type, :status, :max_participants, :entry_fee, :prize_pool,
			:creator_id, :starts_at, :ends_at, :created_at, :updated_at)
	`
	updateTournamentQuery = `
		UPDATE tournaments SET
			name = :name,
			description = :description,
			status = :status,
			max_participants = :max_participants,
			entry_fee = :entry_fee,
			prize_pool = :prize_pool,
			champion_id = :champion_id,
			cancel_reason = :cancel_reason,
			starts_at = :starts_at,
			ends_at = :ends_at,
			started_at = :started_at,
			completed_at = :completed_at,
			cancelled_at = :cancelled_at,
			updated_at = :updated_at
		WHERE id = :id AND status = :expected_status
	`
	participantCountColumn = `(SELECT COUNT(*) FROM participants p WHERE p.tournament_id = t.id) AS participant_count`
)

// BeginTx opens a transaction. On SQLite a busy database is reported as
// bracket.ErrConflict here because the write lock is taken at BEGIN.
func (s *TournamentStore) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, translate(err, "begin transaction")
	}
	return tx, nil
}

func Commit(tx *sqlx.Tx) error {
	return translate(tx.Commit(), "commit transaction")
}

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, createTournamentQuery, tournament)
	return translate(err, "create tournament")
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := s.db.GetContext(ctx, &tournament, s.db.Rebind("SELECT * FROM tournaments WHERE id = ?"), id)
	if err != nil {
		return nil, translate(err, "get tournament")
	}
	return &tournament, nil
}

// LockTournamentTx loads the tournament and holds its row for the rest of the
// transaction. SQLite connections are opened with _txlock=immediate, so the
// whole database is already write-locked there.
func (s *TournamentStore) LockTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	query := "SELECT * FROM tournaments WHERE id = ?"
	if tx.DriverName() == "postgres" {
		query += " FOR UPDATE"
	}

	var tournament bracket.Tournament
	if err := tx.GetContext(ctx, &tournament, tx.Rebind(query), id); err != nil {
		return nil, translate(err, "lock tournament")
	}
	return &tournament, nil
}

// UpdateTournamentTx writes the tournament only if its stored status still
// equals expected.
func (s *TournamentStore) UpdateTournamentTx(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, expected bracket.TournamentStatus) error {
	arg := struct {
		*bracket.Tournament
		ExpectedStatus bracket.TournamentStatus `db:"expected_status"`
	}{tournament, expected}

	res, err := tx.NamedExecContext(ctx, updateTournamentQuery, arg)
	if err != nil {
		return translate(err, "update tournament")
	}
	return expectOneRow(res, "tournament")
}

func (s *TournamentStore) ListTournaments(ctx context.Context, filter TournamentFilter) ([]TournamentSummary, error) {
	var (
		conds []string
		args  []interface{}
	)

	if len(filter.Statuses) > 0 {
		conds = append(conds, "t.status IN (?)")
		args = append(args, filter.Statuses)
	}
	if filter.Type != "" {
		conds = append(conds, "t.tournament_type = ?")
		args = append(args, filter.Type)
	}
	if filter.CreatorID != nil {
		conds = append(conds, "t.creator_id = ?")
		args = append(args, *filter.CreatorID)
	}
	if filter.EntryFeeMax != nil {
		conds = append(conds, "t.entry_fee <= ?")
		args = append(args, *filter.EntryFeeMax)
	}
	if filter.HasSpace {
		conds = append(conds, "(SELECT COUNT(*) FROM participants p WHERE p.tournament_id = t.id) < t.max_participants")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT t.*, " + participantCountColumn + " FROM tournaments t"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY t.created_at DESC, t.id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build tournament query: %w", err)
	}

	tournaments := []TournamentSummary{}
	if err := s.db.SelectContext(ctx, &tournaments, s.db.Rebind(query), args...); err != nil {
		return nil, translate(err, "list tournaments")
	}
	return tournaments, nil
}

// GetTournamentsByParticipant lists the tournaments a user has registered for.
func (s *TournamentStore) GetTournamentsByParticipant(ctx context.Context, userID uuid.UUID) ([]TournamentSummary, error) {
	query := `
		SELECT t.*, ` + participantCountColumn + `
		FROM tournaments t
		JOIN participants mine ON mine.tournament_id = t.id
		WHERE mine.user_id = ?
		ORDER BY mine.registered_at DESC
	`
	tournaments := []TournamentSummary{}
	if err := s.db.SelectContext(ctx, &tournaments, s.db.Rebind(query), userID); err != nil {
		return nil, translate(err, "list participations")
	}
	return tournaments, nil
}

func (s *TournamentStore) CreateParticipantTx(ctx context.Context, tx *sqlx.Tx, participant *bracket.Participant) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO participants (id, tournament_id, user_id, seed, eliminated, registered_at)
		VALUES (:id, :tournament_id, :user_id, :seed, :eliminated, :registered_at)`, participant)
	return translate(err, "create participant")
}

func (s *TournamentStore) DeleteParticipantTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM participants WHERE id = ?"), id)
	if err != nil {
		return translate(err, "delete participant")
	}
	return expectOneRow(res, "participant")
}

func (s *TournamentStore) EliminateParticipantTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, tx.Rebind("UPDATE participants SET eliminated = ? WHERE id = ? AND eliminated = ?"), true, id, false)
	if err != nil {
		return translate(err, "eliminate participant")
	}
	return expectOneRow(res, "participant")
}

func (s *TournamentStore) GetParticipant(ctx context.Context, id uuid.UUID) (*bracket.Participant, error) {
	var participant bracket.Participant
	if err := s.db.GetContext(ctx, &participant, s.db.Rebind("SELECT * FROM participants WHERE id = ?"), id); err != nil {
		return nil, translate(err, "get participant")
	}
	return &participant, nil
}

func (s *TournamentStore) GetParticipantByUserTx(ctx context.Context, tx *sqlx.Tx, tournamentID, userID uuid.UUID) (*bracket.Participant, error) {
	var participant bracket.Participant
	err := tx.GetContext(ctx, &participant, tx.Rebind("SELECT * FROM participants WHERE tournament_id = ? AND user_id = ?"), tournamentID, userID)
	if err != nil {
		return nil, translate(err, "get participant")
	}
	return &participant, nil
}

func (s *TournamentStore) GetParticipantByUser(ctx context.Context, tournamentID, userID uuid.UUID) (*bracket.Participant, error) {
	var participant bracket.Participant
	err := s.db.GetContext(ctx, &participant, s.db.Rebind("SELECT * FROM participants WHERE tournament_id = ? AND user_id = ?"), tournamentID, userID)
	if err != nil {
		return nil, translate(err, "get participant")
	}
	return &participant, nil
}

func (s *TournamentStore) GetParticipants(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	return getParticipants(ctx, s.db, tournamentID)
}

func (s *TournamentStore) GetParticipantsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	return getParticipants(ctx, tx, tournamentID)
}

func getParticipants(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	participants := []bracket.Participant{}
	err := sqlx.SelectContext(ctx, q, &participants, q.Rebind("SELECT * FROM participants WHERE tournament_id = ? ORDER BY seed ASC"), tournamentID)
	if err != nil {
		return nil, translate(err, "get participants")
	}
	return participants, nil
}

func (s *TournamentStore) CountParticipants(ctx context.Context, tournamentID uuid.UUID) (int, error) {
	return countParticipants(ctx, s.db, tournamentID)
}

func (s *TournamentStore) CountParticipantsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	return countParticipants(ctx, tx, tournamentID)
}

func countParticipants(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, q.Rebind("SELECT COUNT(*) FROM participants WHERE tournament_id = ?"), tournamentID)
	if err != nil {
		return 0, translate(err, "count participants")
	}
	return count, nil
}

// NextSeedTx returns the seed for the next registration. Seeds keep their
// gaps when someone unregisters so the original order is preserved.
func (s *TournamentStore) NextSeedTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var seed int
	err := tx.GetContext(ctx, &seed, tx.Rebind("SELECT COALESCE(MAX(seed), 0) + 1 FROM participants WHERE tournament_id = ?"), tournamentID)
	if err != nil {
		return 0, translate(err, "compute next seed")
	}
	return seed, nil
}

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, tournament_id, round, position, participant1_id, participant2_id,
			winner_id, status, is_bye, ready_1, ready_2, session_ref, created_at, updated_at, completed_at)
		VALUES (:id, :tournament_id, :round, :position, :participant1_id, :participant2_id,
			:winner_id, :status, :is_bye, :ready_1, :ready_2, :session_ref, :created_at, :updated_at, :completed_at)`, matches)
	return translate(err, "create matches")
}

func (s *TournamentStore) HasMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (bool, error) {
	var count int
	if err := tx.GetContext(ctx, &count, tx.Rebind("SELECT COUNT(*) FROM matches WHERE tournament_id = ?"), tournamentID); err != nil {
		return false, translate(err, "count matches")
	}
	return count > 0, nil
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	return getMatches(ctx, s.db, tournamentID)
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	return getMatches(ctx, tx, tournamentID)
}

func getMatches(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := sqlx.SelectContext(ctx, q, &matches, q.Rebind("SELECT * FROM matches WHERE tournament_id = ? ORDER BY round ASC, position ASC"), tournamentID)
	if err != nil {
		return nil, translate(err, "get matches")
	}
	return matches, nil
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	if err := s.db.GetContext(ctx, &match, s.db.Rebind("SELECT * FROM matches WHERE id = ?"), id); err != nil {
		return nil, translate(err, "get match")
	}
	return &match, nil
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	if err := tx.GetContext(ctx, &match, tx.Rebind("SELECT * FROM matches WHERE id = ?"), id); err != nil {
		return nil, translate(err, "get match")
	}
	return &match, nil
}

// UpdateMatchTx persists a match transition, guarded by the status the caller
// observed before mutating it.
func (s *TournamentStore) UpdateMatchTx(ctx context.Context, tx *sqlx.Tx, match *bracket.Match, expected bracket.MatchStatus) error {
	match.UpdatedAt = time.Now().UTC()
	arg := struct {
		*bracket.Match
		ExpectedStatus bracket.MatchStatus `db:"expected_status"`
	}{match, expected}

	res, err := tx.NamedExecContext(ctx, `UPDATE matches SET
			participant1_id = :participant1_id,
			participant2_id = :participant2_id,
			winner_id = :winner_id,
			status = :status,
			is_bye = :is_bye,
			ready_1 = :ready_1,
			ready_2 = :ready_2,
			session_ref = :session_ref,
			updated_at = :updated_at,
			completed_at = :completed_at
		WHERE id = :id AND status = :expected_status`, arg)
	if err != nil {
		return translate(err, "update match")
	}
	return expectOneRow(res, "match")
}

// GetNextMatchForParticipant returns the earliest unfinished match the
// participant is seated in, or nil when there is none.
func (s *TournamentStore) GetNextMatchForParticipant(ctx context.Context, tournamentID, participantID uuid.UUID) (*bracket.Match, error) {
	matches := []bracket.Match{}
	err := s.db.SelectContext(ctx, &matches, s.db.Rebind(`
		SELECT * FROM matches
		WHERE tournament_id = ? AND status <> ? AND (participant1_id = ? OR participant2_id = ?)
		ORDER BY round ASC, position ASC
		LIMIT 1`), tournamentID, bracket.MatchCompleted, participantID, participantID)
	if err != nil {
		return nil, translate(err, "get next match")
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}
