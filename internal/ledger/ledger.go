// Package ledger keeps the internal coin balances. Every tournament-related
// movement is keyed by (tournament, participant, reason) and applied at most
// once, so retried requests never charge or pay twice.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Reason string

const (
	ReasonEntryFee Reason = "entry_fee"
	ReasonPrize    Reason = "prize"
	ReasonRefund   Reason = "refund"
	ReasonDeposit  Reason = "deposit"
)

type Key struct {
	TournamentID  uuid.UUID
	ParticipantID uuid.UUID
	Reason        Reason
}

type Entry struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	TournamentID  *uuid.UUID `db:"tournament_id" json:"tournament_id,omitempty"`
	ParticipantID *uuid.UUID `db:"participant_id" json:"participant_id,omitempty"`
	Reason        Reason     `db:"reason" json:"reason"`
	Amount        int64      `db:"amount" json:"amount"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

type Ledger struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// Debit takes amount coins from the user. It runs on ext so it can join the
// caller's transaction. The returned bool is false when the key was already
// applied.
func (l *Ledger) Debit(ctx context.Context, ext sqlx.ExtContext, key Key, userID uuid.UUID, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("%w: debit amount must not be negative", bracket.ErrValidation)
	}
	if amount == 0 {
		return false, nil
	}

	applied, err := l.applied(ctx, ext, key)
	if err != nil || applied {
		return false, err
	}

	res, err := ext.ExecContext(ctx, ext.Rebind(`UPDATE wallets SET balance = balance - ?, updated_at = ?
		WHERE user_id = ? AND balance >= ?`), amount, time.Now().UTC(), userID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to debit wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to debit wallet: %w", err)
	}
	if n == 0 {
		return false, fmt.Errorf("%w: %d coins required", bracket.ErrInsufficientFunds, amount)
	}

	if err := l.record(ctx, ext, key, userID, -amount); err != nil {
		return false, err
	}
	return true, nil
}

// Credit adds amount coins to the user, creating the wallet if needed.
func (l *Ledger) Credit(ctx context.Context, ext sqlx.ExtContext, key Key, userID uuid.UUID, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("%w: credit amount must not be negative", bracket.ErrValidation)
	}
	if amount == 0 {
		return false, nil
	}

	applied, err := l.applied(ctx, ext, key)
	if err != nil || applied {
		return false, err
	}

	if err := addToWallet(ctx, ext, userID, amount); err != nil {
		return false, err
	}
	if err := l.record(ctx, ext, key, userID, amount); err != nil {
		return false, err
	}
	return true, nil
}

// Refund returns a previously collected entry fee. It credits nothing when no
// fee was collected or the refund already happened.
func (l *Ledger) Refund(ctx context.Context, ext sqlx.ExtContext, tournamentID, participantID uuid.UUID) (int64, error) {
	var fee Entry
	err := sqlx.GetContext(ctx, ext, &fee, ext.Rebind(`SELECT * FROM ledger_entries
		WHERE tournament_id = ? AND participant_id = ? AND reason = ?`), tournamentID, participantID, ReasonEntryFee)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up entry fee: %w", err)
	}

	amount := -fee.Amount
	applied, err := l.Credit(ctx, ext, Key{tournamentID, participantID, ReasonRefund}, fee.UserID, amount)
	if err != nil || !applied {
		return 0, err
	}
	return amount, nil
}

// Deposit tops up a wallet outside of any tournament.
func (l *Ledger) Deposit(ctx context.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: deposit must be positive", bracket.ErrValidation)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := addToWallet(ctx, tx, userID, amount); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO ledger_entries (id, user_id, reason, amount, created_at)
		VALUES (?, ?, ?, ?, ?)`), uuid.New(), userID, ReasonDeposit, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record deposit: %w", err)
	}
	return tx.Commit()
}

func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := l.db.GetContext(ctx, &balance, l.db.Rebind("SELECT balance FROM wallets WHERE user_id = ?"), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (l *Ledger) Entries(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	entries := []Entry{}
	err := l.db.SelectContext(ctx, &entries, l.db.Rebind("SELECT * FROM ledger_entries WHERE user_id = ? ORDER BY created_at ASC, id"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

func (l *Ledger) TournamentEntries(ctx context.Context, tournamentID uuid.UUID) ([]Entry, error) {
	entries := []Entry{}
	err := l.db.SelectContext(ctx, &entries, l.db.Rebind("SELECT * FROM ledger_entries WHERE tournament_id = ? ORDER BY created_at ASC, id"), tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

func (l *Ledger) applied(ctx context.Context, ext sqlx.ExtContext, key Key) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, ext, &count, ext.Rebind(`SELECT COUNT(*) FROM ledger_entries
		WHERE tournament_id = ? AND participant_id = ? AND reason = ?`), key.TournamentID, key.ParticipantID, key.Reason)
	if err != nil {
		return false, fmt.Errorf("failed to check ledger key: %w", err)
	}
	return count > 0, nil
}

func (l *Ledger) record(ctx context.Context, ext sqlx.ExtContext, key Key, userID uuid.UUID, amount int64) error {
	entry := Entry{
		ID:            uuid.New(),
		UserID:        userID,
		TournamentID:  &key.TournamentID,
		ParticipantID: &key.ParticipantID,
		Reason:        key.Reason,
		Amount:        amount,
		CreatedAt:     time.Now().UTC(),
	}
	query, args, err := ext.BindNamed(`INSERT INTO ledger_entries (id, user_id, tournament_id, participant_id, reason, amount, created_at)
		VALUES (:id, :user_id, :tournament_id, :participant_id, :reason, :amount, :created_at)`, entry)
	if err != nil {
		return fmt.Errorf("failed to bind ledger entry: %w", err)
	}
	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return nil
}

func addToWallet(ctx context.Context, ext sqlx.ExtContext, userID uuid.UUID, amount int64) error {
	_, err := ext.ExecContext(ctx, ext.Rebind(`INSERT INTO wallets (user_id, balance, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + excluded.balance, updated_at = excluded.updated_at`),
		userID, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	return nil
}
