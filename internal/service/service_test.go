package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/ledger"
	"github.com/AdamBeresnev/bracket-engine/internal/middleware"
	"github.com/AdamBeresnev/bracket-engine/internal/rooms"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	users "github.com/AdamBeresnev/bracket-engine/internal/user"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "sqlite3", driver)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

type event struct {
	TournamentID uuid.UUID
	Type         string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) Publish(tournamentID uuid.UUID, messageType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{tournamentID, messageType})
}

func (n *recordingNotifier) count(messageType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Type == messageType {
			c++
		}
	}
	return c
}

type fixture struct {
	db           *sqlx.DB
	store        *store.TournamentStore
	userStore    *store.UserStore
	ledger       *ledger.Ledger
	notifier     *recordingNotifier
	allocator    rooms.Allocator
	tournaments  *TournamentService
	participants *ParticipantService
	matches      *MatchService
	brackets     *BracketService

	creatorCtx context.Context
	// player contexts keyed by participant id once registered
	players map[uuid.UUID]context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:        db,
		store:     store.NewTournamentStore(db),
		userStore: store.NewUserStore(db),
		ledger:    ledger.New(db),
		notifier:  &recordingNotifier{},
		allocator: rooms.NewLocalAllocator(),
		players:   map[uuid.UUID]context.Context{},
	}
	f.wire()

	creatorID, _ := f.user(t, "organiser", 0)
	f.creatorCtx = middleware.WithIdentity(context.Background(), creatorID, users.RolePlayer)
	return f
}

// wire builds the services; call it again after swapping the allocator.
func (f *fixture) wire() {
	f.tournaments = NewTournamentService(f.store, f.ledger, f.notifier)
	f.participants = NewParticipantService(f.store, f.userStore, f.ledger, f.notifier)
	f.matches = NewMatchService(f.store, f.ledger, f.allocator, f.notifier)
	f.brackets = NewBracketService(f.store, f.participants)
}

// user creates a local identity with the given coin balance.
func (f *fixture) user(t *testing.T, name string, balance int64) (uuid.UUID, context.Context) {
	t.Helper()

	id := uuid.New()
	require.NoError(t, f.userStore.UpsertUser(context.Background(), &users.User{
		ID: id, Username: name, Role: users.RolePlayer, CreatedAt: time.Now().UTC(),
	}))
	if balance > 0 {
		require.NoError(t, f.ledger.Deposit(context.Background(), id, balance))
	}
	return id, middleware.WithIdentity(context.Background(), id, users.RolePlayer)
}

func (f *fixture) openTournament(t *testing.T, maxParticipants int, entryFee, prizePool int64) *bracket.Tournament {
	t.Helper()

	tournament, err := f.tournaments.CreateTournament(f.creatorCtx, CreateTournamentInput{
		Name:            "Friday Cup",
		MaxParticipants: maxParticipants,
		EntryFee:        entryFee,
		PrizePool:       prizePool,
	})
	require.NoError(t, err)

	tournament, err = f.tournaments.OpenRegistration(f.creatorCtx, tournament.ID)
	require.NoError(t, err)
	return tournament
}

// register signs up n fresh players, each funded with balance, in seed order.
func (f *fixture) register(t *testing.T, tournamentID uuid.UUID, n int, balance int64) []bracket.Participant {
	t.Helper()

	out := make([]bracket.Participant, 0, n)
	for i := 0; i < n; i++ {
		userID, ctx := f.user(t, "player", balance)
		p, err := f.participants.Register(ctx, tournamentID, userID)
		require.NoError(t, err)
		f.players[p.ID] = ctx
		out = append(out, *p)
	}
	return out
}

func (f *fixture) match(t *testing.T, tournamentID uuid.UUID, round, position int) bracket.Match {
	t.Helper()

	matches, err := f.store.GetMatches(context.Background(), tournamentID)
	require.NoError(t, err)
	for _, m := range matches {
		if m.Round == round && m.Position == position {
			return m
		}
	}
	t.Fatalf("match %d/%d not found", round, position)
	return bracket.Match{}
}

// play readies both players of a waiting match and reports winner as the
// tournament creator.
func (f *fixture) play(t *testing.T, m bracket.Match, winner uuid.UUID) *MatchResult {
	t.Helper()

	require.NotNil(t, m.Participant1ID)
	require.NotNil(t, m.Participant2ID)
	for _, pid := range []uuid.UUID{*m.Participant1ID, *m.Participant2ID} {
		_, err := f.matches.SetReady(f.players[pid], m.ID)
		require.NoError(t, err)
	}

	result, err := f.matches.ReportMatchResult(f.creatorCtx, m.ID, winner)
	require.NoError(t, err)
	return result
}

func (f *fixture) balance(t *testing.T, participant bracket.Participant) int64 {
	t.Helper()

	b, err := f.ledger.Balance(context.Background(), participant.UserID)
	require.NoError(t, err)
	return b
}
