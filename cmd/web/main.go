package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/config"
	"github.com/AdamBeresnev/bracket-engine/internal/db"
	"github.com/AdamBeresnev/bracket-engine/internal/ledger"
	"github.com/AdamBeresnev/bracket-engine/internal/middleware"
	"github.com/AdamBeresnev/bracket-engine/internal/realtime"
	"github.com/AdamBeresnev/bracket-engine/internal/rooms"
	"github.com/AdamBeresnev/bracket-engine/internal/service"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
)

type application struct {
	db             *sqlx.DB
	sessionManager *scs.SessionManager
	verifier       *middleware.TokenVerifier
	hub            *realtime.Hub
	ledger         *ledger.Ledger
	allowedOrigins []string

	users        *service.UserService
	tournaments  *service.TournamentService
	participants *service.ParticipantService
	matches      *service.MatchService
	brackets     *service.BracketService
}

func newApplication(database *sqlx.DB, sessionManager *scs.SessionManager, verifier *middleware.TokenVerifier, hub *realtime.Hub, allocator rooms.Allocator) *application {
	tournamentStore := store.NewTournamentStore(database)
	userStore := store.NewUserStore(database)
	coins := ledger.New(database)

	participants := service.NewParticipantService(tournamentStore, userStore, coins, hub)
	return &application{
		db:             database,
		sessionManager: sessionManager,
		verifier:       verifier,
		hub:            hub,
		ledger:         coins,
		users:          service.NewUserService(userStore),
		tournaments:    service.NewTournamentService(tournamentStore, coins, hub),
		participants:   participants,
		matches:        service.NewMatchService(tournamentStore, coins, allocator, hub),
		brackets:       service.NewBracketService(tournamentStore, participants),
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	database, err := db.InitDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to initialise database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	if cfg.DBDriver == config.DriverSQLite {
		sessionManager.Store = sqlite3store.New(database.DB)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	app := newApplication(database, sessionManager, middleware.NewTokenVerifier(cfg.JWTSecretKey), hub, rooms.NewLocalAllocator())
	app.allowedOrigins = cfg.AllowedOrigins

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      newRouter(app),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  time.Minute,
	}

	go func() {
		slog.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
