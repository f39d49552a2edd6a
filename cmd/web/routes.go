package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/httputil"
	"github.com/AdamBeresnev/bracket-engine/internal/middleware"
	"github.com/AdamBeresnev/bracket-engine/internal/realtime"
	"github.com/AdamBeresnev/bracket-engine/internal/service"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/AdamBeresnev/bracket-engine/views"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

func urlID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+what+" ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := httputil.WriteJSON(w, status, data, nil); err != nil {
		httputil.InternalServerError(w, "Failed to write response", err)
	}
}

func parseTournamentFilter(r *http.Request) (store.TournamentFilter, error) {
	q := r.URL.Query()
	filter := store.TournamentFilter{Type: bracket.TournamentType(q.Get("type"))}

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, bracket.TournamentStatus(strings.TrimSpace(s)))
		}
	}
	if raw := q.Get("creator_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, err
		}
		filter.CreatorID = &id
	}
	if raw := q.Get("entry_fee_max"); raw != "" {
		fee, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, err
		}
		filter.EntryFeeMax = &fee
	}
	if raw := q.Get("has_space"); raw != "" {
		hasSpace, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, err
		}
		filter.HasSpace = hasSpace
	}

	var err error
	if filter.Limit, filter.Offset, err = parsePage(r); err != nil {
		return filter, err
	}
	return filter, nil
}

func parsePage(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return 0, 0, err
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			return 0, 0, err
		}
	}
	return limit, offset, nil
}

func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(app.sessionManager.LoadAndSave)
	r.Use(middleware.LoadIdentity(app.sessionManager, app.verifier, app.users))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := app.db.PingContext(r.Context()); err != nil {
			httputil.InternalServerError(w, "Database unreachable", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Exchanges a bearer token for a browser session. LoadIdentity has
	// already verified the token and mirrored the user.
	r.Post("/auth/session", func(w http.ResponseWriter, r *http.Request) {
		user := middleware.GetAuthenticatedUser(r.Context())
		if user == nil {
			httputil.Unauthorized(w)
			return
		}
		if err := app.sessionManager.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		app.sessionManager.Put(r.Context(), middleware.SessionUserKey, user.ID.String())
		writeJSON(w, http.StatusOK, user)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := app.sessionManager.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to destroy session", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/tournaments", func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseTournamentFilter(r)
		if err != nil {
			httputil.BadRequest(w, "Invalid query parameters", err)
			return
		}
		tournaments, err := app.tournaments.ListTournaments(r.Context(), filter)
		if err != nil {
			httputil.WriteError(w, "Failed to list tournaments", err)
			return
		}
		writeJSON(w, http.StatusOK, tournaments)
	})

	r.Get("/tournaments/active", func(w http.ResponseWriter, r *http.Request) {
		limit, offset, err := parsePage(r)
		if err != nil {
			httputil.BadRequest(w, "Invalid query parameters", err)
			return
		}
		tournaments, err := app.tournaments.ActiveTournaments(r.Context(), limit, offset)
		if err != nil {
			httputil.WriteError(w, "Failed to list active tournaments", err)
			return
		}
		writeJSON(w, http.StatusOK, tournaments)
	})

	r.Get("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "tournament")
		if !ok {
			return
		}
		tournament, err := app.tournaments.GetTournament(r.Context(), id)
		if err != nil {
			httputil.WriteError(w, "Failed to get tournament", err)
			return
		}
		writeJSON(w, http.StatusOK, tournament)
	})

	r.Get("/tournaments/{id}/bracket", func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "tournament")
		if !ok {
			return
		}
		view, err := app.brackets.GetBracket(r.Context(), id)
		if err != nil {
			httputil.WriteError(w, "Failed to get bracket", err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	})

	r.Get("/tournaments/{id}/bracket/view", func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "tournament")
		if !ok {
			return
		}
		view, err := app.brackets.GetBracket(r.Context(), id)
		if err != nil {
			httputil.WriteError(w, "Failed to get bracket", err)
			return
		}
		if err := views.Render(w, r, views.BracketPage(views.PrepareBracketData(view))); err != nil {
			httputil.InternalServerError(w, "Failed to render bracket", err)
		}
	})

	r.Get("/tournaments/{id}/participants", func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "tournament")
		if !ok {
			return
		}
		participants, err := app.participants.Participants(r.Context(), id)
		if err != nil {
			httputil.WriteError(w, "Failed to list participants", err)
			return
		}
		writeJSON(w, http.StatusOK, participants)
	})

	r.Get("/tournaments/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "tournament")
		if !ok {
			return
		}
		stats, err := app.tournaments.Stats(r.Context(), id)
		if err != nil {
			httputil.WriteError(w, "Failed to get tournament stats", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	r.Get("/ws/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "tournament")
		if !ok {
			return
		}
		if _, err := app.tournaments.GetTournament(r.Context(), id); err != nil {
			httputil.WriteError(w, "Failed to get tournament", err)
			return
		}
		app.hub.ServeWS(w, r, realtime.TournamentRoom(id))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Post("/tournaments", func(w http.ResponseWriter, r *http.Request) {
			var input service.CreateTournamentInput
			if err := httputil.ReadJSON(w, r, &input); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			tournament, err := app.tournaments.CreateTournament(r.Context(), input)
			if err != nil {
				httputil.WriteError(w, "Failed to create tournament", err)
				return
			}
			headers := http.Header{"Location": []string{"/tournaments/" + tournament.ID.String()}}
			if err := httputil.WriteJSON(w, http.StatusCreated, tournament, headers); err != nil {
				httputil.InternalServerError(w, "Failed to write response", err)
			}
		})

		r.Get("/tournaments/mine", func(w http.ResponseWriter, r *http.Request) {
			tournaments, err := app.tournaments.MyTournaments(r.Context())
			if err != nil {
				httputil.WriteError(w, "Failed to list tournaments", err)
				return
			}
			writeJSON(w, http.StatusOK, tournaments)
		})

		r.Get("/participations/mine", func(w http.ResponseWriter, r *http.Request) {
			tournaments, err := app.participants.MyParticipations(r.Context())
			if err != nil {
				httputil.WriteError(w, "Failed to list participations", err)
				return
			}
			writeJSON(w, http.StatusOK, tournaments)
		})

		r.Patch("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r, "tournament")
			if !ok {
				return
			}
			var input service.UpdateTournamentInput
			if err := httputil.ReadJSON(w, r, &input); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			tournament, err := app.tournaments.UpdateTournament(r.Context(), id, input)
			if err != nil {
				httputil.WriteError(w, "Failed to update tournament", err)
				return
			}
			writeJSON(w, http.StatusOK, tournament)
		})

		r.Post("/tournaments/{id}/open", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r, "tournament")
			if !ok {
				return
			}
			tournament, err := app.tournaments.OpenRegistration(r.Context(), id)
			if err != nil {
				httputil.WriteError(w, "Failed to open registration", err)
				return
			}
			writeJSON(w, http.StatusOK, tournament)
		})

		// Admins may register someone else with ?user_id=.
		r.Post("/tournaments/{id}/register", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r, "tournament")
			if !ok {
				return
			}
			userID, _ := middleware.GetUserIDFromContext(r.Context())
			if raw := r.URL.Query().Get("user_id"); raw != "" {
				var err error
				if userID, err = uuid.Parse(raw); err != nil {
					httputil.BadRequest(w, "Invalid user ID", err)
					return
				}
			}
			participant, err := app.participants.Register(r.Context(), id, userID)
			if err != nil {
				httputil.WriteError(w, "Failed to register", err)
				return
			}
			writeJSON(w, http.StatusCreated, participant)
		})

		r.Delete("/tournaments/{id}/register", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r, "tournament")
			if !ok {
				return
			}
			userID, _ := middleware.GetUserIDFromContext(r.Context())
			refunded, err := app.participants.Unregister(r.Context(), id, userID)
			if err != nil {
				httputil.WriteError(w, "Failed to unregister", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]int64{"refunded": refunded})
		})

		r.Post("/tournaments/{id}/start", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r, "tournament")
			if !ok {
				return
			}
			if _, err := app.tournaments.Start(r.Context(), id); err != nil {
				httputil.WriteError(w, "Failed to start tournament", err)
				return
			}
			view, err := app.brackets.GetBracket(r.Context(), id)
			if err != nil {
				httputil.WriteError(w, "Failed to get bracket", err)
				return
			}
			writeJSON(w, http.StatusOK, view)
		})

		r.Post("/tournaments/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r, "tournament")
			if !ok {
				return
			}
			var input struct {
				Reason string `json:"reason"`
			}
			if r.ContentLength != 0 {
				if err := httputil.ReadJSON(w, r, &input); err != nil {
					httputil.BadRequest(w, err.Error(), err)
					return
				}
			}
			tournament, err := app.tournaments.Cancel(r.Context(), id, input.Reason)
			if err != nil {
				httputil.WriteError(w, "Failed to cancel tournament", err)
				return
			}
			writeJSON(w, http.StatusOK, tournament)
		})

		r.Get("/tournaments/{id}/next-match", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r, "tournament")
			if !ok {
				return
			}
			match, err := app.matches.NextMatch(r.Context(), id)
			if err != nil {
				httputil.WriteError(w, "Failed to get next match", err)
				return
			}
			writeJSON(w, http.StatusOK, match)
		})

		r.Post("/matches/{id}/ready", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r, "match")
			if !ok {
				return
			}
			match, err := app.matches.SetReady(r.Context(), id)
			if err != nil {
				httputil.WriteError(w, "Failed to mark ready", err)
				return
			}
			writeJSON(w, http.StatusOK, match)
		})

		r.Post("/matches/{id}/result", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlID(w, r, "match")
			if !ok {
				return
			}
			var input struct {
				WinnerID uuid.UUID `json:"winner_id"`
			}
			if err := httputil.ReadJSON(w, r, &input); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			if input.WinnerID == uuid.Nil {
				httputil.BadRequest(w, "winner_id is required", nil)
				return
			}
			result, err := app.matches.ReportMatchResult(r.Context(), id, input.WinnerID)
			if err != nil {
				httputil.WriteError(w, "Failed to report result", err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		r.Get("/wallet", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := middleware.GetUserIDFromContext(r.Context())
			balance, err := app.ledger.Balance(r.Context(), userID)
			if err != nil {
				httputil.WriteError(w, "Failed to get balance", err)
				return
			}
			entries, err := app.ledger.Entries(r.Context(), userID)
			if err != nil {
				httputil.WriteError(w, "Failed to list ledger entries", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"balance": balance,
				"entries": entries,
				"as_of":   time.Now().UTC(),
			})
		})

		r.Post("/wallets/{id}/deposit", func(w http.ResponseWriter, r *http.Request) {
			if !middleware.IsAdmin(r.Context()) {
				httputil.WriteError(w, "Deposit refused", fmt.Errorf("%w: only admins may deposit coins", bracket.ErrForbidden))
				return
			}
			userID, ok := urlID(w, r, "user")
			if !ok {
				return
			}
			var input struct {
				Amount int64 `json:"amount"`
			}
			if err := httputil.ReadJSON(w, r, &input); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			if err := app.ledger.Deposit(r.Context(), userID, input.Amount); err != nil {
				httputil.WriteError(w, "Failed to deposit", err)
				return
			}
			balance, err := app.ledger.Balance(r.Context(), userID)
			if err != nil {
				httputil.WriteError(w, "Failed to get balance", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
		})
	})

	return r
}
