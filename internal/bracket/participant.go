package bracket

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a registration record. Its seed is the registration order,
// starting at 1.
type Participant struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	Seed         int       `db:"seed" json:"seed"`
	Eliminated   bool      `db:"eliminated" json:"eliminated"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}
