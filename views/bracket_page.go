package views

import (
	"context"
	"io"
	"strconv"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/a-h/templ"
	"github.com/google/uuid"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

// BracketPage renders the read-only bracket as plain HTML.
func BracketPage(data BracketData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := templ.EscapeString(data.Tournament.Name)
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>`+title+`</title></head><body>`); err != nil {
			return err
		}

		header := `<header><h1>` + title + `</h1><p class="status">` + templ.EscapeString(string(data.Tournament.Status)) + `</p>`
		if user := GetUser(ctx); user != nil {
			header += `<p class="user">Signed in as ` + templ.EscapeString(user.Username) + `</p>`
		}
		if _, err := io.WriteString(w, header+`</header>`); err != nil {
			return err
		}

		if len(data.RoundNums) == 0 {
			_, err := io.WriteString(w, `<p>The bracket is drawn when the tournament starts.</p></body></html>`)
			return err
		}

		if _, err := io.WriteString(w, `<main class="bracket">`); err != nil {
			return err
		}
		for _, round := range data.RoundNums {
			if _, err := io.WriteString(w, `<section class="round"><h2>`+templ.EscapeString(data.RoundTitle(round))+`</h2>`); err != nil {
				return err
			}
			for _, m := range data.Rounds[round] {
				if err := writeMatch(w, data, m); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</section>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

func writeMatch(w io.Writer, data BracketData, m bracket.Match) error {
	html := `<div class="match ` + string(m.Status) + `" id="match-` + m.ID.String() + `">`
	for _, id := range []*uuid.UUID{m.Participant1ID, m.Participant2ID} {
		class := "slot"
		if id != nil && m.WinnerID != nil && *id == *m.WinnerID {
			class += " winner"
		}
		html += `<div class="` + class + `">` + templ.EscapeString(data.SlotName(m, id)) + `</div>`
	}
	_, err := io.WriteString(w, html+`</div>`)
	return err
}
