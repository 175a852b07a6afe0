package export

import (
	"fmt"
	"io"
	"time"

	"github.com/ruler-racer/rulerdash/internal/session"
)

// RenderSession charts a session over its own display domain at now.
func RenderSession(w io.Writer, st session.State, history map[string][]session.Point, now time.Time, fallback time.Duration, opts Options) error {
	t0, t1 := session.Domain(st, now, fallback)
	if opts.Title == "" {
		opts.Title = Title(st)
	}
	return RenderPNG(w, history, t0, t1, opts)
}

// Title summarises a session for the chart heading.
func Title(st session.State) string {
	title := "Golomb ruler search"
	if st.CurrentOrder != nil {
		title = fmt.Sprintf("Golomb ruler search, order %d", *st.CurrentOrder)
	}
	if sol := st.DisplaySolution(); len(sol) > 0 {
		title += fmt.Sprintf(", length %d", sol[len(sol)-1])
	}
	if st.SessionID != "" {
		id := st.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		title += " [" + id + "]"
	}
	return title
}
