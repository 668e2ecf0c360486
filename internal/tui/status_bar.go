package tui

import (
	"fmt"
	"strings"
	"time"
)

const statusSeparator = "  |  "

// StatusBarModel is the one-line footer: index summary, query state and key
// hints.
type StatusBarModel struct {
	Items            int
	BuildID          string
	Source           string
	Pending          bool
	LastResponseTime time.Duration
	Width            int
	Styles           Styles
}

func NewStatusBarModel(styles Styles) StatusBarModel {
	return StatusBarModel{Styles: styles}
}

func (s StatusBarModel) View() string {
	muted, accent := s.Styles.Muted, s.Styles.Accent

	segments := make([]string, 0, 5)
	if s.BuildID == "" {
		segments = append(segments, muted.Render("index cold"))
	} else {
		segments = append(segments,
			accent.Render(fmt.Sprintf("%d items", s.Items)),
			muted.Render("build "+shortID(s.BuildID)),
		)
		if s.Source != "" {
			segments = append(segments, muted.Render(s.Source))
		}
	}

	switch {
	case s.Pending:
		segments = append(segments, accent.Render("thinking..."))
	case s.LastResponseTime > 0:
		segments = append(segments, muted.Render(latency(s.LastResponseTime)))
	}
	segments = append(segments, muted.Render("enter send · esc quit"))

	return s.Styles.StatusBar.Width(s.Width).Render(strings.Join(segments, statusSeparator))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// latency rounds d to a unit that keeps the footer short.
func latency(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}
