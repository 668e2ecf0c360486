package tui

import "github.com/charmbracelet/lipgloss"

// Palette (ANSI 256).
const (
	colorUser      = lipgloss.Color("75")
	colorAssistant = lipgloss.Color("213")
	colorText      = lipgloss.Color("252")
	colorDim       = lipgloss.Color("244")
	colorGood      = lipgloss.Color("76")
	colorWeak      = lipgloss.Color("214")
	colorBar       = lipgloss.Color("235")
	colorRule      = lipgloss.Color("238")
	colorBanner    = lipgloss.Color("62")
)

// Styles groups the lipgloss styles used by the chat view, the status line
// and the input area.
type Styles struct {
	Title lipgloss.Style

	UserLabel       lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantLabel  lipgloss.Style
	AssistantBubble lipgloss.Style
	SystemBubble    lipgloss.Style

	// ScoreHigh marks matches scoring at least 0.5.
	ScoreHigh lipgloss.Style
	ScoreLow  lipgloss.Style

	StatusBar  lipgloss.Style
	InputStyle lipgloss.Style
	Muted      lipgloss.Style
	Accent     lipgloss.Style
}

// NewStyles builds a Styles bound to r; a nil r means the local terminal.
func NewStyles(r *lipgloss.Renderer) Styles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	fg := func(c lipgloss.Color) lipgloss.Style { return r.NewStyle().Foreground(c) }

	return Styles{
		Title: fg(lipgloss.Color("15")).Background(colorBanner).Bold(true).Padding(0, 2),

		UserLabel:       fg(colorUser).Bold(true),
		UserBubble:      fg(colorUser).Padding(0, 1).MarginLeft(4),
		AssistantLabel:  fg(colorAssistant).Bold(true),
		AssistantBubble: fg(colorText).Padding(0, 1).MarginRight(4),
		SystemBubble:    fg(colorDim).Italic(true).Padding(0, 1),

		ScoreHigh: fg(colorGood),
		ScoreLow:  fg(colorWeak),

		StatusBar: fg(colorText).Background(colorBar).Padding(0, 1),
		InputStyle: r.NewStyle().
			BorderTop(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(colorRule),
		Muted:  fg(colorDim),
		Accent: fg(colorAssistant),
	}
}
