// Package tui renders a presentation player in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"notebook-backend/internal/player"
)

const frameInterval = 100 * time.Millisecond

type frameMsg time.Time

// Model drives a player.Player from keyboard and mouse input. It polls the
// player on every frame instead of subscribing to changes, so player
// callbacks never block on the program's message loop.
type Model struct {
	player *player.Player
	closed <-chan struct{}
	bar    progress.Model
	width  int
	height int
}

// New wraps p. closed must be closed when the player closes; the model quits
// on the next frame after that.
func New(p *player.Player, closed <-chan struct{}) Model {
	return Model{
		player: p,
		closed: closed,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return frame()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.player.Close()
			return m, tea.Quit
		}
		m.player.HandleKey(msg.String())
		if m.isClosed() {
			return m, tea.Quit
		}
		return m, nil

	case tea.MouseMsg:
		m.player.PointerActivity()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-8, 10)
		return m, nil

	case frameMsg:
		if m.isClosed() {
			return m, tea.Quit
		}
		return m, frame()
	}
	return m, nil
}

func (m Model) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m Model) View() string {
	st := m.player.State()
	pres := m.player.Presentation()

	if st.SlideCount == 0 {
		return ErrorStyle.Render("This presentation has no slides.") + "\n" + StatusStyle.Render("q to quit") + "\n"
	}

	slide := pres.Slides[st.CurrentSlide]

	var body strings.Builder
	body.WriteString(slideTitle(slide.Color).Render(slide.Title))
	body.WriteString("\n")
	for _, pt := range slide.Points {
		body.WriteString(PointStyle.Render("• " + pt))
		body.WriteString("\n")
	}

	var b strings.Builder
	if pres.Title != "" {
		b.WriteString(DeckTitleStyle.Render(pres.Title))
		b.WriteString("\n")
	}
	b.WriteString(slideBox(slide.Color, m.width).Render(strings.TrimRight(body.String(), "\n")))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(st.SlideProgress))
	b.WriteString("\n")
	b.WriteString(StatusStyle.Render(statusLine(st)))
	b.WriteString("\n")
	if st.ControlsVisible {
		b.WriteString(ControlsStyle.Render("space play/pause · ←/→ slides · m mute · esc close"))
		b.WriteString("\n")
	}

	if m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, b.String())
	}
	return b.String()
}

func statusLine(st player.State) string {
	line := fmt.Sprintf("Slide %d/%d  %s", st.CurrentSlide+1, st.SlideCount, st.Status)
	if st.IsMuted {
		line += "  muted"
	}
	return line
}
