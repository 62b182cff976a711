package tui

import (
	"fmt"
	"image"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/autorecord/autorecord/internal/status"
)

// firstCycleDelay is how long the display waits before its first cycle.
const firstCycleDelay = time.Second

// rowHeight is the number of lines one user occupies, spacing included.
const rowHeight = avatarCells/2 + 1

// headerHeight covers the header line, the blank line under it and the footer.
const headerHeight = 3

type (
	// cycleMsg asks the model to run a status cycle.
	cycleMsg struct{}
	// viewMsg carries a completed cycle's result.
	viewMsg status.View
	// dispatchMsg is a function to run inside Update.
	dispatchMsg func()
)

// Cycler produces one reconciled view.
type Cycler interface {
	Cycle() status.View
}

// Model is the bubbletea model of the status display.
type Model struct {
	cycler   Cycler
	interval time.Duration
	publish  func(status.View)

	view    status.View
	loaded  bool
	avatars map[string]*image.NRGBA

	offset int
	width  int
	height int

	styles styles
}

// NewModel creates a display that runs cycler every interval. avatars is the
// map image callbacks write into; publish, if non-nil, receives every view.
func NewModel(cycler Cycler, interval time.Duration, avatars map[string]*image.NRGBA, publish func(status.View)) Model {
	if avatars == nil {
		avatars = make(map[string]*image.NRGBA)
	}
	return Model{
		cycler:   cycler,
		interval: interval,
		publish:  publish,
		avatars:  avatars,
		styles:   defaultStyles(),
	}
}

// Init schedules the first cycle.
func (m Model) Init() tea.Cmd {
	return tick(firstCycleDelay)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case cycleMsg:
		c := m.cycler
		return m, func() tea.Msg { return viewMsg(c.Cycle()) }

	case viewMsg:
		m.view = status.View(msg)
		m.loaded = true
		m.clampOffset()
		if m.publish != nil {
			m.publish(m.view)
		}
		return m, tick(m.interval)

	case dispatchMsg:
		msg()
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clampOffset()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.offset--
			m.clampOffset()
		case "down", "j":
			m.offset++
			m.clampOffset()
		case "home", "g":
			m.offset = 0
		}
	}
	return m, nil
}

// View renders the display.
func (m Model) View() string {
	var sb strings.Builder

	header := fmt.Sprintf("Currently Recording: %d/%d", m.view.RecordingCount, m.view.LiveCount)
	sb.WriteString(m.styles.Header.Render(header))
	sb.WriteString("\n\n")

	switch {
	case !m.loaded:
		sb.WriteString(m.styles.Muted.Render("Waiting for first status cycle..."))
		sb.WriteString("\n")
	case len(m.view.Rows) == 0:
		sb.WriteString(m.styles.Muted.Render("Nobody is live."))
		sb.WriteString("\n")
	default:
		rows := m.view.Rows[m.offset:]
		if n := m.visibleRows(); n < len(rows) {
			rows = rows[:n]
		}
		for _, r := range rows {
			sb.WriteString(m.renderRow(r))
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString(m.styles.Footer.Render("q quit • ↑/↓ scroll"))
	return sb.String()
}

func (m Model) renderRow(r status.Row) string {
	text := m.styles.Username.Render(r.Username)
	if r.Recording {
		text = lipgloss.JoinVertical(lipgloss.Left, text, m.styles.Recording.Render("■ Recording"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, renderAvatar(m.avatars[r.ImageURL]), text)
}

// visibleRows returns how many rows fit; all of them before the first
// WindowSizeMsg.
func (m Model) visibleRows() int {
	if m.height <= 0 {
		return len(m.view.Rows)
	}
	n := (m.height - headerHeight) / rowHeight
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Model) clampOffset() {
	maxOffset := len(m.view.Rows) - m.visibleRows()
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return cycleMsg{} })
}
