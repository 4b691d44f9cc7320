// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"panadapter/internal/display"
)

// shades maps intensity to a character, darkest first.
const shades = " .:-=+*#%@"

// Terminal is a display.Scanout that keeps a downsampled copy of the
// waterfall layer for the monitor. Each cell holds the brightest pixel it
// covers.
type Terminal struct {
	width, height int // Panel pixels
	cols, rows    int // Cells
	every         uint64

	mu     sync.Mutex
	cells  []byte
	frames uint64
}

// NewTerminal creates a sink for a width×height panel shown as cols×rows
// cells, sampled every n-th refresh.
func NewTerminal(width, height, cols, rows, n int) *Terminal {
	cols = max(1, min(cols, width))
	rows = max(1, min(rows, height))
	return &Terminal{
		width:  width,
		height: height,
		cols:   cols,
		rows:   rows,
		every:  uint64(max(1, n)),
		cells:  make([]byte, cols*rows),
	}
}

// Scanout implements display.Scanout.
func (t *Terminal) Scanout(bg, _ *display.Buffer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames++
	if (t.frames-1)%t.every != 0 || len(bg.Pix) != t.width*t.height {
		return
	}
	clear(t.cells)
	for y := range t.height {
		cy := y * t.rows / t.height
		line := bg.Pix[y*t.width : (y+1)*t.width]
		for x, v := range line {
			c := &t.cells[cy*t.cols+x*t.cols/t.width]
			*c = max(*c, v)
		}
	}
}

// Frames returns the number of refreshes seen.
func (t *Terminal) Frames() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// Render draws the latest sample as text, one line per cell row.
func (t *Terminal) Render() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sb strings.Builder
	sb.Grow((t.cols + 1) * t.rows)
	for r := range t.rows {
		for _, v := range t.cells[r*t.cols : (r+1)*t.cols] {
			sb.WriteByte(shades[int(v)*(len(shades)-1)/255])
		}
		if r < t.rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

var _ display.Scanout = (*Terminal)(nil)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#1F5F99"))
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0"))
)

type tickMsg time.Time

// Monitor shows the waterfall and the pipeline's status line.
type Monitor struct {
	term     *Terminal
	title    string
	status   func() string
	interval time.Duration
	last     string
}

// NewMonitor creates a monitor redrawing every interval.
func NewMonitor(term *Terminal, title string, status func() string, interval time.Duration) Monitor {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return Monitor{term: term, title: title, status: status, interval: interval}
}

func (m Monitor) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Monitor) Init() tea.Cmd { return m.tick() }

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}
	case tickMsg:
		if m.status != nil {
			m.last = m.status()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Monitor) View() string {
	return titleStyle.Render(m.title) + "\n" +
		frameStyle.Render(m.term.Render()) + "\n" +
		statusStyle.Render(m.last) + "\n" +
		infoStyle.Render("q: Quit")
}

// RunMonitor runs the monitor until the user quits or ctx is done.
func RunMonitor(ctx context.Context, m Monitor) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
