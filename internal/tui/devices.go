// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"panadapter/internal/capture"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#1F5F99")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4FA3E0")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#707070"))
)

// Screen is the picker's active page.
type Screen int

const (
	ListScreen Screen = iota
	RateScreen
)

var (
	keyQuit   = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp     = key.NewBinding(key.WithKeys("up", "k"))
	keyDown   = key.NewBinding(key.WithKeys("down", "j"))
	keyEnter  = key.NewBinding(key.WithKeys("enter"))
	keyBack   = key.NewBinding(key.WithKeys("esc"))
	quadRates = []float64{44100, 48000, 96000, 192000}
)

// Selection is the device and rate chosen in the picker.
type Selection struct {
	DeviceID   int
	Name       string
	SampleRate float64
}

// DevicePicker lists the host's capture devices and lets the user choose an
// I/Q capable one and its sample rate.
type DevicePicker struct {
	fetch func() ([]capture.Device, error)

	devices       []capture.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  Screen

	rateIndex int
	selection *Selection
}

type devicesMsg struct{ devices []capture.Device }

type errMsg struct{ err error }

// NewDevicePicker creates a picker over the devices fetch returns.
func NewDevicePicker(fetch func() ([]capture.Device, error)) DevicePicker {
	return DevicePicker{fetch: fetch, activeScreen: ListScreen}
}

func (m DevicePicker) Init() tea.Cmd {
	return func() tea.Msg {
		devices, err := m.fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Selection returns the confirmed choice, or nil if the user quit.
func (m DevicePicker) Selection() *Selection { return m.selection }

func (m DevicePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}
		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, keyUp):
				m.selectedIndex = max(0, m.selectedIndex-1)
			case key.Matches(msg, keyDown):
				m.selectedIndex = max(0, min(len(m.devices)-1, m.selectedIndex+1))
			case key.Matches(msg, keyEnter):
				if len(m.devices) > 0 && m.devices[m.selectedIndex].IQCapable() {
					m.activeScreen = RateScreen
					m.rateIndex = m.defaultRateIndex()
				}
			}
		case RateScreen:
			switch {
			case key.Matches(msg, keyBack):
				m.activeScreen = ListScreen
			case key.Matches(msg, keyUp):
				m.rateIndex = max(0, m.rateIndex-1)
			case key.Matches(msg, keyDown):
				m.rateIndex = min(len(quadRates)-1, m.rateIndex+1)
			case key.Matches(msg, keyEnter):
				d := m.devices[m.selectedIndex]
				m.selection = &Selection{DeviceID: d.ID, Name: d.Name, SampleRate: quadRates[m.rateIndex]}
				return m, tea.Quit
			}
		}
		m.refresh()
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m DevicePicker) defaultRateIndex() int {
	def := m.devices[m.selectedIndex].DefaultSampleRate
	for i, rate := range quadRates {
		if rate == def {
			return i
		}
	}
	return 1
}

func (m *DevicePicker) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ListScreen {
		m.viewport.SetContent(m.renderDevices())
	} else {
		m.viewport.SetContent(m.renderRates())
	}
}

func (m DevicePicker) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Capture Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Choose I/Q device • q: Quit")
	} else {
		title = titleStyle.Render("Sample Rate")
		help = infoStyle.Render("↑/↓: Change • Enter: Start • Esc: Back • q: Quit")
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DevicePicker) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, d := range m.devices {
		kind := "mono"
		if d.IQCapable() {
			kind = "I/Q"
		}
		info := fmt.Sprintf("[%d] %s (%s)\n    Inputs: %d, default rate: %s Hz\n",
			d.ID, d.Name, kind, d.MaxInputChannels, humanize.Comma(int64(d.DefaultSampleRate)))

		switch {
		case i == m.selectedIndex:
			info = highlightStyle.Render(info)
		case !d.IQCapable():
			info = dimStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DevicePicker) renderRates() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Device: %s\n\n", m.devices[m.selectedIndex].Name)
	for i, rate := range quadRates {
		marker := " "
		if i == m.rateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %s Hz (±%s Hz visible)\n", marker,
			humanize.Comma(int64(rate)), humanize.Comma(int64(rate/2)))
		if i == m.rateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// PickDevice runs the picker full screen and returns the choice, or nil if
// the user quit without choosing.
func PickDevice(fetch func() ([]capture.Device, error)) (*Selection, error) {
	final, err := tea.NewProgram(NewDevicePicker(fetch), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, err
	}
	return final.(DevicePicker).Selection(), nil
}
