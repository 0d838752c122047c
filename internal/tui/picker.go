package tui

import (
	"fmt"
	"strings"

	"audioroute/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E05252"))
)

// Selector applies a device choice. *audio.Engine satisfies it.
type Selector interface {
	SelectDevice(d *audio.Device) error
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Auto   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Select: key.NewBinding(key.WithKeys("enter")),
	Auto:   key.NewBinding(key.WithKeys("a")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// SnapshotMsg carries a new routing snapshot into the program.
type SnapshotMsg audio.Snapshot

type errMsg struct {
	err error
}

// PickerModel is the Bubble Tea model for choosing the audio route.
type PickerModel struct {
	selector Selector
	snapshot audio.Snapshot
	seen     bool
	cursor   int
	viewport viewport.Model
	ready    bool
	err      error
}

// NewPickerModel creates a picker that applies choices through sel.
func NewPickerModel(sel Selector) PickerModel {
	return PickerModel{selector: sel}
}

func (m PickerModel) Init() tea.Cmd {
	return nil
}

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case SnapshotMsg:
		m.snapshot = audio.Snapshot(msg)
		// Start the cursor on the active route.
		if !m.seen && m.snapshot.Selected != nil {
			if i := m.indexOf(*m.snapshot.Selected); i >= 0 {
				m.cursor = i
			}
		}
		m.seen = true
		if m.cursor >= len(m.snapshot.Devices) {
			m.cursor = max(len(m.snapshot.Devices)-1, 0)
		}

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.snapshot.Devices)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Select):
			if m.cursor < len(m.snapshot.Devices) {
				d := m.snapshot.Devices[m.cursor]
				m.err = nil
				cmds = append(cmds, m.selectCmd(&d))
			}
		case key.Matches(msg, keys.Auto):
			m.err = nil
			cmds = append(cmds, m.selectCmd(nil))
		}
	}

	if m.ready {
		m.viewport.SetContent(m.renderDevices())
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// selectCmd runs the selection off the UI goroutine. The resulting
// snapshot arrives as a SnapshotMsg.
func (m PickerModel) selectCmd(d *audio.Device) tea.Cmd {
	sel := m.selector
	return func() tea.Msg {
		if err := sel.SelectDevice(d); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m PickerModel) indexOf(d audio.Device) int {
	for i, dev := range m.snapshot.Devices {
		if dev == d {
			return i
		}
	}
	return -1
}

func (m PickerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	title := titleStyle.Render(fmt.Sprintf("Audio Route (%s)", m.snapshot.State))
	help := infoStyle.Render("↑/↓: Navigate • Enter: Use device • a: Automatic • q: Quit")
	if m.err != nil {
		help = errorStyle.Render("Error: "+m.err.Error()) + "\n" + help
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the inventory, marking the active route and the
// user's override.
func (m PickerModel) renderDevices() string {
	if len(m.snapshot.Devices) == 0 {
		return "No audio devices available."
	}

	var sb strings.Builder
	for i, d := range m.snapshot.Devices {
		marker := " "
		if m.snapshot.Selected != nil && *m.snapshot.Selected == d {
			marker = "●"
		}
		line := fmt.Sprintf("%s %-14s %s", marker, d.Type, d.Name)
		if m.snapshot.UserSelected != nil && *m.snapshot.UserSelected == d {
			line += " (chosen)"
		}
		if i == m.cursor {
			line = highlightStyle.Render("▶" + line)
		} else {
			line = " " + line
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if m.snapshot.UserSelected == nil {
		sb.WriteString("\nSelection: automatic\n")
	}
	return sb.String()
}

// Program wraps a running picker so engine listeners can feed it.
type Program struct {
	*tea.Program
}

// NewProgram creates the full-screen picker.
func NewProgram(sel Selector) *Program {
	return &Program{tea.NewProgram(NewPickerModel(sel), tea.WithAltScreen())}
}

// Publish forwards a snapshot to the program. It blocks until the program
// is running and returns immediately once it has exited.
func (p *Program) Publish(s audio.Snapshot) {
	p.Send(SnapshotMsg(s))
}
