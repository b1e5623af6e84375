// Package tui is the terminal front end. It renders the transcript and
// forwards player input; every game-state mutation happens inside the
// orchestrator, and the model repaints from snapshots.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"aidm/internal/domain"
	"aidm/internal/game"
)

// eventMsg wraps an orchestrator event for the update loop.
type eventMsg struct {
	ev game.Event
}

// opDoneMsg reports that an orchestrator operation returned.
type opDoneMsg struct{}

// Model is the bubbletea model for one play session.
type Model struct {
	orch   *game.Orchestrator
	events <-chan game.Event

	session  domain.Session
	messages []domain.Message

	input      textinput.Model
	transcript viewport.Model
	spinner    spinner.Model
	theme      theme

	width  int
	height int
	sized  bool
}

// New creates the model. Init starts the session.
func New(orch *game.Orchestrator) Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.Placeholder = "Speak, adventurer..."
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7"))

	return Model{
		orch:       orch,
		events:     orch.Events(),
		input:      input,
		transcript: viewport.New(0, 0),
		spinner:    sp,
		theme:      newTheme(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		startCmd(m.orch),
		waitEvent(m.events),
	)
}

func startCmd(orch *game.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		orch.StartSession(context.Background())
		return opDoneMsg{}
	}
}

func submitCmd(orch *game.Orchestrator, text string) tea.Cmd {
	return func() tea.Msg {
		orch.Submit(context.Background(), text)
		return opDoneMsg{}
	}
}

func resetCmd(orch *game.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		orch.Reset()
		orch.StartSession(context.Background())
		return opDoneMsg{}
	}
}

// waitEvent blocks on the next orchestrator event and re-arms itself from
// Update, one event per command.
func waitEvent(ch <-chan game.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg{ev: <-ch}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case eventMsg:
		m.refresh()
		cmds = append(cmds, waitEvent(m.events))

	case opDoneMsg:
		m.refresh()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.sized = true
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+n":
			m.input.Reset()
			return m, resetCmd(m.orch)
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.session.Busy || m.session.Phase.Terminal() {
				return m, nil
			}
			m.input.Reset()
			return m, submitCmd(m.orch, text)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			return m, cmd
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	return m, tea.Batch(cmds...)
}

// refresh repaints the transcript from an orchestrator snapshot.
func (m *Model) refresh() {
	m.session, m.messages = m.orch.Snapshot()
	atBottom := m.transcript.AtBottom()
	m.transcript.SetContent(m.renderTranscript())
	if atBottom {
		m.transcript.GotoBottom()
	}
}

func (m *Model) resize() {
	m.input.Width = max(m.width-8, 20)
	// Header, status, monologue, state and input rows surround the
	// transcript viewport.
	m.transcript.Width = m.width
	m.transcript.Height = max(m.height-7, 3)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.sized {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.transcript.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.theme.inputFrame.Width(max(m.width-2, 20)).Render(m.input.View()))
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.theme.header.Render("AI DUNGEON MASTER")
	phase := m.theme.phase.Render(m.session.Phase.String())
	id := ""
	if m.session.ID != "" {
		id = m.theme.sessionID.Render(" session " + shortID(m.session.ID))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", phase, id)
}

func (m Model) renderStatus() string {
	var parts []string

	switch {
	case m.session.LastErr != "":
		parts = append(parts, m.theme.statusErr.Render("✗ "+m.session.LastErr))
	case m.session.Busy:
		parts = append(parts, m.theme.statusOK.Render(m.spinner.View()+" the dungeon master is thinking..."))
	case m.session.Phase.Terminal():
		parts = append(parts, m.theme.statusOK.Render("game over · ctrl+n for a new adventure"))
	default:
		parts = append(parts, m.theme.statusOK.Render("enter to send · ctrl+n new game · ctrl+c quit"))
	}

	if line := m.stateSummary(); line != "" {
		parts = append(parts, m.theme.stateLine.Render(line))
	}
	if m.session.Monologue != "" {
		parts = append(parts, m.theme.monologue.Render("(dm) "+m.session.Monologue))
	}
	return strings.Join(parts, "\n")
}

// stateSummary compresses creation progress into one line.
func (m Model) stateSummary() string {
	switch m.session.Phase {
	case domain.PhaseWorldCreation:
		return fmt.Sprintf("world: %s", attributeSummary(m.session.World.Known(), 5))
	case domain.PhaseCharacterCreation:
		return fmt.Sprintf("character: %s", attributeSummary(m.session.Character.Known(), 5))
	default:
		return ""
	}
}

func (m Model) renderTranscript() string {
	width := max(m.transcript.Width-2, 20)
	body := m.theme.bodyText.Width(width)

	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Sender {
		case domain.SenderPlayer:
			b.WriteString(m.theme.playerLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(body.Render(msg.Text))
		case domain.SenderDungeonMaster:
			b.WriteString(m.theme.dmLabel.Render("Dungeon Master"))
			b.WriteString("\n")
			b.WriteString(body.Render(msg.Text))
		default:
			b.WriteString(m.theme.systemText.Width(width).Render(msg.Text))
		}
	}
	return b.String()
}

// attributeSummary renders e.g. "2/5 · Name, Geography".
func attributeSummary(attrs []domain.Attribute, total int) string {
	if len(attrs) == 0 {
		return fmt.Sprintf("0/%d", total)
	}
	labels := make([]string, len(attrs))
	for i, a := range attrs {
		labels[i] = a.Label
	}
	return fmt.Sprintf("%d/%d · %s", len(attrs), total, strings.Join(labels, ", "))
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
