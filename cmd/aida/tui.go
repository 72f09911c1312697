package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/aida/core/session"
	"github.com/muesli/reflow/wordwrap"
)

const maxTranscriptLines = 200

type statusMsg session.Status

type runDoneMsg struct{ err error }

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stateStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	interimStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	aidaStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type transcriptLine struct {
	speaker string
	text    string
}

type model struct {
	userID    string
	sessionID string
	state     session.State
	interim   string
	lastErr   error
	lines     []transcriptLine
	spinner   spinner.Model
	width     int
	height    int
}

func newModel(userID string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return model{userID: userID, state: session.StateIdle, spinner: s}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			m.lines = nil
			m.lastErr = nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case statusMsg:
		m.apply(session.Status(msg))
	case runDoneMsg:
		m.lastErr = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) apply(status session.Status) {
	m.state = status.State
	if status.SessionID != "" {
		m.sessionID = status.SessionID
	}

	switch status.State {
	case session.StateListening:
		m.interim = status.Interim
	case session.StateThinking:
		m.interim = ""
		m.append("You", status.Utterance)
	case session.StateSpeaking:
		m.append("Aida", status.Reply)
	case session.StateError:
		m.lastErr = status.Err
	}
}

func (m *model) append(speaker, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	m.lines = append(m.lines, transcriptLine{speaker: speaker, text: text})
	if len(m.lines) > maxTranscriptLines {
		m.lines = m.lines[len(m.lines)-maxTranscriptLines:]
	}
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	wrap := max(m.width-8, 20)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Aida"))
	if m.sessionID != "" {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  session %s  user %s", shortID(m.sessionID), m.userID)))
	}
	b.WriteString("\n\n")

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(stateStyle.Render(stateLabel(m.state)))
	b.WriteString("\n")
	if m.interim != "" {
		b.WriteString(interimStyle.Render(wordwrap.String(m.interim, wrap)))
		b.WriteString("\n")
	}
	if m.lastErr != nil {
		b.WriteString(errorStyle.Render(wordwrap.String("Error: "+m.lastErr.Error(), wrap)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, line := range m.visibleLines() {
		style := aidaStyle
		if line.speaker == "You" {
			style = userStyle
		}
		b.WriteString(style.Render(line.speaker + ":"))
		b.WriteString(" ")
		b.WriteString(wordwrap.String(line.text, wrap))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q: quit  c: clear transcript"))
	return b.String()
}

// visibleLines keeps the newest transcript lines that fit on screen.
func (m model) visibleLines() []transcriptLine {
	room := m.height - 8
	if room <= 0 || len(m.lines) <= room {
		return m.lines
	}
	return m.lines[len(m.lines)-room:]
}

func stateLabel(state session.State) string {
	switch state {
	case session.StateIdle:
		return "Waiting for the wake word"
	case session.StateConnecting:
		return "Connecting..."
	case session.StateListening:
		return "Listening"
	case session.StateThinking:
		return "Thinking"
	case session.StateSpeaking:
		return "Speaking"
	case session.StateError:
		return "Recovering"
	case session.StateStopped:
		return "Stopped"
	}
	return string(state)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
