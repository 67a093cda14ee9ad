// Package watch is a terminal observer for a running wa-service: it follows
// the realtime channel, shows pairing QR codes and can send test messages.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zulhijaya18/wa-service-api/internal/client"
	"github.com/zulhijaya18/wa-service-api/internal/session"
)

const maxLogLines = 200

// Sender posts messages through the HTTP API.
type Sender interface {
	Send(ctx context.Context, number, message string) (*client.SendResponse, error)
}

type logLine struct {
	at   time.Time
	text string
	err  bool
}

// sendResultMsg reports the outcome of a compose submission.
type sendResultMsg struct {
	resp *client.SendResponse
	err  error
}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	sender Sender
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	connected bool
	known     bool
	state     session.State
	qr        string
	lines     []logLine

	composing bool
	sending   bool
	inputs    [2]textinput.Model
	focus     int

	now func() time.Time
}

// New creates the root model.
func New(ws *client.WSClient, sender Sender) Model {
	ctx, cancel := context.WithCancel(context.Background())

	number := textinput.New()
	number.Placeholder = "08123456789"
	number.Prompt = "Number  > "
	number.CharLimit = 32

	message := textinput.New()
	message.Placeholder = "Hello from wa-watch"
	message.Prompt = "Message > "
	message.CharLimit = 4096

	return Model{
		ws:     ws,
		sender: sender,
		ctx:    ctx,
		cancel: cancel,
		keys:   DefaultKeyMap(),
		inputs: [2]textinput.Model{number, message},
		now:    time.Now,
	}
}

// Init starts the WebSocket connection.
func (m Model) Init() tea.Cmd {
	return m.ws.Listen(m.ctx)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sendResultMsg:
		m.sending = false
		switch {
		case msg.err != nil && msg.resp != nil && msg.resp.Message != "":
			m.appendLog(strings.TrimSpace(msg.resp.Message+" "+msg.resp.Error), true)
		case msg.err != nil:
			m.appendLog("send failed: "+msg.err.Error(), true)
		case msg.resp.Data != nil:
			m.appendLog(fmt.Sprintf("sent %s to %s", msg.resp.Data.MessageID, msg.resp.Data.FormattedNumber), false)
		default:
			m.appendLog(msg.resp.Message, false)
		}
		return m, nil

	case client.WSConnectedMsg:
		m.connected = true
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.connected = false
		m.known = false
		m.qr = ""
		if msg.Err != nil {
			m.appendLog("connection lost: "+msg.Err.Error(), true)
		}
		return m, m.ws.Listen(m.ctx)

	case client.WSStatusMsg:
		m.known = true
		m.state = msg.Payload.State
		if m.state != session.AwaitingPairing {
			m.qr = ""
		}
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSTextMsg:
		m.appendLog(msg.Text, false)
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSQRMsg:
		art, err := RenderDataURL(msg.DataURL)
		if err != nil {
			m.appendLog("unreadable qr code: "+err.Error(), true)
		} else {
			m.qr = art
		}
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSAuthenticatedMsg:
		m.qr = ""
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSReadyMsg:
		m.qr = ""
		return m, m.ws.ReadLoop(m.ctx)
	}

	if m.composing {
		return m.updateInputs(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.cancel()
		return m, tea.Quit
	}

	if m.composing {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.closeCompose()
			return m, nil
		case key.Matches(msg, m.keys.Next):
			return m, m.setFocus((m.focus + 1) % len(m.inputs))
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		}
		return m.updateInputs(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Compose):
		m.composing = true
		return m, m.setFocus(0)
	case key.Matches(msg, m.keys.Clear):
		m.lines = nil
		return m, nil
	}
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.sending || m.sender == nil {
		return m, nil
	}
	number := strings.TrimSpace(m.inputs[0].Value())
	text := m.inputs[1].Value()
	if number == "" || strings.TrimSpace(text) == "" {
		m.appendLog("number and message are required", true)
		return m, nil
	}

	m.sending = true
	m.closeCompose()
	sender, ctx := m.sender, m.ctx
	return m, func() tea.Msg {
		resp, err := sender.Send(ctx, number, text)
		return sendResultMsg{resp: resp, err: err}
	}
}

func (m *Model) setFocus(i int) tea.Cmd {
	m.focus = i
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == i {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return cmd
}

func (m *Model) closeCompose() {
	m.composing = false
	for j := range m.inputs {
		m.inputs[j].Blur()
		m.inputs[j].SetValue("")
	}
	m.focus = 0
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) appendLog(text string, isErr bool) {
	m.lines = append(m.lines, logLine{at: m.now(), text: text, err: isErr})
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

// View renders the watcher.
func (m Model) View() string {
	var sections []string
	sections = append(sections, m.header())

	if m.qr != "" {
		sections = append(sections,
			panelStyle.Render(m.qr+dimStyle.Render("Scan with WhatsApp > Linked devices")))
	}
	if m.composing {
		sections = append(sections, panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			m.inputs[0].View(),
			m.inputs[1].View(),
		)))
	}

	used := lipgloss.Height(lipgloss.JoinVertical(lipgloss.Left, sections...)) + 2
	sections = append(sections, m.logView(m.height-used), m.helpView())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) header() string {
	var conn string
	if m.connected {
		conn = lipgloss.NewStyle().Foreground(ColorHealthy).Render("● Connected")
	} else {
		conn = lipgloss.NewStyle().Foreground(ColorDanger).Render("○ Connecting...")
	}

	state := dimStyle.Render("unknown")
	if m.known {
		state = lipgloss.NewStyle().Bold(true).Foreground(StateColor(m.state)).Render(m.state.String())
	}

	sep := lipgloss.NewStyle().Foreground(ColorBorder).Render(" | ")
	content := titleStyle.Render("wa-watch") + sep + conn + sep + "session: " + state
	if m.sending {
		content += sep + dimStyle.Render("sending...")
	}

	width := max(m.width-2, 40)
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(ColorBorder).
		Render(content)
}

func (m Model) logView(rows int) string {
	if rows < 1 {
		rows = 1
	}
	lines := m.lines
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	if len(lines) == 0 {
		return dimStyle.Render("waiting for events...")
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		text := l.text
		if l.err {
			text = errorStyle.Render(text)
		}
		out = append(out, dimStyle.Render(l.at.Format("15:04:05"))+" "+text)
	}
	return strings.Join(out, "\n")
}

func (m Model) helpView() string {
	bindings := []key.Binding{m.keys.Compose, m.keys.Clear, m.keys.Quit}
	if m.composing {
		bindings = []key.Binding{m.keys.Next, m.keys.Submit, m.keys.Escape}
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return dimStyle.Render(strings.Join(parts, " • "))
}
