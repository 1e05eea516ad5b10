// Package ui renders the NeuroSurf shell in the terminal: a tab strip over a
// browser pane placeholder, the agent thought stream, terminal and file
// panels, and a state-colored status bar. All displayed data comes from the
// shared store; the UI owns no domain state.
package ui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/neurosurf/neurosurf/internal/dispatch"
	"github.com/neurosurf/neurosurf/internal/settings"
	"github.com/neurosurf/neurosurf/internal/state"
)

// StoreChangedMsg is sent into the program whenever the shared store mutates.
type StoreChangedMsg struct{}

type focusArea int

const (
	focusInput focusArea = iota
	focusThoughts
	focusTerminal
	focusFiles
)

// Model is the bubbletea model for the shell.
type Model struct {
	store      *state.Store
	dispatcher *dispatch.Dispatcher
	styles     *Styles

	input    textinput.Model
	thoughts viewport.Model
	terminal viewport.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	settings     settings.Settings
	settingsPath string

	width  int
	height int
	focus  focusArea

	// crashed holds the recovered panic message while the diagnostic screen
	// is up. Empty means the shell is healthy.
	crashed string
}

// New builds the shell model.
func New(store *state.Store, d *dispatch.Dispatcher, cfg settings.Settings, cfgPath string) *Model {
	input := textinput.New()
	input.Placeholder = "speak to the agent..."
	input.Prompt = "> "
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		slog.Debug("glamour renderer unavailable, using plain text", "error", err)
	}

	return &Model{
		store:        store,
		dispatcher:   d,
		styles:       NewStyles(),
		input:        input,
		thoughts:     viewport.New(0, 0),
		terminal:     viewport.New(0, 0),
		spin:         sp,
		renderer:     renderer,
		settings:     cfg,
		settingsPath: cfgPath,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spin.Tick
}

// Update implements tea.Model. A panic while handling a message is caught
// and shown as a diagnostic screen instead of tearing down the terminal.
func (m *Model) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ui update panicked", "panic", fmt.Sprint(r))
			m.crashed = fmt.Sprint(r)
			model, cmd = m, nil
		}
	}()

	if m.crashed != "" {
		if key, ok := msg.(tea.KeyMsg); ok {
			if key.String() == "ctrl+c" {
				return m, tea.Quit
			}
			// Any other key reloads the shell from the store.
			m.crashed = ""
			m.refreshThoughts()
			m.refreshTerminal()
		}
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshThoughts()
		m.refreshTerminal()
		return m, nil

	case StoreChangedMsg:
		m.refreshThoughts()
		m.refreshTerminal()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.persistLayout()
		return m, tea.Quit

	case "enter":
		if m.focus == focusInput {
			m.submit()
			return m, nil
		}

	case "tab":
		m.activateNextTab()
		return m, nil

	case "ctrl+t":
		m.store.AddTab(m.settings.FallbackURL, "")
		return m, nil

	case "ctrl+w":
		active := m.store.ActiveTab()
		m.store.CloseTab(active.ID)
		return m, nil

	case "ctrl+z":
		m.settings.ZenMode = !m.settings.ZenMode
		m.store.SetZenMode(m.settings.ZenMode)
		return m, nil

	case "ctrl+v":
		if m.settings.VoiceEnabled {
			m.toggleVoice()
		}
		return m, nil

	case "ctrl+f":
		m.settings.Layout.ShowFiles = !m.settings.Layout.ShowFiles
		m.layout()
		return m, nil

	case "ctrl+up", "ctrl+down", "ctrl+left", "ctrl+right":
		m.cycleFocus(msg.String())
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusInput:
		m.input, cmd = m.input.Update(msg)
	case focusThoughts:
		m.thoughts, cmd = m.thoughts.Update(msg)
	case focusTerminal:
		m.terminal, cmd = m.terminal.Update(msg)
	}
	return m, cmd
}

// submit sends the typed command. A leading "!" runs it as a raw shell
// command, a leading "/" addresses the file panel.
func (m *Model) submit() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	m.input.Reset()

	switch {
	case strings.HasPrefix(text, "!"):
		m.dispatcher.SendTerminalCommand(strings.TrimSpace(text[1:]))
	case strings.HasPrefix(text, "/ls"):
		m.dispatcher.SendFSList(strings.TrimSpace(strings.TrimPrefix(text, "/ls")))
	case strings.HasPrefix(text, "/cat "):
		m.dispatcher.SendFSRead(strings.TrimSpace(strings.TrimPrefix(text, "/cat ")))
	default:
		thread := m.store.ActiveThread()
		if !m.dispatcher.SendCommand(text, thread, false) {
			m.store.AppendThought(state.Thought{
				Text: "Not connected; command dropped",
				Type: state.ThoughtError,
			})
		}
	}
}

func (m *Model) toggleVoice() {
	if m.store.VoiceOn() {
		m.dispatcher.SendVoiceStop()
		m.store.SetVoice(false)
		return
	}
	if m.dispatcher.SendVoiceStart() {
		m.store.SetVoice(true)
	}
}

func (m *Model) cycleFocus(key string) {
	switch key {
	case "ctrl+up":
		m.focus = focusThoughts
	case "ctrl+down":
		m.focus = focusInput
		m.input.Focus()
	case "ctrl+left":
		m.focus = focusTerminal
	case "ctrl+right":
		m.focus = focusFiles
	}
	if m.focus != focusInput {
		m.input.Blur()
	}
}

// persistLayout saves the current panel sizing back to the settings file.
func (m *Model) persistLayout() {
	if m.settingsPath == "" {
		return
	}
	if err := settings.Save(m.settingsPath, m.settings); err != nil {
		slog.Warn("failed to persist settings", "error", err)
	}
}

// refreshThoughts re-renders the active thread's thought log.
func (m *Model) refreshThoughts() {
	atBottom := m.thoughts.AtBottom()
	m.thoughts.SetContent(m.renderThoughts())
	if atBottom {
		m.thoughts.GotoBottom()
	}
}

func (m *Model) refreshTerminal() {
	lines := m.store.TerminalOutput()
	m.terminal.SetContent(strings.Join(lines, "\n"))
	m.terminal.GotoBottom()
}

// activateNextTab cycles tab activity in display order.
func (m *Model) activateNextTab() {
	tabs := m.store.Tabs()
	for i, t := range tabs {
		if t.Active {
			m.store.ActivateTab(tabs[(i+1)%len(tabs)].ID)
			return
		}
	}
}

func (m *Model) renderThoughts() string {
	thread := m.store.ActiveThread()
	log := m.store.Thoughts(thread)
	var b strings.Builder
	for _, th := range log {
		b.WriteString(m.renderThought(th))
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Model) renderThought(th state.Thought) string {
	switch th.Type {
	case state.ThoughtUser:
		return m.styles.ThoughtUser.Render("you ") + th.Text
	case state.ThoughtError:
		return m.styles.ThoughtErr.Render("err ") + th.Text
	case state.ThoughtAction:
		return m.styles.ThoughtAct.Render("act ") + th.Text
	case state.ThoughtVoice:
		return m.styles.ThoughtSys.Render("mic ") + th.Text
	default:
		return m.styles.ThoughtSys.Render("sys ") + m.renderMarkdown(th.Text)
	}
}

// renderMarkdown pretty-prints agent prose; single-line text stays plain to
// avoid glamour's block spacing.
func (m *Model) renderMarkdown(text string) string {
	if m.renderer == nil || !strings.Contains(text, "\n") {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// layout recomputes panel dimensions from the window size and settings.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	chatWidth := m.settings.Layout.ChatWidth
	if chatWidth <= 0 || chatWidth > m.width-20 {
		chatWidth = m.width / 3
	}
	termHeight := m.settings.Layout.TerminalHeight
	if termHeight <= 0 || termHeight > m.height/2 {
		termHeight = m.height / 4
	}

	// 1 tab strip + 1 status bar + 3 input block rows.
	bodyHeight := m.height - 5
	if bodyHeight < 4 {
		bodyHeight = 4
	}

	m.thoughts.Width = chatWidth - 2
	m.thoughts.Height = bodyHeight - 2
	m.terminal.Width = m.width - chatWidth - 4
	m.terminal.Height = termHeight
	m.input.Width = chatWidth - 6

	m.settings.Layout.ChatWidth = chatWidth
	m.settings.Layout.TerminalHeight = termHeight
}

// NewProgram wraps the model in a bubbletea program. The store's change
// handler must be wired to program.Send(StoreChangedMsg{}) by the caller.
func NewProgram(m *Model) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

// Run drives the program to completion. A panic escaping the UI is converted
// into an error after bubbletea has restored the terminal, so a crash reads
// as a diagnostic message instead of a corrupted screen.
func Run(p *tea.Program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ui crashed", "panic", fmt.Sprint(r))
			err = fmt.Errorf("ui crashed: %v", r)
		}
	}()
	_, err = p.Run()
	return err
}
