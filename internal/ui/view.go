package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/neurosurf/neurosurf/internal/state"
)

// View implements tea.Model. Rendering shares the crash boundary with Update:
// a panic lands on the diagnostic screen rather than corrupting the terminal.
func (m *Model) View() (out string) {
	defer func() {
		if r := recover(); r != nil {
			m.crashed = fmt.Sprint(r)
			out = m.crashedView()
		}
	}()

	if m.crashed != "" {
		return m.crashedView()
	}
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}
	if m.store.ZenMode() {
		return m.zenView()
	}

	halo := StateColor(string(m.store.AgentStateNow()))

	var b strings.Builder
	b.WriteString(m.tabStrip())
	b.WriteByte('\n')
	b.WriteString(m.body(halo))
	b.WriteByte('\n')
	b.WriteString(m.inputLine())
	b.WriteByte('\n')
	b.WriteString(m.statusBar(halo))

	out = b.String()
	if m.store.Glitching() {
		out = m.glitched(out)
	}
	return out
}

// crashedView is the diagnostic screen shown after a recovered panic.
func (m *Model) crashedView() string {
	body := m.styles.ThoughtErr.Render("neural interface fault") + "\n\n" +
		m.crashed + "\n\n" +
		m.styles.Muted.Render("press any key to reload, ctrl+c to quit")
	if m.width == 0 || m.height == 0 {
		return body
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

// zenView strips the shell down to the page URL and the conversation.
func (m *Model) zenView() string {
	url := m.styles.Muted.Render(m.store.CurrentURL())
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.PlaceHorizontal(m.width, lipgloss.Center, url),
		m.thoughts.View(),
		m.inputLine(),
	)
}

// tabStrip renders the open tabs plus the active tab's URL.
func (m *Model) tabStrip() string {
	var cells []string
	for _, t := range m.store.Tabs() {
		label := t.Title
		if label == "" {
			label = t.URL
		}
		if len(label) > 24 {
			label = label[:21] + "..."
		}
		if t.Active {
			cells = append(cells, m.styles.ActiveTab.Render(label))
		} else {
			cells = append(cells, m.styles.InactiveTab.Render(label))
		}
	}
	strip := lipgloss.JoinHorizontal(lipgloss.Top, cells...)
	url := m.styles.Muted.Render(" " + m.store.CurrentURL())
	return lipgloss.JoinHorizontal(lipgloss.Top, strip, url)
}

// body lays out the thought stream beside the terminal and file panels. The
// panel holding focus keeps the accent border; the others carry the halo.
func (m *Model) body(halo lipgloss.Color) string {
	left := m.panel(m.thoughts.View(), halo, m.focus == focusThoughts)

	termPanel := m.panel(m.terminal.View(), halo, m.focus == focusTerminal)
	right := termPanel
	if m.settings.Layout.ShowFiles {
		filesHeight := m.thoughts.Height - m.terminal.Height - 2
		files := m.panel(m.filesContent(filesHeight), halo, m.focus == focusFiles)
		right = lipgloss.JoinVertical(lipgloss.Left, files, termPanel)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m *Model) panel(content string, halo lipgloss.Color, focused bool) string {
	if focused {
		return m.styles.FocusedPanel.Render(content)
	}
	return m.styles.Panel.BorderForeground(halo).Render(content)
}

// filesContent renders the latest directory listing, or the file being viewed
// when one is open.
func (m *Model) filesContent(maxLines int) string {
	if maxLines < 1 {
		maxLines = 1
	}
	if fc := m.store.FileContentNow(); fc.Path != "" {
		lines := strings.Split(fc.Content, "\n")
		if len(lines) > maxLines-1 {
			lines = lines[:maxLines-1]
		}
		return m.styles.Muted.Render(fc.Path) + "\n" + strings.Join(lines, "\n")
	}

	listing := m.store.FileListingNow()
	var b strings.Builder
	b.WriteString(m.styles.Muted.Render(listing.Path))
	n := 1
	for _, e := range listing.Entries {
		if n >= maxLines {
			break
		}
		b.WriteByte('\n')
		if e.IsDir {
			b.WriteString(e.Name + "/")
		} else {
			b.WriteString(fmt.Sprintf("%s  %d", e.Name, e.Size))
		}
		n++
	}
	return b.String()
}

func (m *Model) inputLine() string {
	return m.styles.InputPrompt.Render("neuro") + " " + m.input.View()
}

// statusBar summarizes the session: link, agent state, gesture, voice.
func (m *Model) statusBar(halo lipgloss.Color) string {
	link := "link down"
	if m.store.Connected() {
		link = "link up"
	}

	st := string(m.store.AgentStateNow())
	if st == string(state.StatePlanning) || st == string(state.StateActing) {
		st = m.spin.View() + st
	}
	stateCell := m.styles.StatusState.Foreground(halo).Render(st)

	parts := []string{link, stateCell}
	if g := m.store.LastGesture(); g.Type != "" && g.Type != "none" {
		parts = append(parts, "gesture:"+g.Type)
	}
	if m.store.VoiceOn() {
		parts = append(parts, "voice on")
	}
	bar := m.styles.StatusBar.Render(strings.Join(parts, "  "))
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, bar)
}

// glitched corrupts a slice of rendered rows, the visual for an incoming
// reality-glitch transition.
func (m *Model) glitched(out string) string {
	rows := strings.Split(out, "\n")
	for i := range rows {
		if i%4 == 0 {
			rows[i] = m.styles.Glitch.Render(strings.Repeat("▒", lipgloss.Width(rows[i])))
		}
	}
	return strings.Join(rows, "\n")
}
