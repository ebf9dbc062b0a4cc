// Package tui implements ccbox's interactive terminal dashboard: a
// project list that drills into a session list, which drills into a
// read-only timeline viewer, all driven off the same Indexer the CLI
// surface (internal/cliapp) uses and kept live by the Directory Watcher.
package tui

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diskd-ai/ccbox/internal/ccmodel"
	"github.com/diskd-ai/ccbox/internal/index"
	"github.com/diskd-ai/ccbox/internal/overrides"
	"github.com/diskd-ai/ccbox/internal/scan"
	"github.com/diskd-ai/ccbox/internal/timeline"
	"github.com/diskd-ai/ccbox/internal/watch"
)

// pane identifies which of the three drill-down levels is focused.
type pane int

const (
	paneProjects pane = iota
	paneSessions
	paneTimeline
)

// Model is the root Bubble Tea model for the ccbox dashboard.
type Model struct {
	idx     *index.Indexer
	watcher *watch.Watcher
	events  <-chan watch.Event

	width, height int
	pane          pane

	projects   []ccmodel.ProjectSummary
	projectCur int

	sessions   []ccmodel.SessionSummary
	sessionCur int

	openSession  ccmodel.SessionSummary
	timeline     ccmodel.Timeline
	timelineErr  error
	detail       viewport.Model
	detailHash   uint64
	ready        bool

	statusMsg    string
	statusExpiry time.Time
}

// refreshMsg carries a new watcher event into Bubble Tea's Update loop.
type refreshMsg struct{ ev watch.Event }

// New constructs the dashboard model. The watcher is optional (a nil
// *watch.Watcher disables live refresh and the TUI falls back to manual
// 'r' rescans).
func New(idx *index.Indexer, w *watch.Watcher) Model {
	vp := viewport.New(0, 0)
	m := Model{
		idx:      idx,
		watcher:  w,
		pane:     paneProjects,
		detail:   vp,
		projects: idx.Projects(index.Filter{}),
	}
	if w != nil {
		m.events = w.Start()
	}
	return m
}

// NewDefault wires a Model against the default scan sources and override
// store, starting a Directory Watcher over every existing engine root.
func NewDefault() (Model, error) {
	sources := scan.Sources()
	idx, err := index.New(sources, overrides.DefaultPath())
	if err != nil {
		return Model{}, err
	}

	var roots []string
	var opencodePath string
	for _, src := range sources {
		path, exists := src.Root()
		if !exists {
			continue
		}
		if src.Engine() == ccmodel.EngineOpenCode {
			opencodePath = path
			continue
		}
		roots = append(roots, path)
	}

	w, err := watch.New(roots, opencodePath, 250*time.Millisecond, 2*time.Second)
	if err != nil {
		return New(idx, nil), nil // live refresh is a convenience, not a hard requirement
	}
	return New(idx, w), nil
}

func (m Model) Init() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return waitForRefresh(m.events)
}

func waitForRefresh(events <-chan watch.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return refreshMsg{ev: ev}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.detail.Width = msg.Width
		m.detail.Height = detailHeight(msg.Height)
		m.ready = true
		return m, nil

	case refreshMsg:
		m.refresh()
		if msg.ev.Kind == watch.EventSessionChanged && m.pane == paneTimeline {
			m.reloadTimeline()
		}
		var cmd tea.Cmd
		if m.events != nil {
			cmd = waitForRefresh(m.events)
		}
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func detailHeight(total int) int {
	h := total - 4
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) refresh() {
	if err := m.idx.Refresh(); err != nil {
		m.setStatus(fmt.Sprintf("refresh failed: %v", err))
		return
	}
	m.projects = m.idx.Projects(index.Filter{})
	if m.pane == paneSessions && m.projectCur < len(m.projects) {
		m.sessions = m.projects[m.projectCur].Sessions
	}
}

func (m *Model) setStatus(msg string) {
	m.statusMsg = msg
	m.statusExpiry = time.Now().Add(4 * time.Second)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.pane == paneProjects {
			return m, tea.Quit
		}
		return m.back(), nil
	case "esc":
		return m.back(), nil
	case "r":
		m.refresh()
		return m, nil
	case "up", "k":
		return m.moveCursor(-1), nil
	case "down", "j":
		return m.moveCursor(1), nil
	case "enter":
		return m.drillIn()
	}
	if m.pane == paneTimeline {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) back() Model {
	switch m.pane {
	case paneSessions:
		m.pane = paneProjects
	case paneTimeline:
		if m.watcher != nil {
			m.watcher.Focus("", "", "")
		}
		m.pane = paneSessions
	}
	return m
}

func (m Model) moveCursor(delta int) Model {
	switch m.pane {
	case paneProjects:
		m.projectCur = clamp(m.projectCur+delta, 0, len(m.projects)-1)
	case paneSessions:
		m.sessionCur = clamp(m.sessionCur+delta, 0, len(m.sessions)-1)
	}
	return m
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (m Model) drillIn() (tea.Model, tea.Cmd) {
	switch m.pane {
	case paneProjects:
		if m.projectCur >= len(m.projects) {
			return m, nil
		}
		m.sessions = m.projects[m.projectCur].Sessions
		m.sessionCur = 0
		m.pane = paneSessions
		return m, nil

	case paneSessions:
		if m.sessionCur >= len(m.sessions) {
			return m, nil
		}
		s := m.sessions[m.sessionCur]
		m.openSession = s
		if m.watcher != nil {
			m.watcher.Focus(s.ID, s.Engine, s.LogPath)
		}
		m.reloadTimeline()
		m.pane = paneTimeline
		return m, nil
	}
	return m, nil
}

// reloadTimeline re-assembles the open session's Timeline; called both on
// first drill-in and whenever the watcher reports the focused log changed.
// Re-assembly happens on every call regardless, but the viewport's
// content (and with it the user's scroll position) is only replaced when
// the rendered text actually changed, identified by an xxhash digest
// rather than a full string comparison.
func (m *Model) reloadTimeline() {
	tl, err := timeline.ReadSession(m.openSession.ID, m.openSession.Engine, m.openSession.LogPath)
	m.timeline = tl
	m.timelineErr = err
	if err != nil {
		return
	}
	rendered := renderTimeline(tl)
	if h := xxhash.Sum64String(rendered); h != m.detailHash {
		m.detailHash = h
		m.detail.SetContent(rendered)
	}
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(lipgloss.Color("237")).Foreground(lipgloss.Color("255"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	footerStyle   = dimStyle.Padding(0, 1)
)

func (m Model) View() string {
	if !m.ready {
		return "starting ccbox...\n"
	}

	var body string
	switch m.pane {
	case paneProjects:
		body = m.viewProjects()
	case paneSessions:
		body = m.viewSessions()
	case paneTimeline:
		if m.timelineErr != nil {
			body = dimStyle.Render(fmt.Sprintf("error reading session: %v", m.timelineErr))
		} else {
			body = m.detail.View()
		}
	}

	header := headerStyle.Width(m.width).Render(m.headerText())
	footer := footerStyle.Width(m.width).Render(m.footerText())
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) headerText() string {
	switch m.pane {
	case paneProjects:
		return fmt.Sprintf("ccbox — %d project(s)", len(m.projects))
	case paneSessions:
		if m.projectCur < len(m.projects) {
			return "ccbox — " + m.projects[m.projectCur].Name
		}
	case paneTimeline:
		return fmt.Sprintf("ccbox — %s (%s)", m.timeline.SessionID, m.timeline.Engine)
	}
	return "ccbox"
}

func (m Model) footerText() string {
	if m.statusMsg != "" && time.Now().Before(m.statusExpiry) {
		return m.statusMsg
	}
	switch m.pane {
	case paneProjects:
		return "enter: open  r: rescan  q: quit"
	case paneSessions:
		return "enter: open  esc: back  r: rescan"
	default:
		return "esc: back  ↑/↓: scroll"
	}
}

func (m Model) viewProjects() string {
	var lines []string
	for i, p := range m.projects {
		marker := "  "
		line := fmt.Sprintf("%s%-30s %3d session(s)  %s", marker, p.Name, p.SessionCount, p.LastModified.Format("2006-01-02 15:04"))
		if p.Online {
			line += "  ●"
		}
		if i == m.projectCur {
			line = selectedStyle.Render("> " + line[2:])
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return dimStyle.Render("no projects found")
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) viewSessions() string {
	var lines []string
	for i, s := range m.sessions {
		line := fmt.Sprintf("  %s  %-8s  %s", s.StartedAt.Format("2006-01-02 15:04"), s.Engine, s.Title)
		if i == m.sessionCur {
			line = selectedStyle.Render("> " + line[2:])
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return dimStyle.Render("no sessions in this project")
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderTimeline(tl ccmodel.Timeline) string {
	var out string
	for _, item := range tl.Items {
		out += fmt.Sprintf("%8dms  %-12s %s\n", item.OffsetMS, item.KindLabel, item.Summary)
	}
	if tl.Truncated {
		out += "\n[truncated stream]\n"
	}
	if tl.Warnings > 0 {
		out += fmt.Sprintf("\n[%d warning(s)]\n", tl.Warnings)
	}
	return out
}
