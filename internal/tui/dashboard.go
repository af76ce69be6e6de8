// Package tui renders the supervision dashboard: a program table, a live
// event feed and key-driven start/stop control over a running supervisor.
// The model never mutates program state itself; every operation goes
// through the Controller and results come back as messages.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/runctl/runctl/internal/event"
	"github.com/runctl/runctl/internal/iostreams"
	"github.com/runctl/runctl/internal/program"
	"github.com/runctl/runctl/internal/supervisor"
	"github.com/runctl/runctl/internal/theme"
	"golang.org/x/term"
)

// Controller is the slice of the supervisor the dashboard drives.
type Controller interface {
	List() []supervisor.ProgramStatus
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	StopAll(ctx context.Context) error
}

// Options configures a dashboard session.
type Options struct {
	Controller   Controller
	Manifest     *program.Manifest
	ManifestPath string

	// Events feeds the activity pane. A nil channel leaves the pane empty.
	Events <-chan event.Event

	Palette theme.Palette
	Logger  *slog.Logger

	// WriteClipboard overrides the clipboard writer. Nil selects the system
	// clipboard.
	WriteClipboard func(string) error
}

// messages

type refreshMsg time.Time

type feedMsg event.Event

type actionDoneMsg struct {
	verb string
	id   string
	err  error
}

type shutdownDoneMsg struct {
	err error
}

const (
	refreshInterval = time.Second

	feedCapacity = 64
	feedVisible  = 5
)

type feedEntry struct {
	when time.Time
	tone theme.Token
	text string
}

type model struct {
	ctx          context.Context
	ctrl         Controller
	manifest     *program.Manifest
	manifestPath string
	events       <-chan event.Event
	logger       *slog.Logger
	clip         func(string) error

	keys    keyMap
	help    help.Model
	table   table.Model
	spinner spinner.Model

	palette    theme.Palette
	styles     styles
	themeNames []string
	themeIndex int

	width  int
	height int

	statuses []supervisor.ProgramStatus
	feed     []feedEntry

	status     string
	statusTone theme.Token

	busy         int
	confirmQuit  bool
	shuttingDown bool
	shutdownErr  error
}

// Run drives the dashboard until the user quits or ctx is cancelled.
// External cancellation is a normal shutdown: the caller owns stopping the
// programs in that path.
func Run(ctx context.Context, streams *iostreams.IOStreams, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m := newModel(ctx, opts)
	m.applySize(initialSize(streams.Out))

	prog := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(streams.In),
		tea.WithOutput(streams.Out),
		tea.WithAltScreen(),
	)

	final, err := prog.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || ctx.Err() != nil {
			return nil
		}
		return err
	}

	if fm, ok := final.(*model); ok && fm.shutdownErr != nil {
		return fmt.Errorf("stopping programs: %w", fm.shutdownErr)
	}
	return nil
}

func newModel(ctx context.Context, opts Options) *model {
	pal := opts.Palette
	if pal.Name == "" {
		pal = theme.Current()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	clip := opts.WriteClipboard
	if clip == nil {
		clip = clipboard.WriteAll
	}

	keys := newKeyMap()

	tableKeys := table.DefaultKeyMap()
	tableKeys.LineUp = keys.Up
	tableKeys.LineDown = keys.Down

	tbl := table.New(
		table.WithColumns(programColumns(nil, 0)),
		table.WithFocused(true),
		table.WithStyles(tableStyles(pal)),
		table.WithKeyMap(tableKeys),
	)

	helpModel := help.New()
	helpModel.Styles = helpStyles(pal)

	m := &model{
		ctx:          ctx,
		ctrl:         opts.Controller,
		manifest:     opts.Manifest,
		manifestPath: opts.ManifestPath,
		events:       opts.Events,
		logger:       logger,
		clip:         clip,
		keys:         keys,
		help:         helpModel,
		table:        tbl,
		spinner:      newSpinner(pal),
		palette:      pal,
		styles:       newStyles(pal),
		themeNames:   theme.Available(),
	}
	for i, name := range m.themeNames {
		if name == pal.Name {
			m.themeIndex = i
			break
		}
	}

	m.refreshRows()
	return m
}

func newSpinner(p theme.Palette) spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = p.ForegroundStyle(theme.ColorAccent)
	return s
}

// initialSize sizes the first render; bubbletea delivers the authoritative
// WindowSizeMsg right after startup.
func initialSize(out io.Writer) (int, int) {
	const defaultWidth, defaultHeight = 100, 30

	type fdProvider interface {
		Fd() uintptr
	}
	fp, ok := out.(fdProvider)
	if !ok {
		return defaultWidth, defaultHeight
	}
	if w, h, err := term.GetSize(int(fp.Fd())); err == nil && w > 0 && h > 0 {
		return w, h
	}
	return defaultWidth, defaultHeight
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(refreshTick(), m.waitForEvent())
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// waitForEvent blocks on the sink channel and re-arms itself after every
// delivery.
func (m *model) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return nil
		}
		return feedMsg(evt)
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) { //nolint:ireturn
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.applySize(msg.Width, msg.Height)
		return m, nil

	case refreshMsg:
		m.refreshRows()
		return m, refreshTick()

	case feedMsg:
		m.appendFeed(event.Event(msg))
		m.refreshRows()
		return m, m.waitForEvent()

	case actionDoneMsg:
		if m.busy > 0 {
			m.busy--
		}
		if msg.err != nil {
			m.setStatus(theme.ColorDanger, fmt.Sprintf("%s %s: %v", msg.verb, msg.id, msg.err))
		}
		m.refreshRows()
		return m, nil

	case shutdownDoneMsg:
		m.shutdownErr = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		if m.busy > 0 || m.shuttingDown {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	tbl, cmd := m.table.Update(msg)
	m.table = tbl
	return m, cmd
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.shuttingDown {
		return m, nil
	}

	if m.confirmQuit {
		switch msg.String() {
		case "y", "Y":
			return m, m.beginShutdown()
		case "n", "N", "esc", "q":
			m.confirmQuit = false
			m.setStatus(theme.ColorTextMuted, "")
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.anyActive() {
			m.confirmQuit = true
			return m, nil
		}
		return m, m.beginShutdown()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Start):
		return m, m.startSelected()

	case key.Matches(msg, m.keys.Stop):
		return m, m.stopSelected()

	case key.Matches(msg, m.keys.StartAll):
		return m, m.startAll()

	case key.Matches(msg, m.keys.StopAll):
		return m, m.stopAllRunning()

	case key.Matches(msg, m.keys.Copy):
		m.copySelected()
		return m, nil

	case key.Matches(msg, m.keys.Theme):
		m.cycleTheme()
		return m, nil
	}

	tbl, cmd := m.table.Update(msg)
	m.table = tbl
	return m, cmd
}

func (m *model) selected() (supervisor.ProgramStatus, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.statuses) {
		return supervisor.ProgramStatus{}, false
	}
	return m.statuses[idx], true
}

func (m *model) anyActive() bool {
	for _, st := range m.statuses {
		if !st.Status.AtRest() {
			return true
		}
	}
	return false
}

// dispatch runs one lifecycle operation off the UI goroutine. The spinner
// is armed with the first in-flight operation only; later ones ride the
// ticks already scheduled.
func (m *model) dispatch(verb, id string, op func(context.Context, string) error) tea.Cmd {
	m.busy++
	ctx := m.ctx
	cmds := []tea.Cmd{
		func() tea.Msg {
			return actionDoneMsg{verb: verb, id: id, err: op(ctx, id)}
		},
	}
	if m.busy == 1 {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

func (m *model) startSelected() tea.Cmd {
	st, ok := m.selected()
	if !ok {
		return nil
	}
	if !st.Status.AtRest() {
		m.setStatus(theme.ColorWarning, fmt.Sprintf("%s is already %s", st.ID, st.Status))
		return nil
	}
	return m.dispatch("start", st.ID, m.ctrl.Start)
}

func (m *model) stopSelected() tea.Cmd {
	st, ok := m.selected()
	if !ok {
		return nil
	}
	if st.Status.AtRest() {
		m.setStatus(theme.ColorWarning, fmt.Sprintf("%s is not running", st.ID))
		return nil
	}
	return m.dispatch("stop", st.ID, m.ctrl.Stop)
}

func (m *model) startAll() tea.Cmd {
	var cmds []tea.Cmd
	for _, st := range m.statuses {
		if st.Status.AtRest() {
			cmds = append(cmds, m.dispatch("start", st.ID, m.ctrl.Start))
		}
	}
	if len(cmds) == 0 {
		m.setStatus(theme.ColorTextMuted, "every program is already running")
		return nil
	}
	return tea.Batch(cmds...)
}

func (m *model) stopAllRunning() tea.Cmd {
	var cmds []tea.Cmd
	for _, st := range m.statuses {
		if !st.Status.AtRest() {
			cmds = append(cmds, m.dispatch("stop", st.ID, m.ctrl.Stop))
		}
	}
	if len(cmds) == 0 {
		m.setStatus(theme.ColorTextMuted, "nothing is running")
		return nil
	}
	return tea.Batch(cmds...)
}

// beginShutdown stops everything and quits when the stops settle. Input is
// ignored from here on.
func (m *model) beginShutdown() tea.Cmd {
	m.confirmQuit = false
	m.shuttingDown = true
	ctx := m.ctx
	ctrl := m.ctrl
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			return shutdownDoneMsg{err: ctrl.StopAll(ctx)}
		},
	)
}

func (m *model) copySelected() {
	st, ok := m.selected()
	if !ok || m.manifest == nil {
		return
	}
	spec, ok := m.manifest.Program(st.ID)
	if !ok {
		return
	}
	if err := m.clip(spec.CommandLine()); err != nil {
		m.setStatus(theme.ColorWarning, fmt.Sprintf("clipboard unavailable: %v", err))
		return
	}
	m.setStatus(theme.ColorTextMuted, fmt.Sprintf("copied command for %s", st.ID))
}

func (m *model) cycleTheme() {
	if len(m.themeNames) == 0 {
		return
	}
	m.themeIndex = (m.themeIndex + 1) % len(m.themeNames)
	name := m.themeNames[m.themeIndex]
	p, ok := theme.Get(name)
	if !ok {
		return
	}
	m.applyPalette(p)
	m.setStatus(theme.ColorTextMuted,
		fmt.Sprintf("Theme: %s (set color-theme: %s in config to persist)", p.DisplayName, name))
}

func (m *model) applyPalette(p theme.Palette) {
	m.palette = p
	m.styles = newStyles(p)
	m.table.SetStyles(tableStyles(p))
	m.help.Styles = helpStyles(p)
	m.spinner.Style = p.ForegroundStyle(theme.ColorAccent)
}

func (m *model) setStatus(tone theme.Token, text string) {
	m.statusTone = tone
	m.status = text
}

func (m *model) appendFeed(evt event.Event) {
	when := evt.Time
	if when.IsZero() {
		when = time.Now()
	}
	m.feed = append(m.feed, feedEntry{
		when: when,
		tone: eventTone(evt.Type),
		text: feedText(evt),
	})
	if len(m.feed) > feedCapacity {
		m.feed = m.feed[len(m.feed)-feedCapacity:]
	}
}

func eventTone(t event.Type) theme.Token {
	switch t {
	case event.TypeStarted:
		return theme.ColorSuccess
	case event.TypeStopped:
		return theme.ColorTextSecondary
	case event.TypeCrashed:
		return theme.ColorDanger
	case event.TypeError:
		return theme.ColorWarning
	default:
		return theme.ColorTextSecondary
	}
}

func feedText(evt event.Event) string {
	text := fmt.Sprintf("%-7s %s", string(evt.Type), evt.ProgramID)
	if evt.PID > 0 {
		text += " pid=" + strconv.Itoa(evt.PID)
	}
	if evt.ExitCode != nil {
		text += " exit=" + strconv.Itoa(*evt.ExitCode)
	}
	if evt.Message != "" {
		text += " " + evt.Message
	}
	return text
}

// refreshRows re-snapshots the supervisor and rebuilds the table without
// disturbing the cursor.
func (m *model) refreshRows() {
	if m.ctrl == nil {
		return
	}
	m.statuses = m.ctrl.List()
	m.table.SetRows(programRows(m.statuses, time.Now()))
}

func programRows(statuses []supervisor.ProgramStatus, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, table.Row{
			st.ID,
			st.Name,
			statusLabel(st),
			pidLabel(st),
			uptimeLabel(st, now),
		})
	}
	return rows
}

func statusLabel(st supervisor.ProgramStatus) string {
	if st.Status == supervisor.StatusCrashed && st.ExitCode != nil {
		return fmt.Sprintf("crashed (%d)", *st.ExitCode)
	}
	return st.Status.String()
}

func pidLabel(st supervisor.ProgramStatus) string {
	if st.PID <= 0 {
		return "-"
	}
	return strconv.Itoa(st.PID)
}

func uptimeLabel(st supervisor.ProgramStatus, now time.Time) string {
	if st.StartedAt.IsZero() {
		return "-"
	}
	switch st.Status {
	case supervisor.StatusRunning, supervisor.StatusStopping:
		return formatUptime(now.Sub(st.StartedAt))
	default:
		return "-"
	}
}

func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int(d.Round(time.Second).Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm%02ds", minutes, seconds%60)
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}
