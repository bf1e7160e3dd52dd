package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rlch/spar/model"
)

// TUI is an interactive view over a suite. It re-reads the suite's
// projections whenever the suite signals a change.
type TUI struct {
	suite   *model.Suite
	out     io.Writer
	in      io.Reader
	autoRun bool
	log     *zap.Logger

	model *tuiModel
}

// TUIOption configures a TUI.
type TUIOption func(*TUI)

// WithOutput sets where the TUI renders. Defaults to stdout.
func WithOutput(w io.Writer) TUIOption {
	return func(t *TUI) {
		t.out = w
	}
}

// WithInput sets where keys are read from. Defaults to stdin.
func WithInput(r io.Reader) TUIOption {
	return func(t *TUI) {
		t.in = r
	}
}

// WithAutoRun starts a run of every unit as soon as the TUI opens.
func WithAutoRun() TUIOption {
	return func(t *TUI) {
		t.autoRun = true
	}
}

// WithTUILogger sets the logger. The TUI owns the terminal, so l should not
// write to it.
func WithTUILogger(l *zap.Logger) TUIOption {
	return func(t *TUI) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTUI creates a TUI over suite.
func NewTUI(suite *model.Suite, opts ...TUIOption) *TUI {
	t := &TUI{suite: suite, log: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Run shows the TUI until the user quits or ctx is done. It returns the
// report of the last run-all started from the TUI, if any finished.
func (t *TUI) Run(ctx context.Context) (*model.RunReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.model = newTUIModel(ctx, t.suite, t.autoRun)

	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	}

	if t.out != nil {
		opts = append(opts, tea.WithOutput(t.out))
	}

	if t.in != nil {
		opts = append(opts, tea.WithInput(t.in))
	}

	p := tea.NewProgram(t.model, opts...)

	pump := model.NewPump(func(sigs []model.Signal) {
		p.Send(signalMsg(sigs))
	})
	unsubscribe := t.suite.Subscribe(pump.Notify)

	pumped := make(chan struct{})

	go func() {
		defer close(pumped)
		pump.Run(ctx)
	}()

	_, err := p.Run()

	unsubscribe()
	cancel()
	<-pumped

	if errors.Is(err, tea.ErrProgramKilled) {
		t.log.Debug("tui stopped by context")

		err = nil
	}

	return t.model.report, err
}

// FinalView renders the last state for printing after the TUI exits.
func (t *TUI) FinalView() string {
	if t.model == nil {
		return ""
	}

	return t.model.FinalView()
}

// -----------------------------------------------------------------------------
// Bubbletea Model
// -----------------------------------------------------------------------------

// row is one line of the tree: a unit header when record is nil.
type row struct {
	unit   *model.Unit
	record *model.Record
}

// tuiModel is the bubbletea model for the suite view.
type tuiModel struct {
	ctx     context.Context
	suite   *model.Suite
	styles  *Styles
	spinner spinner.Model

	width  int
	height int

	rows   []row
	cursor int

	autoRun bool
	message string

	startTime time.Time
	endTime   time.Time
	report    *model.RunReport
}

// Messages
type (
	signalMsg   []model.Signal
	startRunMsg struct{}
	runDoneMsg  struct{ report model.RunReport }
	unitDoneMsg struct{ report model.UnitReport }
)

func newTUIModel(ctx context.Context, suite *model.Suite, autoRun bool) *tuiModel {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: SpinnerFrames(),
		FPS:    time.Second / 10,
	}
	s.Style = DefaultStyles().Running

	m := &tuiModel{
		ctx:     ctx,
		suite:   suite,
		styles:  DefaultStyles(),
		spinner: s,
		width:   80,
		height:  24,
		autoRun: autoRun,
	}
	m.refresh()

	return m
}

func (m *tuiModel) Init() tea.Cmd {
	if m.autoRun {
		return tea.Batch(m.spinner.Tick, func() tea.Msg { return startRunMsg{} })
	}

	return m.spinner.Tick
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case signalMsg:
		m.refresh()

	case startRunMsg:
		return m, m.runAll()

	case runDoneMsg:
		m.endTime = time.Now()
		m.report = &msg.report
		m.message = ""

		if err := msg.report.Err(); err != nil {
			m.message = err.Error()
		}

	case unitDoneMsg:
		m.message = fmt.Sprintf("%s finished in %s", msg.report.Unit, formatDuration(msg.report.Elapsed()))

		if msg.report.Err != nil {
			m.message = fmt.Sprintf("%s: %v", msg.report.Unit, msg.report.Err)
		}
	}

	return m, nil
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.selectCurrent()
		}

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.selectCurrent()
		}

	case "r":
		return m.runAll()

	case "enter", " ":
		return m.runFocused()

	case "v":
		if u := m.focusedUnit(); u != nil {
			u.ToggleVisible()
			m.refresh()
			m.focusUnit(u)
			m.selectCurrent()
		}
	}

	return nil
}

func (m *tuiModel) runAll() tea.Cmd {
	done, ok := m.suite.RunAll(m.ctx)
	if !ok {
		m.message = "a run is already in progress"

		return nil
	}

	m.startTime = time.Now()
	m.endTime = time.Time{}
	m.message = ""

	return func() tea.Msg {
		return runDoneMsg{report: <-done}
	}
}

func (m *tuiModel) runFocused() tea.Cmd {
	u := m.focusedUnit()
	if u == nil {
		return nil
	}

	done, ok := u.Run(m.ctx)
	if !ok {
		m.message = u.DisplayName() + " is already running"

		return nil
	}

	m.message = ""

	return func() tea.Msg {
		return unitDoneMsg{report: <-done}
	}
}

func (m *tuiModel) focusedUnit() *model.Unit {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}

	return m.rows[m.cursor].unit
}

func (m *tuiModel) focusUnit(u *model.Unit) {
	for i, r := range m.rows {
		if r.unit == u && r.record == nil {
			m.cursor = i

			return
		}
	}
}

// selectCurrent makes the focused test the suite selection, or clears it on
// a unit header.
func (m *tuiModel) selectCurrent() {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		m.suite.Select(nil)

		return
	}

	m.suite.Select(m.rows[m.cursor].record)
}

// refresh rebuilds the rows and keeps the cursor on the same row if it
// still exists.
func (m *tuiModel) refresh() {
	var focused row
	if m.cursor >= 0 && m.cursor < len(m.rows) {
		focused = m.rows[m.cursor]
	}

	m.rows = m.rows[:0]

	for _, u := range m.suite.Units() {
		m.rows = append(m.rows, row{unit: u})

		if !u.Visible() {
			continue
		}

		for _, r := range u.Records() {
			m.rows = append(m.rows, row{unit: u, record: r})
		}
	}

	for i, r := range m.rows {
		if r == focused {
			m.cursor = i

			return
		}
	}

	m.cursor = min(m.cursor, len(m.rows)-1)
	m.cursor = max(m.cursor, 0)
}

// clearEOL is the ANSI escape sequence to clear from cursor to end of line.
const clearEOL = "\033[K"

// FinalView renders the tree and summary without key help or escapes.
func (m *tuiModel) FinalView() string {
	return strings.Join(m.render(false), "\n")
}

func (m *tuiModel) View() string {
	lines := m.render(true)

	for i := range lines {
		lines[i] += clearEOL
	}

	return strings.Join(lines, "\n") + "\n"
}

func (m *tuiModel) render(interactive bool) []string {
	lines := []string{
		m.renderHeader(),
		m.renderProgress(),
		"",
	}

	for i, r := range m.rows {
		focused := interactive && i == m.cursor

		if r.record == nil {
			lines = append(lines, m.renderUnit(r.unit, focused))
		} else {
			lines = append(lines, m.renderTest(r, i, focused))
		}
	}

	if interactive {
		if desc := m.suite.Description(); desc != "" {
			lines = append(lines, "")
			lines = append(lines, strings.Split(m.styles.Detail.Render(strings.TrimRight(desc, "\n")), "\n")...)
		}
	}

	lines = append(lines, "", m.renderSummary())

	if m.message != "" {
		lines = append(lines, m.styles.Muted.Render("  "+m.message))
	}

	if interactive {
		lines = append(lines, m.styles.Help.Render("r run all • enter run unit • ↑/↓ select • v show/hide • q quit"))
	}

	return lines
}

func (m *tuiModel) renderHeader() string {
	title := m.styles.Title.Render("spar")

	var status string

	switch running := m.countRunning(); {
	case running > 0:
		status = m.styles.Running.Render(fmt.Sprintf("%s running %d", m.spinner.View(), running))
	case m.report != nil:
		counts := m.suite.Counts()
		if counts.Failure > 0 || m.report.Err() != nil {
			status = m.styles.Fail.Render("FAIL")
		} else {
			status = m.styles.Pass.Render("PASS")
		}
	default:
		status = m.styles.Dim.Render("idle")
	}

	return fmt.Sprintf("%s  %s", title, status)
}

func (m *tuiModel) countRunning() int {
	count := 0

	for _, u := range m.suite.Units() {
		if u.Running() {
			count++
		}
	}

	return count
}

func (m *tuiModel) renderProgress() string {
	counts := m.suite.Counts()
	done := counts.Success + counts.Failure + counts.Ignored

	total := counts.Total
	if total == 0 {
		total = 1
	}

	pct := float64(done) / float64(total)

	var elapsed time.Duration

	switch {
	case m.startTime.IsZero():
	case m.endTime.IsZero():
		elapsed = time.Since(m.startTime)
	default:
		elapsed = m.endTime.Sub(m.startTime)
	}

	elapsedStr := m.styles.Dim.Render(fmt.Sprintf("[%s]", formatDuration(elapsed)))

	barWidth := 30
	filled := int(pct * float64(barWidth))
	filledChar, emptyChar := ProgressChars()

	bar := m.styles.ProgressFilled.Render(strings.Repeat(filledChar, filled)) +
		m.styles.ProgressEmpty.Render(strings.Repeat(emptyChar, barWidth-filled))

	counter := m.styles.Muted.Render(fmt.Sprintf("%d/%d", done, counts.Total))

	return fmt.Sprintf("%s %s %s", elapsedStr, bar, counter)
}

func (m *tuiModel) cursorMark(focused bool) string {
	if focused {
		return m.styles.Cursor.Render("›") + " "
	}

	return "  "
}

func (m *tuiModel) renderUnit(u *model.Unit, focused bool) string {
	fold := "▾"
	if !u.Visible() {
		fold = "▸"
	}

	name := u.DisplayName()
	if focused {
		name = m.styles.Cursor.Render(name)
	} else {
		name = m.styles.Bold.Render(name)
	}

	counts := u.Counts()
	info := m.styles.Dim.Render(fmt.Sprintf("  %s · %d tests", u.Engine(), counts.Total))

	var b strings.Builder

	b.WriteString(m.cursorMark(focused))
	b.WriteString(m.styles.Dim.Render(fold) + " ")
	b.WriteString(m.unitSymbol(u, counts) + " ")
	b.WriteString(name)
	b.WriteString(info)

	if err := u.DiscoveryErr(); err != nil {
		b.WriteString("  " + m.styles.Error.Render(err.Error()))
	}

	return b.String()
}

// unitSymbol derives a unit's symbol from its tests.
func (m *tuiModel) unitSymbol(u *model.Unit, counts model.Counts) string {
	switch {
	case u.Running():
		return m.spinner.View()
	case counts.Failure > 0:
		return m.styles.Fail.Render(m.styles.SymbolFail)
	case counts.Total == 0, counts.None > 0:
		return m.styles.Dim.Render(m.styles.SymbolPending)
	case counts.Success > 0:
		return m.styles.Pass.Render(m.styles.SymbolPass)
	default:
		return m.styles.Skip.Render(m.styles.SymbolSkip)
	}
}

func (m *tuiModel) renderTest(r row, i int, focused bool) string {
	branch := "├─"
	if i == len(m.rows)-1 || m.rows[i+1].record == nil {
		branch = "╰─"
	}

	status := r.record.Status()

	name := r.record.Name()
	if focused {
		name = m.styles.Cursor.Render(name)
	} else {
		name = m.styles.TestName.Render(name)
	}

	return m.cursorMark(focused) + m.styles.Dim.Render("  "+branch+" ") + m.testSymbol(status) + " " + name
}

func (m *tuiModel) testSymbol(status model.TestStatus) string {
	style := m.styles.Status(status)

	switch status {
	case model.StatusRunning:
		return m.spinner.View()
	case model.StatusSuccess:
		return style.Render(m.styles.SymbolPass)
	case model.StatusFailure:
		return style.Render(m.styles.SymbolFail)
	case model.StatusIgnored:
		return style.Render(m.styles.SymbolSkip)
	default:
		return style.Render(m.styles.SymbolPending)
	}
}

func (m *tuiModel) renderSummary() string {
	counts := m.suite.Counts()

	var parts []string

	if counts.Success > 0 {
		parts = append(parts, m.styles.Pass.Render(fmt.Sprintf("%d passed", counts.Success)))
	}

	if counts.Failure > 0 {
		parts = append(parts, m.styles.Fail.Render(fmt.Sprintf("%d failed", counts.Failure)))
	}

	if counts.Ignored > 0 {
		parts = append(parts, m.styles.Skip.Render(fmt.Sprintf("%d skipped", counts.Ignored)))
	}

	if len(parts) == 0 {
		return m.styles.Dim.Render(fmt.Sprintf("  No tests run (%d found)", counts.Total))
	}

	total := m.styles.Muted.Render(fmt.Sprintf("(%d total)", counts.Total))
	sep := m.styles.Dim.Render(" │ ")

	return "  " + strings.Join(parts, sep) + " " + total
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return "<1ms"
	}

	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
