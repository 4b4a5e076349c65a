// Package tui replays a scripted session through the testbed in the
// terminal.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rafidiit-ops/ReverseGoGo/internal/automation"
	"github.com/rafidiit-ops/ReverseGoGo/internal/study"
	"github.com/rafidiit-ops/ReverseGoGo/internal/testbed"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

const historyLen = 48

type tickMsg time.Time

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the bubbletea model for a live replay.
type Model struct {
	tb     *testbed.Testbed
	player *automation.Player
	frame  time.Duration

	snap    testbed.Snapshot
	started bool
	paused  bool
	done    bool
	speed   float64
	carry   float64
	history []float64
	log     []string
	records []study.TrialRecord

	width  int
	height int
}

// New returns a paused-at-start model that plays p through tb in real time.
func New(tb *testbed.Testbed, p *automation.Player, dt float64) Model {
	frame := time.Duration(dt * float64(time.Second))
	if frame <= 0 {
		frame = time.Second / 72
	}
	return Model{
		tb:      tb,
		player:  p,
		frame:   frame,
		speed:   1,
		history: make([]float64, 0, historyLen),
		width:   80,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd { return tick(m.frame) }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.key(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.done {
			return m, nil
		}
		if !m.paused {
			m.carry += m.speed
			for ; m.carry >= 1; m.carry-- {
				if m.player.Done() {
					m.done = true
					break
				}
				m.step()
			}
		}
		return m, tick(m.frame)
	}
	return m, nil
}

func (m *Model) step() {
	t := m.player.Next(m.tb, m.tb.Config().Sim.Dt)
	m.snap = m.tb.Step(testbed.Frame{HMD: t.HMD, Controller: t.Controller, Buttons: t.Buttons})
	m.started = true

	m.history = append(m.history, m.snap.Depth.Multiplier)
	if len(m.history) > historyLen {
		m.history = m.history[1:]
	}
	for _, ev := range m.snap.Events {
		verdict := "wrong"
		if ev.IsCorrect {
			verdict = "correct"
		}
		m.push(fmt.Sprintf("%6.2fs %s -> %s %s", m.snap.Time, ev.EntityName, ev.ZoneLabel, verdict))
	}
	if r := m.snap.Record; r != nil {
		m.records = append(m.records, *r)
		m.push(fmt.Sprintf("%6.2fs participant %s recorded", m.snap.Time, r.ParticipantID))
	}
}

func (m *Model) push(line string) {
	m.log = append(m.log, line)
	if len(m.log) > 5 {
		m.log = m.log[1:]
	}
}

func (m Model) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case " ", "p":
		m.paused = !m.paused
	case "n":
		if !m.player.Done() {
			m.step()
		}
	case "+", "=":
		m.speed = math.Min(m.speed*2, 16)
	case "-", "_":
		m.speed = math.Max(m.speed/2, 0.25)
	case "0":
		m.speed = 1
	}
	return m, nil
}

// Records returns the trial rows written during the replay.
func (m Model) Records() []study.TrialRecord { return m.records }

func (m Model) View() string {
	var b strings.Builder
	s := m.snap

	status := green.Render("● running")
	switch {
	case m.done:
		status = cyan.Render("■ finished")
	case m.paused:
		status = yellow.Render("○ paused")
	}
	b.WriteString(fmt.Sprintf("\n   %s  %s  %s\n",
		cyan.Render(m.tb.Switcher.ModeName()), status,
		dim.Render(fmt.Sprintf("t=%.2fs  x%.2g", s.Time, m.speed))))
	b.WriteString(dimmer.Render("   "+strings.Repeat("─", 48)) + "\n")

	cw, ch := max(m.width-6, 40), max(m.height-16, 10)
	c := newCanvas(cw, ch)
	if m.started {
		drawScene(c, m.tb, s)
	}
	for _, row := range strings.Split(strings.TrimRight(c.String(), "\n"), "\n") {
		b.WriteString("   " + row + "\n")
	}

	b.WriteString(dimmer.Render("   "+strings.Repeat("─", 48)) + "\n")
	phase := s.Phase.String()
	if s.Held != 0 {
		phase = magenta.Render(phase)
	}
	b.WriteString(fmt.Sprintf("   %s %s  %s %s  %s %s\n",
		dim.Render("phase"), white.Render(phase),
		dim.Render("reach"), white.Render(fmt.Sprintf("%.2fm", s.Depth.DistanceFromHMD)),
		dim.Render("mult"), white.Render(fmt.Sprintf("%.2f", s.Depth.Multiplier))))
	if s.Reach != nil {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("gogo"),
			white.Render(fmt.Sprintf("%.2fm -> %.2fm", s.Reach.RealDistance, s.Reach.VirtualDistance))))
	}
	if s.Pull != nil {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("pull"), progressBar(s.Pull.Progress, 24)))
	}
	if len(m.history) > 1 {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("mult"), cyan.Render(sparkline(m.history, 24))))
	}

	st := s.Study
	b.WriteString(fmt.Sprintf("   %s %s  %s %d/%d  %s %d/%d\n",
		dim.Render("participant"), white.Render(st.ParticipantID),
		dim.Render("task"), st.TrialIndex, study.TasksPerStudy,
		dim.Render("correct"), st.Successes, st.Attempts))
	for _, line := range m.log {
		style := dim
		if strings.HasSuffix(line, "wrong") {
			style = red
		}
		b.WriteString("   " + style.Render(line) + "\n")
	}

	b.WriteString("\n" + dim.Render("   space pause  n step  ±speed  q quit") + "\n")
	return b.String()
}

func progressBar(v float64, width int) string {
	filled := int(math.Round(math.Max(0, math.Min(1, v)) * float64(width)))
	return cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", width-filled))
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := max(len(data)/width, 1)
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		sb.WriteRune(chars[max(0, min(idx, 7))])
	}
	return sb.String()
}

// Run replays p through tb until the user quits or ctx is cancelled, and
// returns the trial rows written on the way.
func Run(ctx context.Context, tb *testbed.Testbed, p *automation.Player) ([]study.TrialRecord, error) {
	prog := tea.NewProgram(New(tb, p, tb.Config().Sim.Dt), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := prog.Run()
	if m, ok := final.(Model); ok {
		return m.Records(), err
	}
	return nil, err
}
