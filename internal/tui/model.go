// Package tui implements a live-updating top-20 dashboard over the
// same aggregate reports the text reporter would otherwise print.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dsmmcken/pmp/internal/engine"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"}
)

// aggregateMsg carries one report-boundary result from the sampler.
type aggregateMsg struct {
	entries []engine.HistEntry
	total   int
	elapsed time.Duration
	suspend time.Duration
}

// doneMsg signals the sampler's Run loop returned.
type doneMsg struct{ err error }

// Done builds the tea.Msg the sampler goroutine sends once its Run loop
// returns, so the dashboard quits on its own instead of waiting for a
// keypress.
func Done(err error) tea.Msg { return doneMsg{err: err} }

// ChanReporter implements engine.Reporter by forwarding aggregate
// reports onto a channel, for consumption by the bubbletea event loop.
// ReportSample is unused: --tui is rejected together with Max==1 at the
// CLI layer, since a single-sample run never reaches a report boundary.
type ChanReporter struct {
	ch chan<- tea.Msg
}

// NewChanReporter builds a reporter that forwards onto ch. Give ch a
// small buffer: a report that arrives while the dashboard is mid-repaint
// (or already quit) is dropped rather than stalling the sampler.
func NewChanReporter(ch chan<- tea.Msg) *ChanReporter {
	return &ChanReporter{ch: ch}
}

func (r *ChanReporter) ReportSample(tid int, frames []engine.ResolvedFrame) {}

func (r *ChanReporter) ReportAggregate(entries []engine.HistEntry, total int, elapsed, suspend time.Duration) {
	select {
	case r.ch <- aggregateMsg{entries: entries, total: total, elapsed: elapsed, suspend: suspend}:
	default:
	}
}

type keyMap struct {
	Quit key.Binding
}

// Model is the bubbletea model driving the dashboard. It quits on its
// own once the sampler's goroutine sends Done (either because Max was
// reached or the sampler hit a fatal error).
type Model struct {
	ch      chan tea.Msg
	keys    keyMap
	entries []engine.HistEntry
	total   int
	elapsed time.Duration
	suspend time.Duration
	err     error
}

// NewModel builds a Model that reads sampler reports from ch. The
// caller is responsible for running the Sampler in a goroutine that
// writes aggregateMsg/doneMsg values onto ch.
func NewModel(ch chan tea.Msg) Model {
	return Model{
		ch: ch,
		keys: keyMap{
			Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		},
	}
}

func waitForMsg(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

func (m Model) Init() tea.Cmd {
	return waitForMsg(m.ch)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case aggregateMsg:
		m.entries = msg.entries
		m.total = msg.total
		m.elapsed = msg.elapsed
		m.suspend = msg.suspend
		return m, waitForMsg(m.ch)

	case doneMsg:
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Render("  pmp — live sample aggregate"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(fmt.Sprintf("  Error: %s\n", m.err))
		return b.String()
	}
	if len(m.entries) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render("  waiting for first report...\n"))
		return b.String()
	}

	// Entries arrive ascending by count; reverse for a most-frequent-first display.
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		pct := 0.0
		if m.total > 0 {
			pct = 100 * float64(e.Count) / float64(m.total)
		}
		line := fmt.Sprintf("  %6d  %5.1f%%  %s", e.Count, pct, e.Key)
		b.WriteString(line)
		b.WriteString("\n")
	}

	suspendPct := 0.0
	if m.elapsed > 0 {
		suspendPct = 100 * m.suspend.Seconds() / m.elapsed.Seconds()
	}
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render(
		fmt.Sprintf("  suspended %.1f%% of %.1fs elapsed", suspendPct, m.elapsed.Seconds())))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render("  q quit"))
	b.WriteString("\n")

	return b.String()
}
