//go:build darwin

package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/getdiskfree/diskfree/internal/blocker"
	"github.com/getdiskfree/diskfree/internal/eject"
	"github.com/getdiskfree/diskfree/internal/kill"
	"github.com/getdiskfree/diskfree/internal/output"
	"github.com/getdiskfree/diskfree/internal/proc"
	"github.com/getdiskfree/diskfree/internal/volume"
	"github.com/getdiskfree/diskfree/pkg/model"
)

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("240"))

type tickMsg time.Time

type volumesMsg []string

type scanDoneMsg struct {
	volume   string
	blockers []model.Blocker
}

type ejectDoneMsg struct {
	volume string
	closed int
	result eject.Result
}

type viewState int

const (
	stateVolumes viewState = iota
	stateBlockers
)

type tuiModel struct {
	state       viewState
	table       table.Model
	filterInput textinput.Model
	filtering   bool

	volumes  []string
	visible  []string // raw names backing the filtered volume rows
	volume   string
	blockers []model.Blocker
	summary  model.Summary

	confirming  bool
	busy        bool
	detailsPID  int
	details     string
	message     string
	messageTime time.Time
	width       int
	height      int

	scanner  *proc.Scanner
	killer   *kill.Killer
	ejector  *eject.Ejector
	ancestry func(pid int) []model.Process
	log      *zap.Logger
}

func initialModel(log *zap.Logger) tuiModel {
	ti := textinput.New()
	ti.Placeholder = "Filter..."
	ti.CharLimit = 50
	ti.Width = 30

	m := tuiModel{
		state:       stateVolumes,
		filterInput: ti,
		scanner:     proc.NewScanner(log),
		killer:      kill.New(proc.Signals{}, log),
		ejector:     eject.New(log),
		ancestry:    proc.Ancestry,
		log:         log,
	}
	m.initTable()
	return m
}

func (m *tuiModel) initTable() {
	var columns []table.Column
	switch m.state {
	case stateVolumes:
		columns = []table.Column{
			{Title: "Volume", Width: 28},
			{Title: "Mount Path", Width: 40},
		}
	case stateBlockers:
		columns = []table.Column{
			{Title: "Process", Width: 28},
			{Title: "PID", Width: 8},
			{Title: "Access", Width: 8},
			{Title: "Origin", Width: 8},
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(m.height-15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(true)
	t.SetStyles(s)

	m.table = t
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(tick(), m.refreshData())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) refreshData() tea.Cmd {
	switch m.state {
	case stateVolumes:
		return func() tea.Msg {
			return volumesMsg(volume.List())
		}
	case stateBlockers:
		return m.scanCmd(m.volume)
	}
	return nil
}

func (m tuiModel) scanCmd(name string) tea.Cmd {
	scanner := m.scanner
	return func() tea.Msg {
		raw := scanner.OpenFiles(volume.Path(name))
		return scanDoneMsg{volume: name, blockers: blocker.Parse(raw)}
	}
}

// closeAndEject terminates the user blockers of the current volume, waits
// for the kernel to reap the released handles, then unmounts.
func (m tuiModel) closeAndEject() tea.Cmd {
	killer, ejector := m.killer, m.ejector
	name, blockers := m.volume, m.blockers
	return func() tea.Msg {
		closed := killer.CloseAll(blockers, nil)
		time.Sleep(killer.Settle)
		return ejectDoneMsg{volume: name, closed: closed, result: ejector.Eject(volume.Path(name))}
	}
}

func (m tuiModel) ejectCmd(name string) tea.Cmd {
	ejector := m.ejector
	return func() tea.Msg {
		return ejectDoneMsg{volume: name, result: ejector.Eject(volume.Path(name))}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// tea.Tick fires once, so every tickMsg must re-arm the timer, even
	// while the confirm overlay or the filter input holds the keys. Volume
	// membership is cheap to poll; rescanning blockers shells lsof, so that
	// only happens on demand.
	if _, ok := msg.(tickMsg); ok {
		if m.state == stateVolumes && !m.busy && !m.confirming && !m.filtering {
			return m, tea.Batch(tick(), m.refreshData())
		}
		return m, tick()
	}

	if m.confirming {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "y", "Y":
				m.confirming = false
				m.busy = true
				return m, m.closeAndEject()
			case "n", "N", "esc":
				m.confirming = false
				return m, nil
			case "enter":
				// Bare enter takes the default: decline when write handles
				// are open, proceed otherwise.
				m.confirming = false
				if m.summary.HasWriters {
					return m, nil
				}
				m.busy = true
				return m, m.closeAndEject()
			}
		}
		return m, nil
	}

	if m.filtering {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "enter", "esc":
				m.filtering = false
				m.filterInput.Blur()
				m.updateRows()
				return m, nil
			}
		}
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.updateRows()
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.busy {
			if s := msg.String(); s == "q" || s == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "down", "j", "k", "pgup", "pgdown", "home", "end":
			m.detailsPID = 0
			m.details = ""
		case "/":
			m.filtering = true
			m.filterInput.Focus()
			return m, nil
		case "r":
			return m, m.refreshData()
		case "b", "esc":
			if m.details != "" {
				m.detailsPID = 0
				m.details = ""
				return m, nil
			}
			if m.state == stateBlockers {
				m.backToVolumes()
				return m, m.refreshData()
			}
			return m, nil
		case "e":
			name := m.volume
			if m.state == stateVolumes {
				name = m.selectedVolume()
				if name == "" {
					return m, nil
				}
			}
			m.busy = true
			return m, m.ejectCmd(name)
		case "x":
			if m.state != stateBlockers {
				return m, nil
			}
			if m.summary.UserCount == 0 {
				m.busy = true
				return m, m.ejectCmd(m.volume)
			}
			m.confirming = true
			return m, nil
		case "enter":
			switch m.state {
			case stateVolumes:
				name := m.selectedVolume()
				if name == "" {
					return m, nil
				}
				m.volume = name
				m.state = stateBlockers
				m.filterInput.SetValue("")
				m.initTable()
				return m, m.refreshData()
			case stateBlockers:
				selected := m.table.SelectedRow()
				if len(selected) < 2 {
					return m, nil
				}
				pid, _ := strconv.Atoi(selected[1])
				if pid > 0 {
					m.detailsPID = pid
					m.updateDetails()
				}
			}
			return m, nil
		}
	case volumesMsg:
		m.volumes = msg
		m.updateRows()
	case scanDoneMsg:
		if msg.volume == m.volume {
			m.blockers = msg.blockers
			m.summary = blocker.Summarize(msg.blockers)
			m.updateRows()
		}
	case ejectDoneMsg:
		m.busy = false
		m.messageTime = time.Now()
		m.log.Debug("eject finished",
			zap.String("volume", msg.volume),
			zap.Bool("ok", msg.result.OK()),
			zap.Int("closed", msg.closed))
		name := output.SanitizeTerminal(msg.volume)
		switch {
		case msg.result.OK() && msg.result.Forced:
			m.message = fmt.Sprintf("Ejected %s (forced unmount)", name)
		case msg.result.OK():
			m.message = fmt.Sprintf("Ejected %s", name)
		default:
			m.message = fmt.Sprintf("Could not eject %s; something is still using it", name)
		}
		if msg.closed > 0 {
			m.message = fmt.Sprintf("Closed %d process(es). %s", msg.closed, m.message)
		}
		if m.state == stateBlockers && m.volume == msg.volume && msg.result.OK() {
			m.backToVolumes()
		}
		return m, m.refreshData()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.height - 15)
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// selectedVolume maps the table cursor back to the raw volume name; rows
// hold sanitized text, which is not safe to use as a path component.
func (m *tuiModel) selectedVolume() string {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.visible) {
		return ""
	}
	return m.visible[idx]
}

func (m *tuiModel) backToVolumes() {
	m.state = stateVolumes
	m.volume = ""
	m.blockers = nil
	m.summary = model.Summary{}
	m.detailsPID = 0
	m.details = ""
	m.filterInput.SetValue("")
	m.initTable()
	m.updateRows()
}

func (m *tuiModel) updateRows() {
	var rows []table.Row
	filter := strings.ToLower(m.filterInput.Value())

	switch m.state {
	case stateVolumes:
		m.visible = m.visible[:0]
		for _, name := range m.volumes {
			row := table.Row{
				output.SanitizeTerminal(name),
				output.SanitizeTerminal(volume.Path(name)),
			}
			if matchRow(row, filter) {
				rows = append(rows, row)
				m.visible = append(m.visible, name)
			}
		}
	case stateBlockers:
		for _, b := range m.blockers {
			row := table.Row{
				output.SanitizeTerminal(b.Name),
				strconv.Itoa(b.PID),
				string(b.Mode),
				string(b.Origin),
			}
			if matchRow(row, filter) {
				rows = append(rows, row)
			}
		}
	}

	m.table.SetRows(rows)
}

func matchRow(row table.Row, filter string) bool {
	if filter == "" {
		return true
	}
	for _, cell := range row {
		if strings.Contains(strings.ToLower(cell), filter) {
			return true
		}
	}
	return false
}

func (m *tuiModel) updateDetails() {
	if m.detailsPID == 0 {
		return
	}

	chain := m.ancestry(m.detailsPID)
	if len(chain) == 0 {
		m.details = fmt.Sprintf("No process info for pid %d (already exited?)", m.detailsPID)
		return
	}

	// The chain runs root first, so the inspected process is the last entry.
	self := chain[len(chain)-1]
	started := "unknown"
	if !self.StartedAt.IsZero() {
		started = self.StartedAt.Format("Mon Jan 2 15:04:05 2006")
	}

	lines := []string{
		" Cmdline: " + output.SanitizeTerminal(self.Cmdline),
		fmt.Sprintf(" User: %s   Started: %s", output.SanitizeTerminal(self.User), started),
		" Ancestry:",
	}
	for i, p := range chain {
		indent := strings.Repeat("  ", i+1)
		if i > 0 {
			indent += "└─ "
		}
		lines = append(lines, fmt.Sprintf("%s%s (pid %d, %s)",
			indent, output.SanitizeTerminal(p.Command), p.PID, output.SanitizeTerminal(p.User)))
	}
	m.details = strings.Join(lines, "\n")
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("57")).Bold(true).Render("diskfree Interactive Mode") + "\n\n")

	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	location := " Volumes under " + volume.MountRoot
	if m.state == stateBlockers {
		location = " Processes blocking " + output.SanitizeTerminal(m.volume)
	}
	b.WriteString(dimStyle.Render(location))

	if m.state == stateBlockers {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d blocking: %d user, %d system",
			m.summary.Total, m.summary.UserCount, m.summary.SystemCount)))
		if m.summary.HasWriters {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true).Render("  write handles open"))
		}
	}
	b.WriteString("\n\n")

	if m.filtering {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("57")).Render(" / ") + m.filterInput.View() + "\n")
	} else if m.filterInput.Value() != "" {
		b.WriteString(dimStyle.Render(" Filter: "+m.filterInput.Value()) + "\n")
	} else {
		b.WriteString("\n")
	}

	b.WriteString(baseStyle.Render(m.table.View()) + "\n")

	if m.busy {
		b.WriteString("\n" + lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Padding(0, 1).
			Render("Working...") + "\n")
	}

	if m.message != "" && time.Since(m.messageTime) < 3*time.Second {
		b.WriteString("\n" + lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Padding(0, 1).
			Render(" "+m.message+" ") + "\n")
	}

	if m.confirming {
		def := "[Y/n]"
		if m.summary.HasWriters {
			def = "[y/N]"
		}
		prompt := fmt.Sprintf(" Close %d user process(es) and eject %s? %s ",
			m.summary.UserCount, output.SanitizeTerminal(m.volume), def)
		b.WriteString("\n" + lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("160")).
			Bold(true).
			Padding(0, 1).
			Render(prompt) + "\n")
	}

	if m.details != "" && !m.confirming {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("57")).Bold(true).Render(" Details: ") + "\n" + m.details + "\n")
	}

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	help := "\n  q: quit • enter: inspect • e: eject • r: refresh • /: filter"
	if m.state == stateBlockers {
		help = "\n  q: quit • enter: details • x: close and eject • e: eject as-is • r: rescan • b: back • /: filter"
	}
	if m.detailsPID != 0 {
		help += " • esc: close details"
	}
	b.WriteString(helpStyle.Render(help) + "\n")

	return b.String()
}

// Run starts the interactive browser and blocks until the user quits.
func Run(log *zap.Logger) error {
	p := tea.NewProgram(initialModel(log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
