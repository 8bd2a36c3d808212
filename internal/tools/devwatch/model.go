package devwatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quickserve/pos-device-access/internal/client"
	"github.com/quickserve/pos-device-access/internal/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	deadStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

type sessionsMsg struct {
	sessions []domain.Session
	err      error
}

type tickMsg time.Time

type model struct {
	api        *client.APIClient
	token      string
	locationID string
	interval   time.Duration

	sessions []domain.Session
	err      error
	lastPoll time.Time
}

func newModel(api *client.APIClient, token, locationID string, interval time.Duration) model {
	return model{api: api, token: token, locationID: locationID, interval: interval}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.poll(), m.tick())
}

func (m model) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sessions, err := m.api.ListSessions(ctx, m.token, m.locationID)
		return sessionsMsg{sessions: sessions, err: err}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.poll()
		}
	case tickMsg:
		return m, tea.Batch(m.poll(), m.tick())
	case sessionsMsg:
		m.err = msg.err
		if msg.err == nil {
			m.sessions = msg.sessions
			m.lastPoll = time.Now()
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("pos-device-access sessions"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(deadStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-38s %-18s %-18s %-8s %s",
		"SESSION", "DEVICE", "INTERFACE", "STATUS", "LAST ACTIVITY")))
	b.WriteString("\n")

	sessions := append([]domain.Session(nil), m.sessions...)
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActivityAt.After(sessions[j].LastActivityAt)
	})
	for _, s := range sessions {
		line := fmt.Sprintf("%-38s %-18s %-18s %-8s %s",
			s.ID, truncate(s.DeviceID, 18), s.Interface, s.Status,
			s.LastActivityAt.Local().Format("15:04:05"))
		b.WriteString(styleForStatus(s.Status).Render(line))
		b.WriteString("\n")
	}
	if len(sessions) == 0 {
		b.WriteString(faintStyle.Render("no sessions"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render(fmt.Sprintf("polled %s  ·  q quit  ·  r refresh",
		m.lastPoll.Format("15:04:05"))))
	return b.String()
}

func styleForStatus(status domain.SessionStatus) lipgloss.Style {
	switch status {
	case domain.SessionStatusActive:
		return activeStyle
	case domain.SessionStatusIdle:
		return idleStyle
	default:
		return deadStyle
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
