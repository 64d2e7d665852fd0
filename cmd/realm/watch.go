package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	cl "hearthrealm/internal/cli"
	"hearthrealm/internal/game"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	watchTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	watchLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(11)
	watchErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	watchHelp  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	watchBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

type queueMsg struct {
	queue game.QueueView
	err   error
}

type pollMsg struct{}

type watchModel struct {
	ctx     context.Context
	client  *cl.Client
	token   string
	every   time.Duration
	spin    spinner.Model
	bar     progress.Model
	queue   *game.QueueView
	lastErr error
	done    bool
}

func newWatchModel(ctx context.Context, c *cl.Client, token string, every time.Duration) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return watchModel{
		ctx:    ctx,
		client: c,
		token:  token,
		every:  every,
		spin:   s,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m watchModel) fetch() tea.Msg {
	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	defer cancel()
	out, err := m.client.QueueStatus(ctx, m.token)
	return queueMsg{queue: out.Data, err: err}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fetch)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case queueMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			q := msg.queue
			m.queue = &q
			if q.Status != game.QueueActive {
				m.done = true
				return m, tea.Quit
			}
		}
		return m, tea.Tick(m.every, func(time.Time) tea.Msg { return pollMsg{} })
	case pollMsg:
		return m, m.fetch
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	if m.queue == nil {
		b.WriteString(m.spin.View() + " loading queue...")
	} else {
		q := m.queue
		head := fmt.Sprintf("%s x%d", q.Action, q.Repetitions)
		if !m.done {
			head = m.spin.View() + " " + head
		}
		b.WriteString(watchTitle.Render(head) + "\n\n")
		ratio := 0.0
		if q.Repetitions > 0 {
			ratio = float64(q.CompletedReps) / float64(q.Repetitions)
		}
		b.WriteString(m.bar.ViewAs(ratio) + "\n\n")
		b.WriteString(watchLabel.Render("progress") + fmt.Sprintf("%d/%d", q.CompletedReps, q.Repetitions) + "\n")
		b.WriteString(watchLabel.Render("successes") + fmt.Sprint(q.Successes) + "\n")
		b.WriteString(watchLabel.Render("xp") + comma(q.XPGained) + "\n")
		b.WriteString(watchLabel.Render("status") + q.Status)
		if q.FailureReason != "" {
			b.WriteString("\n" + watchErr.Render(q.FailureReason))
		}
		if q.Status == game.QueueActive {
			b.WriteString("\n" + watchLabel.Render("next rep") + time.Until(q.NextRunAt).Round(time.Second).String())
		}
	}
	if m.lastErr != nil {
		b.WriteString("\n" + watchErr.Render(m.lastErr.Error()))
	}
	out := watchBox.Render(b.String()) + "\n"
	if !m.done {
		out += watchHelp.Render("q to quit") + "\n"
	}
	return out
}

func watchQueue(ctx context.Context, c *cl.Client, token string, every time.Duration) error {
	if every <= 0 {
		every = time.Second
	}
	_, err := tea.NewProgram(newWatchModel(ctx, c, token, every), tea.WithContext(ctx)).Run()
	return err
}
