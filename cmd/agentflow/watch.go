package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agentflowhq/agentflow/agent"
	"github.com/agentflowhq/agentflow/builder"
	"github.com/agentflowhq/agentflow/config"
)

var (
	watchHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#7C3AED")).Padding(0, 1)
	watchFooterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	watchToolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	watchTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB"))
	watchErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	watchDoneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
)

// WatchCmd runs one agent and streams its steps into a live terminal UI,
// one line per agent.Event, instead of printing only the final reply.
type WatchCmd struct {
	Agent string `arg:"" help:"Name of the agent to run."`
	Query string `arg:"" help:"The user message to send."`
}

func (c *WatchCmd) Run(cli *CLI) error {
	file, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runners, err := builder.BuildAgents(context.Background(), file)
	if err != nil {
		return fmt.Errorf("build agents: %w", err)
	}
	if _, ok := runners.Runners.Get(c.Agent); !ok {
		return fmt.Errorf("unknown agent %q", c.Agent)
	}

	m := newWatchModel(runners, file, c.Agent, c.Query)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

type watchLineMsg string
type watchDoneMsg struct{ err error }

type watchModel struct {
	runners *builder.RunnerSet
	file    *config.File
	agent   string
	query   string

	events chan tea.Msg
	lines  []string
	done   bool
	errMsg string

	view   viewport.Model
	width  int
	height int
	ready  bool
}

func newWatchModel(runners *builder.RunnerSet, file *config.File, agentName, query string) watchModel {
	return watchModel{
		runners: runners,
		file:    file,
		agent:   agentName,
		query:   query,
		events:  make(chan tea.Msg, 256),
		lines:   []string{fmt.Sprintf("starting agent %q", agentName)},
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.startRun(), waitForEvent(m.events))
}

// startRun launches the agent run in the background, forwarding every
// agent.Event onto m.events as a watchLineMsg and a final watchDoneMsg.
func (m watchModel) startRun() tea.Cmd {
	return func() tea.Msg {
		go func() {
			runner, _ := m.runners.Runners.Get(m.agent)
			state, err := m.runners.InitialState(m.file, m.agent, m.query)
			if err != nil {
				m.events <- watchDoneMsg{err: err}
				return
			}
			opts := m.runners.RunOpts[m.agent]

			final, runErr := runner.RunWithEvents(context.Background(), state, opts, func(ev agent.Event) {
				if line := renderWatchEvent(ev); line != "" {
					m.events <- watchLineMsg(line)
				}
			})
			if runErr == nil {
				if reply, ok := lastAssistantText(final); ok {
					m.events <- watchLineMsg(watchDoneStyle.Render("reply: ") + reply)
				}
			}
			m.events <- watchDoneMsg{err: runErr}
		}()
		return nil
	}
}

func waitForEvent(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func renderWatchEvent(ev agent.Event) string {
	switch ev.Kind {
	case agent.EventStepStarted:
		return watchFooterStyle.Render("--- step ---")
	case agent.EventTextComplete:
		return watchTextStyle.Render(ev.Content)
	case agent.EventToolCallStarted:
		return watchToolStyle.Render(fmt.Sprintf("→ %s(%s)", ev.ToolName, ev.Arguments))
	case agent.EventToolCallCompleted:
		return watchToolStyle.Render(fmt.Sprintf("← %s (%dms): %s", ev.ToolName, ev.DurationMs, truncate(ev.Result, 200)))
	case agent.EventToolCallFailed:
		return watchErrorStyle.Render(fmt.Sprintf("✗ %s: %s", ev.ToolName, ev.Result))
	case agent.EventHandoffStarted:
		return watchFooterStyle.Render("handoff: " + ev.Reason)
	case agent.EventAgentFailed:
		return watchErrorStyle.Render("error: " + ev.Error)
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case watchLineMsg:
		m.lines = append(m.lines, string(msg))
		m.view.SetContent(strings.Join(m.lines, "\n"))
		m.view.GotoBottom()
		return m, waitForEvent(m.events)

	case watchDoneMsg:
		m.done = true
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		}
		m.view.SetContent(strings.Join(m.lines, "\n"))
		m.view.GotoBottom()
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		viewHeight := m.height - 4
		if !m.ready {
			m.view = viewport.New(m.width, viewHeight)
			m.view.SetContent(strings.Join(m.lines, "\n"))
			m.ready = true
		} else {
			m.view.Width = m.width
			m.view.Height = viewHeight
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m watchModel) View() string {
	if !m.ready {
		return "starting...\n"
	}

	header := watchHeaderStyle.Width(m.width).Render(fmt.Sprintf(" agentflow watch: %s ", m.agent))

	status := "running — ctrl+c to quit"
	if m.done {
		status = "done — press q to quit"
		if m.errMsg != "" {
			status = "failed: " + m.errMsg
		}
	}
	footer := watchFooterStyle.Render(status)

	return lipgloss.JoinVertical(lipgloss.Left, header, m.view.View(), footer)
}
