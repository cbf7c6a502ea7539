package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/forgeline/healer/internal/model"
)

// NewStatusCommand builds `healer status <run-id>`, which queries a
// running server's GET /runs/{id}; with --watch it instead streams
// GET /runs/{id}/events live in a small terminal UI until the run ends.
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Query the status of a submitted run",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}

	flags := cmd.Flags()
	flags.String("server", "http://localhost:8080", "base URL of the healer API server")
	flags.Bool("watch", false, "stream live events instead of printing a single snapshot")

	return cmd
}

type statusResponse struct {
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	CurrentNode string `json:"current_node,omitempty"`
	Iteration   int    `json:"iteration,omitempty"`
	Error       string `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	runID := args[0]
	serverURL, _ := cmd.Flags().GetString("server")
	watch, _ := cmd.Flags().GetBool("watch")

	if watch {
		return watchRun(serverURL, runID)
	}

	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/runs/" + runID)
	if err != nil {
		return fmt.Errorf("query status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Run ID", status.RunID})
	t.AppendRow(table.Row{"Status", status.Status})
	if status.CurrentNode != "" {
		t.AppendRow(table.Row{"Current node", status.CurrentNode})
		t.AppendRow(table.Row{"Iteration", status.Iteration})
	}
	if status.Error != "" {
		t.AppendRow(table.Row{"Error", status.Error})
	}
	t.Render()
	return nil
}

var (
	watchHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	watchDoneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	watchLineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

// watchModel is a minimal bubbletea program: it prints one line per
// event received on eventCh and exits when the stream closes.
type watchModel struct {
	runID   string
	eventCh chan model.Event
	done    bool
	lines   []string
}

type watchEventMsg model.Event
type watchClosedMsg struct{}

func (m watchModel) Init() tea.Cmd {
	return waitForEvent(m.eventCh)
}

func waitForEvent(ch chan model.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return watchClosedMsg{}
		}
		return watchEventMsg(ev)
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case watchEventMsg:
		line := fmt.Sprintf("[%s] %s %s", msg.Node, msg.Kind, msg.Message)
		m.lines = append(m.lines, line)
		if msg.Kind == model.EventRunComplete {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForEvent(m.eventCh)
	case watchClosedMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchHeaderStyle.Render(fmt.Sprintf("watching run %s", m.runID)))
	b.WriteString("\n\n")
	start := 0
	if len(m.lines) > 20 {
		start = len(m.lines) - 20
	}
	for _, l := range m.lines[start:] {
		b.WriteString(watchLineStyle.Render(l))
		b.WriteString("\n")
	}
	if m.done {
		b.WriteString("\n")
		b.WriteString(watchDoneStyle.Render("run finished, press any key to exit"))
	}
	return b.String()
}

// watchRun streams GET /runs/{id}/events as server-sent events and feeds
// them into a bubbletea program until the stream ends.
func watchRun(serverURL, runID string) error {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/runs/" + runID + "/events")
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}

	eventCh := make(chan model.Event, 64)
	go func() {
		defer resp.Body.Close()
		defer close(eventCh)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var ev model.Event
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				continue
			}
			eventCh <- ev
		}
	}()

	p := tea.NewProgram(watchModel{runID: runID, eventCh: eventCh})
	_, err = p.Run()
	return err
}
