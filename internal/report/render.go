package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/terrylica/ralph-universal/internal/config"
	"github.com/terrylica/ralph-universal/internal/guidance"
)

// Format selects how a snapshot is written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	journalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	stateStyles = map[config.State]lipgloss.Style{
		config.StateRunning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
		config.StateDraining: lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
		config.StateStopped:  lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")),
	}
	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
)

// Write renders s to w in the requested format.
func Write(w io.Writer, s Snapshot, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		_, err := fmt.Fprintln(w, Render(s))
		return err
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// Render draws s as a bordered terminal panel.
func Render(s Snapshot) string {
	state := string(s.State)
	if style, ok := stateStyles[s.State]; ok {
		state = style.Render(state)
	}
	if s.Stale {
		state += " " + alertStyle.Render("(stale)")
	}

	rows := [][2]string{
		{"state", state},
		{"project", s.ProjectDir},
		{"config", fmt.Sprintf("%s (%s)", s.ConfigPath, s.Source)},
		{"limits", s.Bounds.String()},
	}
	if s.ConfigError != "" {
		rows = append(rows, [2]string{"config error", alertStyle.Render(s.ConfigError)})
	}
	if s.KillSwitch {
		rows = append(rows, [2]string{"kill switch", alertStyle.Render("present")})
	}
	if s.SessionID != "" {
		rows = append(rows, [2]string{"session", s.SessionID})
	}
	rows = append(rows, [2]string{"iteration", fmt.Sprintf("%d of %d-%d", s.Iteration, s.Bounds.MinIterations, s.Bounds.MaxIterations)})
	if s.State != config.StateStopped {
		rows = append(rows,
			[2]string{"elapsed", (time.Duration(s.ElapsedSeconds) * time.Second).String()},
			[2]string{"last activity", (time.Duration(s.SecondsSinceLastInvocation) * time.Second).String() + " ago"},
		)
	}
	if s.LastVerdict != "" {
		rows = append(rows, [2]string{"last verdict", s.LastVerdict})
	}
	if s.StopReason != "" {
		rows = append(rows, [2]string{"stop reason", s.StopReason})
	}
	if s.TargetFile != "" {
		rows = append(rows, [2]string{"target", s.TargetFile})
	}
	if s.TaskPrompt != "" {
		rows = append(rows, [2]string{"task", s.TaskPrompt})
	}
	if last := s.LastSession; last != nil {
		rows = append(rows, [2]string{"last session", fmt.Sprintf("%s stopped %s after %d iterations: %s",
			last.ID, last.StoppedAt.Format(time.RFC3339), last.Iterations, last.Reason)})
	}

	width := 0
	for _, row := range rows {
		if len(row[0]) > width {
			width = len(row[0])
		}
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		label := labelStyle.Render(fmt.Sprintf("%-*s", width, row[0]))
		lines = append(lines, label+"  "+valueStyle.Render(row[1]))
	}

	sections := []string{titleStyle.Render("RALPH LOOP"), strings.Join(lines, "\n")}
	sections = append(sections, renderList("forbidden", s.Forbidden), renderList("encouraged", s.Encouraged))
	if len(s.Journal) > 0 {
		head := titleStyle.Render(fmt.Sprintf("JOURNAL · last %d of %d", len(s.Journal), s.JournalTotal))
		sections = append(sections, head+"\n"+journalStyle.Render(strings.Join(s.Journal, "\n")))
	}
	return boxStyle.Render(strings.Join(sections, "\n\n"))
}

func renderList(title string, items []string) string {
	head := titleStyle.Render(strings.ToUpper(title))
	if len(items) == 0 {
		return head + "\n" + labelStyle.Render("(none)")
	}
	lines := make([]string, 0, len(items))
	for _, item := range guidance.Latest(items) {
		lines = append(lines, valueStyle.Render("• "+item))
	}
	return head + "\n" + strings.Join(lines, "\n")
}
