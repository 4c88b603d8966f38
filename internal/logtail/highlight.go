package logtail

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	prefixStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87AFFF"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))

	levelStyles = map[log.Level]lipgloss.Style{
		log.DebugLevel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#87CEEB")),
		log.InfoLevel:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FD75F")),
		log.WarnLevel:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700")),
		log.ErrorLevel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		log.FatalLevel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5FAF")),
	}
)

// Highlight colors the timestamp, level and prefix of a log line.
// Lines that do not parse are dimmed.
func Highlight(line string) string {
	e, ok := Parse(line)
	if !ok {
		if strings.TrimSpace(line) == "" {
			return line
		}
		return detailStyle.Render(line)
	}

	var b strings.Builder
	b.WriteString(timeStyle.Render(e.Time.Format(TimeFormat)))
	b.WriteByte(' ')
	b.WriteString(levelStyles[e.Level].Render(levelLabel(e.Level)))
	b.WriteByte(' ')
	if e.Prefix != "" {
		b.WriteString(prefixStyle.Render(e.Prefix + ":"))
		b.WriteByte(' ')
	}
	b.WriteString(e.Message)
	return b.String()
}

// HighlightLines applies Highlight to every line.
func HighlightLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = Highlight(line)
	}
	return out
}

func levelLabel(l log.Level) string {
	for name, lvl := range levelNames {
		if lvl == l {
			return name
		}
	}
	return strings.ToUpper(l.String())
}
