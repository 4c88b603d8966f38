package logtail

import (
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// TimeFormat is the timestamp layout charmbracelet/log uses by default.
const TimeFormat = "2006/01/02 15:04:05"

var linePattern = regexp.MustCompile(`^(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}) (DEBU|INFO|WARN|ERRO|FATA) (?:([a-z][\w.-]*): )?(.*)$`)

var levelNames = map[string]log.Level{
	"DEBU": log.DebugLevel,
	"INFO": log.InfoLevel,
	"WARN": log.WarnLevel,
	"ERRO": log.ErrorLevel,
	"FATA": log.FatalLevel,
}

// Entry is one parsed log line.
type Entry struct {
	Time    time.Time
	Level   log.Level
	Prefix  string
	Message string
	Raw     string
}

// Parse splits a log line into its parts. ok is false for lines that are
// not log records.
func Parse(line string) (Entry, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Entry{Raw: line}, false
	}
	ts, err := time.ParseInLocation(TimeFormat, m[1], time.Local)
	if err != nil {
		return Entry{Raw: line}, false
	}
	return Entry{
		Time:    ts,
		Level:   levelNames[m[2]],
		Prefix:  m[3],
		Message: m[4],
		Raw:     line,
	}, true
}

// Filter keeps lines at or above minLevel whose prefix matches one of prefixes
// (all prefixes when empty). Unparsed lines follow the record before them.
func Filter(lines []string, minLevel log.Level, prefixes ...string) []string {
	keep := false
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if e, ok := Parse(line); ok {
			keep = e.Level >= minLevel && matchPrefix(e.Prefix, prefixes)
		}
		if keep {
			out = append(out, line)
		}
	}
	return out
}

func matchPrefix(prefix string, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if strings.EqualFold(prefix, w) {
			return true
		}
	}
	return false
}
