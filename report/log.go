// Package report collects informational messages, warnings, and errors
// produced while building or simplifying an ILP. Every orchestrator
// operation returns a Log; callers should check ContainsErrors before
// trusting the emitted constraints or flow facts.
package report

import (
	"bytes"

	"github.com/google/uuid"
)

// Severity classifies a LogEntry. An Error indicates the result may be
// incomplete (e.g. a flow fact was skipped); a Fatal indicates the
// operation could not be completed at all.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Entry is one message logged during an analysis run, optionally tagged
// with the scope (function/block/constraint name) it pertains to.
type Entry struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Scope    string   `json:"scope,omitempty" yaml:"scope,omitempty"`
}

func (e Entry) String() string {
	var buf bytes.Buffer
	switch e.Severity {
	case Info:
		// no prefix
	case Warning:
		buf.WriteString("warning: ")
	case Error:
		buf.WriteString("error: ")
	case Fatal:
		buf.WriteString("FATAL: ")
	}
	if e.Scope != "" {
		buf.WriteString(e.Scope)
		buf.WriteString(": ")
	}
	buf.WriteString(e.Message)
	return buf.String()
}

// Log accumulates Entries for one analysis run. The zero value is not
// usable; construct with New.
type Log struct {
	// RunID tags every Log with a fresh identifier, so a TimingEntry or
	// dumped ILP can be traced back to the run that produced it across
	// separately-stored artifacts.
	RunID   string  `json:"run_id" yaml:"run_id"`
	Entries []Entry `json:"entries" yaml:"entries"`
	stats   map[string]int
}

// New returns an empty Log tagged with a fresh random run ID.
func New() *Log {
	return &Log{RunID: uuid.NewString(), Entries: []Entry{}, stats: make(map[string]int)}
}

// Log appends a message at the given severity.
func (l *Log) Log(severity Severity, message string) {
	l.Entries = append(l.Entries, Entry{Severity: severity, Message: message})
}

// Logf appends a message scoped to a program point or constraint name.
func (l *Log) Logf(severity Severity, scope, message string) {
	l.Entries = append(l.Entries, Entry{Severity: severity, Message: message, Scope: scope})
}

// Count increments a named skip-statistic (UnresolvedIndirectCall,
// SymbolicBoundUntranslatable, MissingRelationGraph, ...). Statistics are
// folded into the log as Info entries by Summarize.
func (l *Log) Count(stat string) {
	if l.stats == nil {
		l.stats = make(map[string]int)
	}
	l.stats[stat]++
}

// Stat returns the current count for a named statistic.
func (l *Log) Stat(stat string) int {
	return l.stats[stat]
}

// Summarize appends one Info entry per non-zero statistic, in a
// deterministic order suitable for display.
func (l *Log) Summarize() {
	for _, name := range sortedKeys(l.stats) {
		n := l.stats[name]
		if n == 0 {
			continue
		}
		l.Log(Info, statMessage(name, n))
	}
}

func statMessage(name string, n int) string {
	return name + ": " + itoa(n)
}

// ContainsErrors reports whether the log has at least one Error or Fatal
// entry.
func (l *Log) ContainsErrors() bool {
	return l.contains(func(e Entry) bool { return e.Severity >= Error })
}

// ContainsFatal reports whether the log has at least one Fatal entry.
func (l *Log) ContainsFatal() bool {
	return l.contains(func(e Entry) bool { return e.Severity == Fatal })
}

func (l *Log) contains(pred func(Entry) bool) bool {
	for _, e := range l.Entries {
		if pred(e) {
			return true
		}
	}
	return false
}

func (l *Log) String() string {
	var buf bytes.Buffer
	for _, e := range l.Entries {
		buf.WriteString(e.String())
		buf.WriteString("\n")
	}
	return buf.String()
}

// Merge appends other's entries and stats onto l.
func (l *Log) Merge(other *Log) {
	if other == nil {
		return
	}
	l.Entries = append(l.Entries, other.Entries...)
	for k, v := range other.stats {
		if l.stats == nil {
			l.stats = make(map[string]int)
		}
		l.stats[k] += v
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// simple insertion sort: stat sets are tiny (a handful of names)
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
