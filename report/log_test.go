package report

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogSeverityAndMerge(t *testing.T) {
	l := New()
	require.NotEmpty(t, l.RunID)
	require.False(t, l.ContainsErrors())

	l.Log(Info, "building model")
	l.Logf(Warning, "f/entry", "block has no instructions")
	require.False(t, l.ContainsErrors())
	require.False(t, l.ContainsFatal())

	other := New()
	other.Logf(Error, "g/exit", "unresolved indirect call")
	other.Count("UnresolvedIndirectCall")

	l.Merge(other)
	require.True(t, l.ContainsErrors())
	require.False(t, l.ContainsFatal())
	require.Equal(t, 1, l.Stat("UnresolvedIndirectCall"))
}

func TestLogSummarizeOrdersStatsDeterministically(t *testing.T) {
	l := New()
	l.Count("MissingRelationGraph")
	l.Count("MissingRelationGraph")
	l.Count("SymbolicBoundUntranslatable")

	l.Summarize()
	require.Len(t, l.Entries, 2)
	require.Equal(t, "MissingRelationGraph: 2", l.Entries[0].Message)
	require.Equal(t, "SymbolicBoundUntranslatable: 1", l.Entries[1].Message)
}

func TestEntryStringFormatsBySeverity(t *testing.T) {
	e := Entry{Severity: Fatal, Scope: "f/entry", Message: "could not build model"}
	require.Equal(t, "FATAL: f/entry: could not build model", e.String())

	plain := Entry{Severity: Info, Message: "copy: echoed 2 flow fact(s)"}
	require.Equal(t, "copy: echoed 2 flow fact(s)", plain.String())
}
