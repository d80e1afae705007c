package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// WriteColored writes l's entries to w, one per line, colorizing by
// severity when standard output is a terminal (fatih/color checks
// os.Stdout, not w, and falls back to plain text otherwise, e.g. when
// output is piped to a file). Info entries are written uncolored.
func (l *Log) WriteColored(w io.Writer) {
	warn := color.New(color.FgYellow)
	errc := color.New(color.FgRed)
	fatal := color.New(color.FgRed, color.Bold)

	for _, e := range l.Entries {
		switch e.Severity {
		case Warning:
			warn.Fprintln(w, e.String())
		case Error:
			errc.Fprintln(w, e.String())
		case Fatal:
			fatal.Fprintln(w, e.String())
		default:
			fmt.Fprintln(w, e.String())
		}
	}
}
