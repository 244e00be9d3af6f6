package output

import (
	"fmt"
	"io"
)

// ansiString marks our own color codes as trusted so the Printer leaves
// them alone. Everything else string-like is escaped on the way out.
type ansiString string

// Printer writes terminal-safe text: string, []byte, error and
// fmt.Stringer arguments are sanitized before printing. Process names and
// diskutil output go through here, never straight to the terminal.
type Printer struct {
	w io.Writer
}

func NewPrinter(w io.Writer) Printer {
	return Printer{w: w}
}

func (p Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, p.escape(args)...)
}

func (p Printer) Println(args ...any) {
	fmt.Fprintln(p.w, p.escape(args)...)
}

func (p Printer) escape(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	safe := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case ansiString:
			safe[i] = string(v)
		case string:
			safe[i] = SanitizeTerminal(v)
		case []byte:
			safe[i] = SanitizeTerminal(string(v))
		case error:
			safe[i] = SanitizeTerminal(v.Error())
		case fmt.Stringer:
			safe[i] = SanitizeTerminal(v.String())
		default:
			safe[i] = arg
		}
	}
	return safe
}
