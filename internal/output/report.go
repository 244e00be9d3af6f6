package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/getdiskfree/diskfree/pkg/model"
)

var (
	colorReset  = ansiString("\033[0m")
	colorRed    = ansiString("\033[31m")
	colorGreen  = ansiString("\033[32m")
	colorYellow = ansiString("\033[33m")
	colorCyan   = ansiString("\033[36m")
	colorDim    = ansiString("\033[2m")
)

// RenderReport prints one line per blocker, the aggregate counts, and a
// data-loss warning when anything holds a write handle.
func RenderReport(w io.Writer, r model.Report, colorEnabled bool) {
	p := NewPrinter(w)

	p.Printf("Processes blocking %q:\n", r.Volume)
	for _, b := range r.Blockers {
		if !colorEnabled {
			p.Printf("  %-24s %6d  %-5s %s\n", b.Name, b.PID, string(b.Mode), string(b.Origin))
			continue
		}
		modeColor := colorGreen
		if b.Mode == model.AccessWrite {
			modeColor = colorYellow
		}
		originColor := colorCyan
		if b.Origin == model.OriginSystem {
			originColor = colorDim
		}
		p.Printf("  %-24s %s%6d%s  %s%-5s%s %s%s%s\n",
			b.Name, colorDim, b.PID, colorReset,
			modeColor, string(b.Mode), colorReset,
			originColor, string(b.Origin), colorReset)
	}

	s := r.Summary
	p.Printf("%d blocking process(es): %d user, %d system\n", s.Total, s.UserCount, s.SystemCount)
	if s.HasWriters {
		if colorEnabled {
			p.Printf("%sWarning:%s open write handles found; ejecting now can lose data\n", colorRed, colorReset)
		} else {
			p.Printf("Warning: open write handles found; ejecting now can lose data\n")
		}
	}
}

// RenderOutcome prints one process-termination result line.
func RenderOutcome(w io.Writer, b model.Blocker, outcome model.CloseOutcome, colorEnabled bool) {
	p := NewPrinter(w)

	if !colorEnabled {
		p.Printf("  %s (pid %d): %s\n", b.Name, b.PID, string(outcome))
		return
	}
	color := colorGreen
	switch outcome {
	case model.CloseForced:
		color = colorYellow
	case model.CloseSignalFailed, model.CloseSurvived:
		color = colorRed
	}
	p.Printf("  %s (pid %d): %s%s%s\n", b.Name, b.PID, color, string(outcome), colorReset)
}

// RenderVolumes lists ejectable volume names, one per line.
func RenderVolumes(w io.Writer, names []string, colorEnabled bool) {
	p := NewPrinter(w)
	if len(names) == 0 {
		p.Println("No ejectable volumes found.")
		return
	}
	for _, name := range names {
		if colorEnabled {
			p.Printf("  %s%s%s\n", colorCyan, name, colorReset)
		} else {
			p.Printf("  %s\n", name)
		}
	}
}

// RenderMenu prints the numbered selection list for interactive runs.
func RenderMenu(w io.Writer, names []string, colorEnabled bool) {
	p := NewPrinter(w)
	for i, name := range names {
		if colorEnabled {
			p.Printf("  %s[%d]%s %s\n", colorDim, i+1, colorReset, name)
		} else {
			p.Printf("  [%d] %s\n", i+1, name)
		}
	}
}

// ToJSON renders the report for scripts. Control characters survive here;
// encoding/json escapes them itself.
func ToJSON(r model.Report) (string, error) {
	if r.Blockers == nil {
		// A clean volume still encodes as "blockers": [], never null.
		r.Blockers = []model.Blocker{}
	}
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return string(out), nil
}
