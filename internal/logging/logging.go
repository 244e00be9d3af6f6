// Package logging builds the zap logger shared by every command path.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/getdiskfree/diskfree/internal/output"
)

// New returns a console logger on stderr. Reports and prompts own stdout,
// so diagnostics stay out of anything a caller might pipe or parse. Verbose
// opens the debug level; otherwise only errors surface.
//
// Entries pass through the terminal sanitizer: process and volume names end
// up in log fields, and they are not ours to trust.
func New(verbose bool) *zap.Logger {
	level := zapcore.ErrorLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(output.NewSanitizingWriter(os.Stderr)),
		level,
	)
	return zap.New(core)
}
