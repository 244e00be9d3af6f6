package output

import "io"

// SanitizingWriter escapes control bytes in everything written through it.
// The log sink wraps stderr in one so process and volume names carried in
// diagnostic fields cannot smuggle escape sequences into the terminal.
type SanitizingWriter struct {
	dst io.Writer
}

// NewSanitizingWriter wraps dst so every write passes through SanitizeTerminal.
func NewSanitizingWriter(dst io.Writer) *SanitizingWriter {
	return &SanitizingWriter{dst: dst}
}

// Write reports the caller's byte count on success. Escaping can grow the
// payload, and io.Writer forbids returning more than len(p).
func (w *SanitizingWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := io.WriteString(w.dst, SanitizeTerminal(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
