//go:build darwin

package proc

import (
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Scanner asks lsof which processes hold open files under a path.
type Scanner struct {
	log *zap.Logger
}

func NewScanner(log *zap.Logger) *Scanner {
	return &Scanner{log: log}
}

// OpenFiles returns lsof's per-descriptor lines for everything open under
// path, header stripped. lsof exits non-zero when nothing matches, and it
// may be denied on other users' processes; both read as "nothing is
// blocking". +c 0 keeps command names untruncated, which the exact-match
// origin rule depends on.
func (s *Scanner) OpenFiles(path string) string {
	out, err := exec.Command("lsof", "+c", "0", "+D", path).Output()
	if err != nil {
		s.log.Debug("lsof reported nothing open", zap.String("path", path), zap.Error(err))
		return ""
	}
	return stripHeader(string(out))
}

// stripHeader drops the COMMAND header line lsof prints above its records.
func stripHeader(out string) string {
	if !strings.HasPrefix(out, "COMMAND") {
		return out
	}
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		return out[i+1:]
	}
	return ""
}
