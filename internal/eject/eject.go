// Package eject unmounts volumes through diskutil, forcing only when the
// polite request fails.
package eject

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Result reports both unmount tiers separately.
type Result struct {
	// Forced is true when the forced tier did the unmount.
	Forced    bool
	NormalErr error
	ForceErr  error
}

// OK reports whether either tier got the volume unmounted.
func (r Result) OK() bool {
	return r.NormalErr == nil || r.ForceErr == nil
}

// Ejector drives diskutil. Run is a seam: New wires the real binary, tests
// substitute a recorder.
type Ejector struct {
	Run func(args ...string) (string, error)
	Log *zap.Logger
}

// Eject unmounts the volume at path, normal tier first, forced tier on
// failure. diskutil's own words ride along in the tier errors.
func (e *Ejector) Eject(path string) Result {
	var res Result

	out, err := e.Run("unmount", path)
	if err == nil {
		return res
	}
	res.NormalErr = tierError("unmount", out, err)
	e.Log.Debug("normal unmount refused", zap.String("path", path), zap.Error(res.NormalErr))

	out, err = e.Run("unmount", "force", path)
	if err != nil {
		res.ForceErr = tierError("force unmount", out, err)
		return res
	}
	res.Forced = true
	return res
}

func tierError(tier, out string, err error) error {
	if msg := strings.TrimSpace(out); msg != "" {
		return fmt.Errorf("%s failed: %s: %w", tier, msg, err)
	}
	return fmt.Errorf("%s failed: %w", tier, err)
}
