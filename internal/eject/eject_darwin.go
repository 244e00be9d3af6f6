//go:build darwin

package eject

import (
	"os/exec"

	"go.uber.org/zap"
)

// New returns an Ejector backed by the system diskutil.
func New(log *zap.Logger) *Ejector {
	return &Ejector{Run: diskutil, Log: log}
}

func diskutil(args ...string) (string, error) {
	out, err := exec.Command("diskutil", args...).CombinedOutput()
	return string(out), err
}
