//go:build darwin

package proc

import "golang.org/x/sys/unix"

// Signals delivers termination signals and answers liveness checks. It
// satisfies the kill package's Signaler seam.
type Signals struct{}

// Terminate asks a process to exit cleanly.
func (Signals) Terminate(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

// Kill ends a process unconditionally.
func (Signals) Kill(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}

// Alive sends the null signal to a pid. EPERM still means the process
// exists, it just belongs to someone we cannot signal.
func (Signals) Alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
