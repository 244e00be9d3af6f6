package model

import "time"

// Process holds the details shown when inspecting a blocker.
type Process struct {
	PID       int
	PPID      int
	Command   string
	Cmdline   string
	User      string
	StartedAt time.Time
}
