package model

// AccessMode describes how a blocker holds its file handle.
type AccessMode string

const (
	AccessRead  AccessMode = "read"
	AccessWrite AccessMode = "write"
)

// Origin separates OS services from user-launched processes. System
// blockers release their handles during unmount and are never signaled.
type Origin string

const (
	OriginSystem Origin = "system"
	OriginUser   Origin = "user"
)

// Blocker is one process holding an open handle under the target volume.
// One record per pid; the first descriptor seen decides the access mode.
type Blocker struct {
	Name   string     `json:"name"`
	PID    int        `json:"pid"`
	Mode   AccessMode `json:"mode"`
	Origin Origin     `json:"origin"`
}

// Summary aggregates one scan's records. It is derived from the Blocker
// slice and recomputed fresh on every run.
type Summary struct {
	Total       int  `json:"total"`
	UserCount   int  `json:"userCount"`
	SystemCount int  `json:"systemCount"`
	HasWriters  bool `json:"hasWriters"`
}

// Report is the result of scanning one volume.
type Report struct {
	Volume   string    `json:"volume"`
	Path     string    `json:"path"`
	Blockers []Blocker `json:"blockers"`
	Summary  Summary   `json:"summary"`
}

// CloseOutcome is the terminal state of one blocker-termination attempt.
type CloseOutcome string

const (
	// CloseGraceful: the process exited within the grace window.
	CloseGraceful CloseOutcome = "closed"
	// CloseForced: the process ignored the graceful signal and was killed.
	CloseForced CloseOutcome = "force closed"
	// CloseSignalFailed: the graceful signal could not be delivered.
	CloseSignalFailed CloseOutcome = "signal failed"
	// CloseSurvived: the process outlived both signals.
	CloseSurvived CloseOutcome = "still running"
)
