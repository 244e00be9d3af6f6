// Package blocker turns raw lsof output into classified records.
package blocker

import (
	"strconv"
	"strings"

	"github.com/getdiskfree/diskfree/pkg/model"
)

// systemProcesses are macOS services that hold transient handles on every
// mounted volume and drop them during unmount. Matching is exact and
// case-sensitive: "mds" is Spotlight's metadata server, anything else
// spelled differently is not.
var systemProcesses = map[string]bool{
	"mds":                true,
	"mds_stores":         true,
	"mdworker":           true,
	"mdworker_shared":    true,
	"mdbulkimport":       true,
	"Spotlight":          true,
	"fseventsd":          true,
	"quicklookd":         true,
	"QuickLookUIService": true,
	"Finder":             true,
}

// Parse reads one blocker per distinct pid out of raw scanner output. Each
// line describes one open descriptor; the whitespace fields are command,
// pid, user and fd. A process with several descriptors keeps its first
// line only, so whichever descriptor lsof printed first decides the access
// mode. Lines that do not carry at least those four fields, or whose pid
// is not a positive number, are skipped.
func Parse(raw string) []model.Blocker {
	var blockers []model.Blocker
	seen := make(map[int]bool)

	for line := range strings.Lines(raw) {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil || pid <= 0 {
			continue
		}
		if seen[pid] {
			continue
		}
		seen[pid] = true

		blockers = append(blockers, model.Blocker{
			Name:   fields[0],
			PID:    pid,
			Mode:   modeOf(fields[3]),
			Origin: originOf(fields[0]),
		})
	}
	return blockers
}

// modeOf classifies a descriptor token such as "3r", "1w" or "6u". Write
// and read-write descriptors mark the blocker as a writer; everything else
// reads.
func modeOf(fd string) model.AccessMode {
	if strings.ContainsAny(fd, "uw") {
		return model.AccessWrite
	}
	return model.AccessRead
}

func originOf(name string) model.Origin {
	if systemProcesses[name] {
		return model.OriginSystem
	}
	return model.OriginUser
}

// Summarize derives the aggregates the decision logic runs on.
func Summarize(blockers []model.Blocker) model.Summary {
	s := model.Summary{Total: len(blockers)}
	for _, b := range blockers {
		if b.Origin == model.OriginSystem {
			s.SystemCount++
		} else {
			s.UserCount++
		}
		if b.Mode == model.AccessWrite {
			s.HasWriters = true
		}
	}
	return s
}
