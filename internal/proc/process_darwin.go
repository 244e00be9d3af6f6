//go:build darwin

package proc

import (
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/getdiskfree/diskfree/pkg/model"
)

// ReadProcess fills the detail view for one blocker via ps.
func ReadProcess(pid int) (model.Process, error) {
	out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "pid=,ppid=,uid=,lstart=,ucomm=").Output()
	if err != nil {
		return model.Process{}, fmt.Errorf("process %d not found: %w", pid, err)
	}

	p, uid, err := parsePSLine(strings.TrimSpace(string(out)))
	if err != nil {
		return model.Process{}, err
	}
	p.User = resolveUID(uid)

	if cmdline := Cmdline(p.PID); cmdline != "" {
		p.Cmdline = cmdline
	} else {
		p.Cmdline = p.Command
	}
	return p, nil
}

// parsePSLine parses one "pid ppid uid lstart ucomm" record. lstart is
// always five fields, so the fixed columns come first and the command
// name, which may itself contain spaces, is whatever remains.
func parsePSLine(line string) (model.Process, int, error) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return model.Process{}, 0, fmt.Errorf("unexpected ps output: %q", line)
	}

	pid, _ := strconv.Atoi(fields[0])
	ppid, _ := strconv.Atoi(fields[1])
	uid, _ := strconv.Atoi(fields[2])
	started, _ := time.Parse("Mon Jan 2 15:04:05 2006", strings.Join(fields[3:8], " "))

	return model.Process{
		PID:       pid,
		PPID:      ppid,
		Command:   strings.Join(fields[8:], " "),
		StartedAt: started,
	}, uid, nil
}

// Cmdline returns the full argument list for a pid, or "" when ps fails.
func Cmdline(pid int) string {
	out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "args=").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func resolveUID(uid int) string {
	if uid == 0 {
		return "root"
	}
	if u, err := user.LookupId(strconv.Itoa(uid)); err == nil {
		return u.Username
	}
	return strconv.Itoa(uid)
}

// Ancestry walks parent pids from pid up toward launchd and returns the
// chain root first. A parent that cannot be read just ends the walk.
func Ancestry(pid int) []model.Process {
	var chain []model.Process
	seen := make(map[int]bool)

	current := pid
	for current > 0 && !seen[current] {
		seen[current] = true

		p, err := ReadProcess(current)
		if err != nil {
			break
		}
		chain = append([]model.Process{p}, chain...)

		if p.PPID == 0 || p.PID == 1 {
			break
		}
		current = p.PPID
	}
	return chain
}
