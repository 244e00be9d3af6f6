// Package flow sequences one eject run: resolve the target, scan it,
// report what blocks it, close user blockers on request, unmount.
package flow

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/getdiskfree/diskfree/internal/blocker"
	"github.com/getdiskfree/diskfree/internal/eject"
	"github.com/getdiskfree/diskfree/internal/output"
	"github.com/getdiskfree/diskfree/internal/volume"
	"github.com/getdiskfree/diskfree/pkg/model"
)

// The conditions that exit non-zero.
var (
	ErrVolumeNotFound   = errors.New("volume not found")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrEjectFailed      = errors.New("eject failed")
)

// Closer is the terminator seam; the kill package provides the real one.
type Closer interface {
	CloseAll(blockers []model.Blocker, report func(model.Blocker, model.CloseOutcome)) int
}

// Controller owns one run of the pipeline. Collaborators are function
// fields so the whole flow can run against fakes in tests.
type Controller struct {
	ListVolumes func() []string
	VolumePath  func(name string) string
	Scan        func(path string) string
	Closer      Closer
	Eject       func(path string) eject.Result

	In  io.Reader
	Out io.Writer
	Log *zap.Logger

	AssumeYes bool
	DryRun    bool
	JSON      bool
	Color     bool

	// Settle is the pause between closing blockers and unmounting, giving
	// the kernel time to reap the released handles.
	Settle time.Duration

	stdin *bufio.Reader
}

// Run drives one eject attempt. target may be empty (pick from a menu), a
// volume name, or a path under the mount root. JSON output requires an
// explicit target: menu prompts would share stdout with the document.
func (c *Controller) Run(target string) error {
	if c.JSON && target == "" {
		return errors.New("--json needs an explicit volume argument")
	}

	p := output.NewPrinter(c.Out)
	volumes := c.ListVolumes()

	name, err := c.resolve(target, volumes)
	if err != nil || name == "" {
		return err
	}

	path := c.VolumePath(name)
	c.Log.Debug("scanning volume", zap.String("volume", name), zap.String("path", path))

	blockers := blocker.Parse(c.Scan(path))
	report := model.Report{
		Volume:   name,
		Path:     path,
		Blockers: blockers,
		Summary:  blocker.Summarize(blockers),
	}

	if c.JSON {
		text, err := output.ToJSON(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.Out, text)
		return nil
	}

	if len(blockers) == 0 {
		p.Printf("Nothing is blocking %q.\n", name)
		if c.DryRun {
			return nil
		}
		return c.eject(name, path)
	}

	output.RenderReport(c.Out, report, c.Color)

	if c.DryRun {
		return nil
	}

	if report.Summary.UserCount == 0 {
		// System daemons drop their handles during unmount; nothing to ask.
		return c.eject(name, path)
	}

	if !c.confirm(report.Summary.HasWriters) {
		p.Printf("Leaving %q mounted.\n", name)
		return nil
	}

	closed := c.Closer.CloseAll(blockers, func(b model.Blocker, outcome model.CloseOutcome) {
		output.RenderOutcome(c.Out, b, outcome, c.Color)
	})
	c.Log.Debug("user blockers closed",
		zap.Int("closed", closed),
		zap.Int("user", report.Summary.UserCount))

	time.Sleep(c.Settle)
	return c.eject(name, path)
}

// resolve turns the command argument, or a menu answer, into a volume
// name. An empty name with a nil error means there is nothing to do.
func (c *Controller) resolve(target string, volumes []string) (string, error) {
	p := output.NewPrinter(c.Out)

	if target != "" {
		name := strings.TrimSuffix(strings.TrimPrefix(target, volume.MountRoot+"/"), "/")
		for _, v := range volumes {
			if v == name {
				return name, nil
			}
		}
		p.Printf("No ejectable volume named %q under %s.\n", name, volume.MountRoot)
		if len(volumes) > 0 {
			p.Println("Available volumes:")
			output.RenderVolumes(c.Out, volumes, c.Color)
		}
		return "", fmt.Errorf("%w: %s", ErrVolumeNotFound, name)
	}

	if len(volumes) == 0 {
		p.Println("No ejectable volumes found.")
		return "", nil
	}

	p.Println("Select a volume to eject:")
	output.RenderMenu(c.Out, volumes, c.Color)
	p.Printf("Volume number: ")

	line, ok := c.readLine()
	if !ok {
		p.Println()
		return "", nil
	}
	line = strings.TrimSpace(line)

	choice, err := strconv.Atoi(line)
	if err != nil || choice < 1 || choice > len(volumes) {
		p.Printf("Selection %q is not between 1 and %d.\n", line, len(volumes))
		return "", fmt.Errorf("%w: %q", ErrInvalidSelection, line)
	}
	return volumes[choice-1], nil
}

// confirm asks before closing anything. Writers flip the default to "no"
// so a bare enter never costs unsaved data.
func (c *Controller) confirm(hasWriters bool) bool {
	if c.AssumeYes {
		return true
	}

	p := output.NewPrinter(c.Out)
	if hasWriters {
		p.Printf("Close user processes and eject anyway? [y/N] ")
	} else {
		p.Printf("Close user processes and eject? [Y/n] ")
	}

	line, ok := c.readLine()
	if !ok {
		p.Println()
		return !hasWriters
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return !hasWriters
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (c *Controller) readLine() (string, bool) {
	if c.stdin == nil {
		c.stdin = bufio.NewReader(c.In)
	}
	line, err := c.stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSuffix(line, "\n"), true
}

func (c *Controller) eject(name, path string) error {
	p := output.NewPrinter(c.Out)

	res := c.Eject(path)
	switch {
	case res.OK() && res.Forced:
		p.Printf("Ejected %q (forced unmount).\n", name)
		return nil
	case res.OK():
		p.Printf("Ejected %q.\n", name)
		return nil
	}

	p.Printf("Could not eject %q.\n", name)
	p.Printf("  normal: %v\n", res.NormalErr)
	p.Printf("  forced: %v\n", res.ForceErr)
	p.Println("Something may still be using the volume. Check Activity Monitor or `lsof +D` and try again.")
	return fmt.Errorf("%w: %s", ErrEjectFailed, name)
}
