//go:build darwin

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/getdiskfree/diskfree/internal/eject"
	"github.com/getdiskfree/diskfree/internal/flow"
	"github.com/getdiskfree/diskfree/internal/kill"
	"github.com/getdiskfree/diskfree/internal/logging"
	"github.com/getdiskfree/diskfree/internal/output"
	"github.com/getdiskfree/diskfree/internal/proc"
	"github.com/getdiskfree/diskfree/internal/tui"
	"github.com/getdiskfree/diskfree/internal/volume"
)

// Injected at release time:
// go build -ldflags "-X main.version=v0.1.0 -X main.commit=$(git rev-parse --short HEAD) -X 'main.date=$(date +%Y-%m-%d)'" ./cmd/diskfree
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	interactive bool
	listOnly    bool
	dryRun      bool
	jsonOut     bool
	assumeYes   bool
	noColor     bool
	verbose     bool

	rootCmd = &cobra.Command{
		Use:   "diskfree [volume]",
		Short: "Eject busy removable volumes without yanking the cable",
		Long: `diskfree finds the processes keeping a volume under ` + volume.MountRoot + `
busy, closes the ones that belong to you, and unmounts it.

With no argument it offers a menu of ejectable volumes. The argument may
be a volume name or its full mount path.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		RunE:          run,
	}
)

func init() {
	rootCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse volumes and blockers in a TUI")
	rootCmd.Flags().BoolVar(&listOnly, "list", false, "list ejectable volumes and exit")
	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report blockers without closing or ejecting anything")
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "print the blocker report as JSON (implies --dry-run; needs a volume argument)")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colorized output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
}

func run(cmd *cobra.Command, args []string) error {
	log := logging.New(verbose)

	if listOnly {
		output.RenderVolumes(os.Stdout, volume.List(), colorEnabled())
		return nil
	}

	if interactive {
		if len(args) > 0 {
			return errors.New("--interactive takes no volume argument")
		}
		return tui.Run(log)
	}

	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	ctrl := &flow.Controller{
		ListVolumes: volume.List,
		VolumePath:  volume.Path,
		Scan:        proc.NewScanner(log).OpenFiles,
		Closer:      kill.New(proc.Signals{}, log),
		Eject:       eject.New(log).Eject,
		In:          os.Stdin,
		Out:         os.Stdout,
		Log:         log,
		AssumeYes:   assumeYes,
		DryRun:      dryRun || jsonOut,
		JSON:        jsonOut,
		Color:       colorEnabled(),
		Settle:      time.Second,
	}
	return ctrl.Run(target)
}

func colorEnabled() bool {
	return !noColor && isatty.IsTerminal(os.Stdout.Fd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
