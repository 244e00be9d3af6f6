package flow

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/getdiskfree/diskfree/internal/eject"
	"github.com/getdiskfree/diskfree/pkg/model"
)

const (
	readerLine = "Preview 841 anna 3r REG 1,18 1 1 /Volumes/USB/photo.jpg\n"
	writerLine = "TextEdit 902 anna 1w REG 1,18 1 2 /Volumes/USB/draft.txt\n"
	systemLine = "mds_stores 310 root 6u REG 1,18 1 3 /Volumes/USB/.Spotlight-V100/store.db\n"
)

type fakeCloser struct {
	outcomes map[int]model.CloseOutcome
	calls    [][]model.Blocker
}

func (f *fakeCloser) CloseAll(blockers []model.Blocker, report func(model.Blocker, model.CloseOutcome)) int {
	f.calls = append(f.calls, blockers)
	closed := 0
	for _, b := range blockers {
		if b.Origin == model.OriginSystem {
			continue
		}
		outcome := f.outcomes[b.PID]
		if outcome == "" {
			outcome = model.CloseGraceful
		}
		if outcome == model.CloseGraceful || outcome == model.CloseForced {
			closed++
		}
		if report != nil {
			report(b, outcome)
		}
	}
	return closed
}

type harness struct {
	ctrl     *Controller
	out      *bytes.Buffer
	closer   *fakeCloser
	ejected  []string
	ejectRes eject.Result
}

func newHarness(t *testing.T, volumes []string, scan string, in string) *harness {
	t.Helper()

	h := &harness{
		out:    &bytes.Buffer{},
		closer: &fakeCloser{outcomes: map[int]model.CloseOutcome{}},
	}
	h.ctrl = &Controller{
		ListVolumes: func() []string { return volumes },
		VolumePath:  func(name string) string { return "/Volumes/" + name },
		Scan:        func(string) string { return scan },
		Closer:      h.closer,
		Eject: func(path string) eject.Result {
			h.ejected = append(h.ejected, path)
			return h.ejectRes
		},
		In:  strings.NewReader(in),
		Out: h.out,
		Log: zaptest.NewLogger(t),
	}
	return h
}

func TestRunEjectsWhenNothingBlocks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, "", "")
	require.NoError(t, h.ctrl.Run("USB"))

	require.Equal(t, []string{"/Volumes/USB"}, h.ejected)
	require.Empty(t, h.closer.calls, "no blockers, nothing to close")
	require.Contains(t, h.out.String(), `Nothing is blocking "USB"`)
	require.Contains(t, h.out.String(), `Ejected "USB"`)
}

func TestRunSystemOnlyEjectsWithoutPrompt(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, systemLine, "")
	require.NoError(t, h.ctrl.Run("USB"))

	require.Equal(t, []string{"/Volumes/USB"}, h.ejected)
	require.Empty(t, h.closer.calls, "system blockers are never closed")
	require.NotContains(t, h.out.String(), "eject?", "system-only runs must not prompt")
	require.Contains(t, h.out.String(), "mds_stores")
}

func TestRunConfirmation(t *testing.T) {
	for name, tc := range map[string]struct {
		scan       string
		in         string
		wantPrompt string
		wantEject  bool
	}{
		"writers default declines": {scan: writerLine, in: "\n", wantPrompt: "[y/N]", wantEject: false},
		"writers eof declines":     {scan: writerLine, in: "", wantPrompt: "[y/N]", wantEject: false},
		"writers explicit yes":     {scan: writerLine, in: "y\n", wantPrompt: "[y/N]", wantEject: true},
		"writers spelled out yes":  {scan: writerLine, in: "YES\n", wantPrompt: "[y/N]", wantEject: true},
		"writers garbage declines": {scan: writerLine, in: "maybe\n", wantPrompt: "[y/N]", wantEject: false},
		"readers default proceeds": {scan: readerLine, in: "\n", wantPrompt: "[Y/n]", wantEject: true},
		"readers eof proceeds":     {scan: readerLine, in: "", wantPrompt: "[Y/n]", wantEject: true},
		"readers explicit no":      {scan: readerLine, in: "n\n", wantPrompt: "[Y/n]", wantEject: false},
	} {
		name := name
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, []string{"USB"}, tc.scan, tc.in)
			require.NoError(t, h.ctrl.Run("USB"), "a declined confirmation is a soft success")

			require.Contains(t, h.out.String(), tc.wantPrompt)
			if tc.wantEject {
				require.Equal(t, []string{"/Volumes/USB"}, h.ejected)
				require.Len(t, h.closer.calls, 1)
			} else {
				require.Empty(t, h.ejected)
				require.Empty(t, h.closer.calls)
				require.Contains(t, h.out.String(), `Leaving "USB" mounted`)
			}
		})
	}
}

func TestRunAssumeYesSkipsPrompt(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, writerLine, "")
	h.ctrl.AssumeYes = true
	require.NoError(t, h.ctrl.Run("USB"))

	require.Equal(t, []string{"/Volumes/USB"}, h.ejected)
	require.Len(t, h.closer.calls, 1)
	require.NotContains(t, h.out.String(), "[y/N]")
}

func TestRunExplicitTargetUnknown(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB", "Backup"}, "", "")
	err := h.ctrl.Run("Nope")

	require.ErrorIs(t, err, ErrVolumeNotFound)
	require.Empty(t, h.ejected)
	require.Contains(t, h.out.String(), "Available volumes:")
	require.Contains(t, h.out.String(), "USB")
	require.Contains(t, h.out.String(), "Backup")
}

func TestRunExplicitTargetPathForm(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, "", "")
	require.NoError(t, h.ctrl.Run("/Volumes/USB"))
	require.Equal(t, []string{"/Volumes/USB"}, h.ejected)
}

func TestRunMenuSelection(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB", "Backup"}, "", "2\n")
	require.NoError(t, h.ctrl.Run(""))

	require.Equal(t, []string{"/Volumes/Backup"}, h.ejected)
	require.Contains(t, h.out.String(), "[1] USB")
	require.Contains(t, h.out.String(), "[2] Backup")
}

func TestRunMenuInvalidSelection(t *testing.T) {
	for name, in := range map[string]string{
		"out of range": "7\n",
		"zero":         "0\n",
		"not a number": "abc\n",
	} {
		name := name
		in := in
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, []string{"USB", "Backup"}, "", in)
			err := h.ctrl.Run("")

			require.ErrorIs(t, err, ErrInvalidSelection)
			require.Empty(t, h.ejected)
		})
	}
}

func TestRunMenuEOFIsSoftAbort(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, "", "")
	require.NoError(t, h.ctrl.Run(""))
	require.Empty(t, h.ejected)
}

func TestRunNoVolumesIsSoftSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, "", "")
	require.NoError(t, h.ctrl.Run(""))
	require.Contains(t, h.out.String(), "No ejectable volumes found.")
	require.Empty(t, h.ejected)
}

func TestRunDryRunReportsOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, writerLine+systemLine, "")
	h.ctrl.DryRun = true
	require.NoError(t, h.ctrl.Run("USB"))

	require.Empty(t, h.ejected)
	require.Empty(t, h.closer.calls)
	require.Contains(t, h.out.String(), "TextEdit")
	require.Contains(t, h.out.String(), "Warning: open write handles found")
}

func TestRunDryRunCleanVolumeDoesNotEject(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, "", "")
	h.ctrl.DryRun = true
	require.NoError(t, h.ctrl.Run("USB"))
	require.Empty(t, h.ejected)
}

func TestRunJSONReport(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, writerLine+systemLine, "")
	h.ctrl.JSON = true
	require.NoError(t, h.ctrl.Run("USB"))

	var report model.Report
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &report))
	require.Equal(t, "USB", report.Volume)
	require.Equal(t, 2, report.Summary.Total)
	require.Equal(t, 1, report.Summary.UserCount)
	require.True(t, report.Summary.HasWriters)
	require.Empty(t, h.ejected, "json mode never acts")
	require.Empty(t, h.closer.calls)
}

func TestRunJSONCleanVolumeEmitsEmptyArray(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, "", "")
	h.ctrl.JSON = true
	require.NoError(t, h.ctrl.Run("USB"))

	require.Contains(t, h.out.String(), `"blockers": []`)
	require.Empty(t, h.ejected)
}

func TestRunJSONNeedsExplicitVolume(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB", "Backup"}, "", "1\n")
	h.ctrl.JSON = true
	err := h.ctrl.Run("")

	require.Error(t, err)
	require.Empty(t, h.ejected)
	require.NotContains(t, h.out.String(), "Volume number", "prompts must stay out of the json stream")
}

func TestRunEjectFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, "", "")
	h.ejectRes = eject.Result{
		NormalErr: errors.New("unmount failed: busy"),
		ForceErr:  errors.New("force unmount failed: busy"),
	}
	err := h.ctrl.Run("USB")

	require.ErrorIs(t, err, ErrEjectFailed)
	require.Contains(t, h.out.String(), `Could not eject "USB"`)
	require.Contains(t, h.out.String(), "Activity Monitor")
}

func TestRunForcedEjectReported(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, "", "")
	h.ejectRes = eject.Result{Forced: true, NormalErr: errors.New("unmount failed: busy")}
	require.NoError(t, h.ctrl.Run("USB"))
	require.Contains(t, h.out.String(), "forced unmount")
}

func TestRunSurvivorStillEjects(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"USB"}, writerLine, "y\n")
	h.closer.outcomes[902] = model.CloseSurvived
	require.NoError(t, h.ctrl.Run("USB"))

	require.Equal(t, []string{"/Volumes/USB"}, h.ejected, "eject proceeds even when a blocker survives")
	require.Contains(t, h.out.String(), "still running")
}
