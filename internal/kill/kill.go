// Package kill closes user-owned blockers, gently first.
package kill

import (
	"time"

	"go.uber.org/zap"

	"github.com/getdiskfree/diskfree/pkg/model"
)

// Signaler is the signal surface the killer drives. The darwin
// implementation lives in the proc package; tests plug in fakes.
type Signaler interface {
	Terminate(pid int) error
	Kill(pid int) error
	Alive(pid int) bool
}

// Killer escalates from graceful to forced termination. The polling knobs
// are fields so tests can shrink the clock; New sets the real timings.
type Killer struct {
	Sig          Signaler
	Log          *zap.Logger
	GracePolls   int
	PollInterval time.Duration
	Settle       time.Duration
}

// New returns a Killer with the production escalation schedule: five
// one-second liveness polls after SIGTERM, then SIGKILL, then one second
// to settle before the final check.
func New(sig Signaler, log *zap.Logger) *Killer {
	return &Killer{
		Sig:          sig,
		Log:          log,
		GracePolls:   5,
		PollInterval: time.Second,
		Settle:       time.Second,
	}
}

// CloseAll walks the records, skips system processes, and tries to close
// every user process. Each record's outcome goes to report. One process
// failing never stops the iteration; the return value is how many
// processes are gone afterwards.
func (k *Killer) CloseAll(blockers []model.Blocker, report func(model.Blocker, model.CloseOutcome)) int {
	closed := 0
	for _, b := range blockers {
		if b.Origin == model.OriginSystem {
			continue
		}

		outcome := k.close(b.PID)
		if outcome == model.CloseGraceful || outcome == model.CloseForced {
			closed++
		}
		if report != nil {
			report(b, outcome)
		}
	}
	return closed
}

func (k *Killer) close(pid int) model.CloseOutcome {
	if err := k.Sig.Terminate(pid); err != nil {
		k.Log.Debug("terminate signal not delivered", zap.Int("pid", pid), zap.Error(err))
		return model.CloseSignalFailed
	}

	for range k.GracePolls {
		time.Sleep(k.PollInterval)
		if !k.Sig.Alive(pid) {
			return model.CloseGraceful
		}
	}

	if err := k.Sig.Kill(pid); err != nil {
		k.Log.Debug("kill signal not delivered", zap.Int("pid", pid), zap.Error(err))
	}
	time.Sleep(k.Settle)

	if k.Sig.Alive(pid) {
		return model.CloseSurvived
	}
	return model.CloseForced
}
