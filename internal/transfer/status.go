package transfer

import "fmt"

// Phase is the display phase of a transfer.
type Phase string

const (
	PhaseStarting   Phase = "starting"
	PhaseInProgress Phase = "in_progress"
	PhaseFinishing  Phase = "finishing"
	PhasePaused     Phase = "paused"
	PhaseCancelling Phase = "cancelling"
	PhaseFailed     Phase = "failed"
)

// Status is a point-in-time snapshot of a transfer's display phase.
// Percent is only meaningful for in-progress, paused, cancelling and failed;
// the constructors below keep it zero otherwise.
//
// Status is not synchronized. It lives inside a FileEntry and is guarded by
// whatever serializes access to the Tracker.
type Status struct {
	Phase   Phase
	Percent uint8
}

func Starting() Status { return Status{Phase: PhaseStarting} }
func InProgress(percent uint8) Status { return Status{Phase: PhaseInProgress, Percent: percent} }
func Finishing() Status { return Status{Phase: PhaseFinishing} }
func Paused(percent uint8) Status { return Status{Phase: PhasePaused, Percent: percent} }
func Cancelling(percent uint8) Status { return Status{Phase: PhaseCancelling, Percent: percent} }
func Failed(percent uint8) Status { return Status{Phase: PhaseFailed, Percent: percent} }

// PercentOrZero returns the carried percent, or 0 for phases without one.
func (s Status) PercentOrZero() uint8 {
	switch s.Phase {
	case PhaseInProgress, PhasePaused, PhaseCancelling, PhaseFailed:
		return s.Percent
	default:
		return 0
	}
}

// Active reports whether the status counts toward aggregate progress.
func (s Status) Active() bool {
	return s.Phase == PhaseInProgress || s.Phase == PhasePaused
}

func (s Status) String() string {
	switch s.Phase {
	case PhaseInProgress, PhasePaused, PhaseCancelling, PhaseFailed:
		return fmt.Sprintf("%s(%d%%)", s.Phase, s.Percent)
	default:
		return string(s.Phase)
	}
}
