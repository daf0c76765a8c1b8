package models

import "sync/atomic"

// SubmissionState is the per-form submission state
type SubmissionState int32

const (
	StateIdle SubmissionState = iota
	StateSubmitting
)

func (s SubmissionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// Guard allows at most one in-flight submission per form.
// The zero value is idle.
type Guard struct {
	state atomic.Int32
}

// TryAcquire moves Idle to Submitting and reports whether it did
func (g *Guard) TryAcquire() bool {
	return g.state.CompareAndSwap(int32(StateIdle), int32(StateSubmitting))
}

// Release returns the guard to Idle
func (g *Guard) Release() {
	g.state.Store(int32(StateIdle))
}

// State returns the current state
func (g *Guard) State() SubmissionState {
	return SubmissionState(g.state.Load())
}

// SubmitButton is the enabled/disabled state of a form's submit control.
// The zero value is enabled.
type SubmitButton struct {
	disabled atomic.Bool
}

func (b *SubmitButton) Disabled() bool { return b.disabled.Load() }
func (b *SubmitButton) Disable()       { b.disabled.Store(true) }
func (b *SubmitButton) Enable()        { b.disabled.Store(false) }
