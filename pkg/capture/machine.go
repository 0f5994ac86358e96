// Package capture sequences a still capture: autofocus lock, optional
// auto-exposure precapture, then the final capture.
//
// The Machine is driven by the 3A state streamed back in results. It does
// not submit anything itself; Process returns an Action telling the owner
// what to submit next. A Machine is not safe for concurrent use and is
// meant to be confined to the owner's callback queue.
package capture

import (
	"fmt"

	"github.com/teslashibe/go-cameraview/pkg/hardware"
)

// State is the capture sequencing state.
type State int

const (
	// StateIdle means continuous preview is running.
	StateIdle State = iota
	// StateLocking waits for the autofocus lock triggered by the owner.
	StateLocking
	// StateLocked means focus locked but exposure needs a precapture run.
	StateLocked
	// StatePrecapture waits for the precapture sequence to start.
	StatePrecapture
	// StateWaitingForExposure waits for the precapture sequence to end.
	StateWaitingForExposure
	// StateCapturing means the still request was (or is about to be)
	// submitted.
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocking:
		return "locking"
	case StateLocked:
		return "locked"
	case StatePrecapture:
		return "precapture"
	case StateWaitingForExposure:
		return "waiting_for_exposure"
	case StateCapturing:
		return "capturing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Action is what the owner must do after a result was processed.
type Action int

const (
	ActionNone Action = iota
	// ActionCapture means the sequence is ready: submit the still request.
	ActionCapture
	// ActionPrecapture means exposure must be metered first: run the
	// precapture sequence and call BeginPrecapture.
	ActionPrecapture
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionCapture:
		return "capture"
	case ActionPrecapture:
		return "precapture"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Machine is the capture state machine. The zero value is Idle.
type Machine struct {
	state State

	// OnTransition, when set, is called after every state change.
	OnTransition func(from, to State)
}

// New returns an Idle machine.
func New() *Machine {
	return &Machine{}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Busy reports whether a capture sequence is in progress.
func (m *Machine) Busy() bool { return m.state != StateIdle }

// BeginLocking enters Locking. The owner submits the AF trigger.
func (m *Machine) BeginLocking() { m.set(StateLocking) }

// BeginPrecapture enters Precapture. The owner submits the precapture
// trigger.
func (m *Machine) BeginPrecapture() { m.set(StatePrecapture) }

// BeginCapture enters Capturing. Used directly when autofocus is off.
func (m *Machine) BeginCapture() { m.set(StateCapturing) }

// Reset returns to Idle.
func (m *Machine) Reset() { m.set(StateIdle) }

// Process consumes one partial or total result.
//
// A missing AF state never completes the lock; a missing AE state always
// satisfies the exposure checks.
func (m *Machine) Process(r hardware.Result) Action {
	switch m.state {
	case StateLocking:
		if r.AFState == nil {
			return ActionNone
		}
		af := *r.AFState
		if af != hardware.AFStateFocusedLocked && af != hardware.AFStateNotFocusedLocked {
			return ActionNone
		}
		if r.AEState == nil || *r.AEState == hardware.AEStateConverged {
			m.set(StateCapturing)
			return ActionCapture
		}
		m.set(StateLocked)
		return ActionPrecapture

	case StatePrecapture:
		if r.AEState == nil {
			m.set(StateWaitingForExposure)
			return ActionNone
		}
		switch *r.AEState {
		case hardware.AEStatePrecapture, hardware.AEStateFlashRequired, hardware.AEStateConverged:
			m.set(StateWaitingForExposure)
		}
		return ActionNone

	case StateWaitingForExposure:
		if r.AEState == nil || *r.AEState != hardware.AEStatePrecapture {
			m.set(StateCapturing)
			return ActionCapture
		}
	}
	return ActionNone
}

func (m *Machine) set(s State) {
	from := m.state
	m.state = s
	if from != s && m.OnTransition != nil {
		m.OnTransition(from, s)
	}
}
