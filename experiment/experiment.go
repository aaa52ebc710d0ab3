// Package experiment implements the two-state controller (IDLE/RUN) driven
// by heartbeat control frames, built on the scheduler's Recurring/Evented
// registries and dispatched through a min.FrameRegistry at id 1.
package experiment

import (
	"riglink-core/min"
	"riglink-core/sched"
)

// State is one of the two Experiment states.
type State int

const (
	StateIdle State = iota
	StateRun
)

func (s State) String() string {
	if s == StateRun {
		return "RUN"
	}
	return "IDLE"
}

// ControlFrameID is the MIN frame id reserved for experiment control.
const ControlFrameID uint8 = 1

const (
	bitAlive     byte = 1 << 0
	bitHeartbeat byte = 1 << 1
)

// Experiment holds the IDLE/RUN state, the latched alive request, the
// heartbeat deadline, and the registries driven by its per-tick algorithm.
type Experiment struct {
	state          State
	aliveRequested bool

	timeoutMs sched.Tick // 0 disables the heartbeat
	deadline  sched.Tick

	elapsed sched.Tick

	Init    sched.EventedRegistry
	Stop    sched.EventedRegistry
	Timeout sched.EventedRegistry
	Run     sched.RecurringRegistry
	Idle    sched.RecurringRegistry

	runner sched.Scheduler
}

// New returns an Experiment starting in IDLE with heartbeats disabled.
func New() *Experiment { return &Experiment{state: StateIdle} }

// State reports the current state.
func (e *Experiment) State() State { return e.state }

// Elapsed reports time since the last IDLE->RUN transition.
func (e *Experiment) Elapsed() sched.Tick { return e.elapsed }

// EnableHeartbeat sets the heartbeat timeout; zero disables it.
func (e *Experiment) EnableHeartbeat(timeoutMs sched.Tick) { e.timeoutMs = timeoutMs }

// HandleControl applies a decoded control-frame byte at time now.
//
//   - heartbeat=1: if heartbeats are enabled, reset the deadline.
//   - heartbeat=0, alive=1: request RUN.
//   - heartbeat=0, alive=0: request IDLE.
func (e *Experiment) HandleControl(now sched.Tick, b byte) {
	if b&bitHeartbeat != 0 {
		if e.timeoutMs > 0 {
			e.deadline = now + e.timeoutMs
		}
		return
	}
	e.aliveRequested = b&bitAlive != 0
}

// Handler returns a min.Handler that unpacks the control byte and applies
// it via HandleControl, registrable directly on a min.FrameRegistry at
// ControlFrameID. now is evaluated at dispatch time.
func (e *Experiment) Handler(now func() sched.Tick) min.Handler {
	return func(f *min.Frame) {
		e.HandleControl(now(), f.UnpackU8())
	}
}

// Tick runs the five-step per-kernel-tick algorithm: recompute state from
// the alive flag, fire INIT/STOP on a transition, schedule the active
// recurring registry, check the heartbeat deadline while RUN, and advance
// elapsed time by dt.
func (e *Experiment) Tick(now, dt sched.Tick) {
	newState := StateIdle
	if e.aliveRequested {
		newState = StateRun
	}

	if newState != e.state {
		if newState == StateRun {
			e.elapsed = 0
			e.runner.Schedule(now, &e.Init)
		} else {
			e.runner.Schedule(now, &e.Stop)
		}
		e.state = newState
	}

	switch e.state {
	case StateRun:
		e.runner.Schedule(now, &e.Run)
		if e.timeoutMs > 0 && now > e.deadline {
			e.runner.Schedule(now, &e.Timeout)
			e.aliveRequested = false
		}
	case StateIdle:
		e.runner.Schedule(now, &e.Idle)
	}

	e.runner.Run()
	e.elapsed += dt
}
