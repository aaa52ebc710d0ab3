// Package reqqueue implements the generic asynchronous request-queue
// engine reused by every peripheral bus: one bounded queue of pending
// requests, a single in-flight slot, and an optional per-request deadline.
package reqqueue

import (
	"riglink-core/container/queue"
	"riglink-core/errcode"
	"riglink-core/sched"
)

// Request carries everything the engine needs to run one transfer and
// notify its owner on completion.
type Request[D any] struct {
	Device D
	Data   []byte

	// Start is invoked once the engine hands this request to the
	// hardware. Implementations return an error to abort the transfer
	// immediately (treated the same as a later Error callback).
	Start func(req *Request[D]) error

	// Callback fires exactly once per request: err is nil on success,
	// an errcode.Code (or any error) otherwise. It never fires twice.
	Callback func(req *Request[D], err error)

	// DeadlineMs is added to the tick the request starts at, producing
	// the monotonic deadline. Zero disables the deadline.
	DeadlineMs sched.Tick

	deadline sched.Tick
	started  bool
}

// Engine is the generic single-flight, timeout-bounded, in-order
// asynchronous dispatcher. D is the device identity type (e.g. a *Device
// pointer or small struct); requests from one D value always complete in
// the order they were pushed.
type Engine[D any] struct {
	pending  queue.Queue[Request[D]]
	inFlight *Request[D]
}

// New returns an Engine whose pending queue holds up to capacity requests.
func New[D any](capacity int) *Engine[D] {
	return &Engine[D]{pending: queue.New[Request[D]](capacity)}
}

// Push enqueues req, starting it immediately if nothing is in flight.
// Pushing into a full queue is a programming error, matching the Queue
// contract it is built on.
func (e *Engine[D]) Push(now sched.Tick, req Request[D]) {
	e.pending.Push(req)
	e.pump(now)
}

// TryPush enqueues req unless the queue is full, in which case it is
// silently dropped, reporting whether it was accepted.
func (e *Engine[D]) TryPush(now sched.Tick, req Request[D]) bool {
	if e.pending.Full() {
		return false
	}
	e.pending.Push(req)
	e.pump(now)
	return true
}

// pump starts the next queued request if nothing is currently in flight.
func (e *Engine[D]) pump(now sched.Tick) {
	if e.inFlight != nil || e.pending.Empty() {
		return
	}
	req := e.pending.Pop()
	e.inFlight = &req
	e.inFlight.started = true
	if e.inFlight.DeadlineMs > 0 {
		e.inFlight.deadline = now + e.inFlight.DeadlineMs
	}
	if req.Start != nil {
		if err := req.Start(e.inFlight); err != nil {
			e.abort(now, err)
		}
	}
}

// Complete finishes the in-flight request successfully: the callback
// fires with a nil error, the deadline clears, and the next queued
// request starts.
func (e *Engine[D]) Complete(now sched.Tick) {
	if e.inFlight == nil {
		return
	}
	req := e.inFlight
	e.inFlight = nil
	if req.Callback != nil {
		req.Callback(req, nil)
	}
	e.pump(now)
}

// Error aborts the in-flight request: no success callback fires, the
// device receives err via Callback, and the next queued request starts.
func (e *Engine[D]) Error(now sched.Tick, err error) {
	e.abort(now, err)
}

func (e *Engine[D]) abort(now sched.Tick, err error) {
	if e.inFlight == nil {
		return
	}
	req := e.inFlight
	e.inFlight = nil
	if req.Callback != nil {
		req.Callback(req, err)
	}
	e.pump(now)
}

// CheckDeadline aborts the in-flight request with errcode.Timeout if now
// has passed its deadline. A zero deadline never expires.
func (e *Engine[D]) CheckDeadline(now sched.Tick) {
	if e.inFlight == nil || e.inFlight.deadline == 0 {
		return
	}
	if now > e.inFlight.deadline {
		e.abort(now, errcode.Timeout)
	}
}

// Pending reports how many requests are queued (not counting the one in
// flight, if any).
func (e *Engine[D]) Pending() int { return e.pending.Size() }

// Busy reports whether a request is currently in flight.
func (e *Engine[D]) Busy() bool { return e.inFlight != nil }
