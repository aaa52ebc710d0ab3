// Package can instantiates the generic request-queue engine for CAN bus
// transfers. Requests wrap a raw CAN frame in either TX or RX direction;
// completed RX frames feed a canopen.Dispatcher.
package can

import (
	"riglink-core/canopen"
	"riglink-core/errcode"
	"riglink-core/reqqueue"
	"riglink-core/sched"
)

// Direction is the transfer kind a Request declares.
type Direction uint8

const (
	TX Direction = iota
	RX
)

// Frame is the wire-level CAN frame a Request carries, mirroring
// canopen.Frame's fields so the two convert without loss.
type Frame struct {
	ID  uint32
	IDE bool
	RTR bool
	DLC uint8
	Data [8]byte
}

func toCANopen(f Frame) canopen.Frame {
	return canopen.Frame{ID: f.ID, IDE: f.IDE, RTR: f.RTR, DLC: f.DLC, Data: f.Data}
}

// Bus is the minimal interface a CAN controller driver must satisfy.
type Bus interface {
	Send(f Frame) error
}

// Device identifies the owning controller for FIFO-ordering purposes.
type Device struct {
	ID string
}

// Engine wraps the generic reqqueue.Engine for CAN transfers against bus,
// and feeds completed receptions into a canopen.Dispatcher.
type Engine struct {
	core *reqqueue.Engine[Device]
	bus  Bus
	disp *canopen.Dispatcher
	now  sched.Tick
}

// New returns an Engine bound to bus. disp may be nil if RX frames are not
// routed through CANopen service dispatch. When disp is set, New wires
// disp.Send to this engine's TX path, so SDO requests the dispatcher builds
// (SendSDO, and the next queued request route() starts once a response
// completes the previous one) actually reach the bus through this engine.
func New(bus Bus, disp *canopen.Dispatcher, capacity int) *Engine {
	e := &Engine{core: reqqueue.New[Device](capacity), bus: bus, disp: disp}
	if disp != nil {
		disp.Send = e.sendSDOFrame
	}
	return e
}

// sendSDOFrame satisfies canopen.Dispatcher.Send, turning an outbound SDO
// frame built by the dispatcher into a queued TX request on this bus.
func (e *Engine) sendSDOFrame(id uint32, data [8]byte) {
	e.PushTX(e.now, Device{ID: "canopen-sdo"}, Frame{ID: id, DLC: 8, Data: data}, nil)
}

// PushTX enqueues a frame for transmission.
func (e *Engine) PushTX(now sched.Tick, dev Device, f Frame, done func(err error)) {
	e.now = now
	e.core.Push(now, reqqueue.Request[Device]{
		Device: dev,
		Start: func(req *reqqueue.Request[Device]) error {
			if err := e.bus.Send(f); err != nil {
				return errcode.Of(err)
			}
			e.core.Complete(now)
			return nil
		},
		Callback: func(req *reqqueue.Request[Device], err error) {
			if done != nil {
				done(err)
			}
		},
	})
}

// Deliver hands a received frame to the CANopen dispatcher, if one is
// configured. The interrupt/goroutine context that reads the controller's
// RX FIFO calls this directly; it never touches user frame handlers.
func (e *Engine) Deliver(now sched.Tick, f Frame) {
	e.now = now
	if e.disp == nil {
		return
	}
	e.disp.Process(int64(now), &singleFrameSource{f: toCANopen(f)})
}

type singleFrameSource struct {
	f    canopen.Frame
	done bool
}

func (s *singleFrameSource) Empty() bool { return s.done }
func (s *singleFrameSource) Pop() canopen.Frame {
	s.done = true
	return s.f
}

// CheckDeadline, Busy and Pending forward to the underlying engine.
func (e *Engine) CheckDeadline(now sched.Tick) {
	e.now = now
	e.core.CheckDeadline(now)
}
func (e *Engine) Busy() bool                   { return e.core.Busy() }
func (e *Engine) Pending() int                 { return e.core.Pending() }
