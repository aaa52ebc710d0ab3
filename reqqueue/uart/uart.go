// Package uart instantiates the generic request-queue engine for UART
// transfers, against a port shaped like the teacher's halcore.UARTPort:
// WriteByte/Write for TX, Read/Buffered/Readable for RX. Requests carry a
// raw byte buffer in either direction.
package uart

import (
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

// Port is the subset of halcore.UARTPort a transfer needs.
type Port interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Buffered() int
}

// Device identifies the owning port for FIFO-ordering purposes; one Engine
// can serve several logical devices sharing the same physical port.
type Device struct {
	ID string
}

// Engine wraps the generic reqqueue.Engine for UART transfers against port.
type Engine struct {
	core *reqqueue.Engine[Device]
	port Port
}

// New returns an Engine bound to port, with capacity pending transfers.
func New(port Port, capacity int) *Engine {
	return &Engine{core: reqqueue.New[Device](capacity), port: port}
}

// Push enqueues a transfer: dir TX writes data; dir RX fills data in place
// up to len(data) bytes, delivering a short read if fewer are currently
// buffered (it never blocks waiting for more).
func (e *Engine) Push(now sched.Tick, dev Device, dir Direction, data []byte, done func(n int, err error)) {
	e.core.Push(now, e.buildRequest(now, dev, dir, data, done))
}

// TryPush is Push's non-blocking counterpart, dropping silently when full.
func (e *Engine) TryPush(now sched.Tick, dev Device, dir Direction, data []byte, done func(n int, err error)) bool {
	return e.core.TryPush(now, e.buildRequest(now, dev, dir, data, done))
}

func (e *Engine) buildRequest(now sched.Tick, dev Device, dir Direction, data []byte, done func(int, error)) reqqueue.Request[Device] {
	var n int
	return reqqueue.Request[Device]{
		Device: dev,
		Data:   data,
		Start: func(req *reqqueue.Request[Device]) error {
			var err error
			switch dir {
			case TX:
				n, err = e.port.Write(data)
			case RX:
				n, err = e.port.Read(data)
			}
			if err != nil {
				return errcode.Of(err)
			}
			e.core.Complete(now)
			return nil
		},
		Callback: func(req *reqqueue.Request[Device], err error) {
			if done != nil {
				done(n, err)
			}
		},
	}
}

// CheckDeadline, Busy and Pending forward to the underlying engine.
func (e *Engine) CheckDeadline(now sched.Tick) { e.core.CheckDeadline(now) }
func (e *Engine) Busy() bool                   { return e.core.Busy() }
func (e *Engine) Pending() int                 { return e.core.Pending() }
