// Package i2c instantiates the generic request-queue engine for I²C
// transfers, against a bus shaped like tinygo.org/x/drivers.I2C (the same
// Tx(addr, w, r) error shape the teacher's drvshim.I2C adapter exposes).
package i2c

import (
	"riglink-core/errcode"
	"riglink-core/reqqueue"
	"riglink-core/sched"
)

// Direction is the transfer kind a Request declares: read or write. A
// register/memory address is passed to Push separately, not as a Direction.
type Direction uint8

const (
	Read Direction = iota
	Write
)

// Bus is the minimal interface a provider must satisfy; tinygo.org/x/drivers'
// I2C (and the teacher's drvshim.I2C adapter over it) already shapes this.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

// Device identifies the owner of a Request for FIFO-ordering purposes.
type Device struct {
	Addr uint16
	ID   string
}

// Engine wraps the generic reqqueue.Engine for I²C transfers against bus.
type Engine struct {
	core *reqqueue.Engine[Device]
	bus  Bus
}

// New returns an Engine bound to bus, with capacity pending transfers.
func New(bus Bus, capacity int) *Engine {
	return &Engine{core: reqqueue.New[Device](capacity), bus: bus}
}

// Push enqueues a transfer: dir Write sends data.Data; dir Read fills
// data.Data in place and delivers it back via done. memAddr, if hasMemAddr
// is set, is sent as the register/memory address byte ahead of the transfer
// (prefixed to a write's data, or written before a read).
func (e *Engine) Push(now sched.Tick, dev Device, dir Direction, data []byte, hasMemAddr bool, memAddr byte, done func(data []byte, err error)) {
	e.core.Push(now, e.buildRequest(now, dev, dir, data, hasMemAddr, memAddr, done))
}

// TryPush is Push's non-blocking counterpart, dropping silently when full.
func (e *Engine) TryPush(now sched.Tick, dev Device, dir Direction, data []byte, hasMemAddr bool, memAddr byte, done func(data []byte, err error)) bool {
	return e.core.TryPush(now, e.buildRequest(now, dev, dir, data, hasMemAddr, memAddr, done))
}

func (e *Engine) buildRequest(now sched.Tick, dev Device, dir Direction, data []byte, hasMemAddr bool, memAddr byte, done func([]byte, error)) reqqueue.Request[Device] {
	return reqqueue.Request[Device]{
		Device: dev,
		Data:   data,
		Start: func(req *reqqueue.Request[Device]) error {
			var w, r []byte
			switch dir {
			case Write:
				if hasMemAddr {
					w = append([]byte{memAddr}, data...)
				} else {
					w = data
				}
			case Read:
				if hasMemAddr {
					w = []byte{memAddr}
				}
				r = data
			}
			if err := e.bus.Tx(dev.Addr, w, r); err != nil {
				return errcode.Of(err)
			}
			// Tx is synchronous on this bus shape, so the transfer is
			// already done: signal completion immediately instead of
			// waiting for a separate interrupt callback.
			e.core.Complete(now)
			return nil
		},
		Callback: func(req *reqqueue.Request[Device], err error) {
			if done != nil {
				done(req.Data, err)
			}
		},
	}
}

// Complete and Error forward to the underlying engine, to be called from
// the platform's I²C completion path.
func (e *Engine) Complete(now sched.Tick) { e.core.Complete(now) }
func (e *Engine) Error(now sched.Tick, err error) { e.core.Error(now, err) }
func (e *Engine) CheckDeadline(now sched.Tick) { e.core.CheckDeadline(now) }
func (e *Engine) Busy() bool { return e.core.Busy() }
func (e *Engine) Pending() int { return e.core.Pending() }
