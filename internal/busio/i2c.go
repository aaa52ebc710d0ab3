// Package busio adapts engine-backed request queues (reqqueue/i2c, in time
// reqqueue/spi) to the blocking bus ports tinygo.org/x/drivers expects, so
// existing synchronous sensor drivers can sit on the new core unmodified
// instead of driving a raw hardware bus themselves.
package busio

import (
	"time"

	"riglink-core/errcode"
	"riglink-core/reqqueue/i2c"
	"riglink-core/sched"
)

// I2C adapts a *i2c.Engine to tinygo.org/x/drivers.I2C's Tx(addr, w, r) error
// shape. Every real call site in drivers/aht20 and drivers/ltc4015 reduces to
// one of three shapes: write-only, read-only, or a one-byte register address
// followed by a read — all three map directly onto the engine's existing
// Direction/hasMemAddr/memAddr parameters.
type I2C struct {
	eng *i2c.Engine
	now func() sched.Tick
}

// NewI2C wraps eng. now supplies the tick passed to the engine's Push/
// deadline bookkeeping; a nil now defaults to wall-clock milliseconds, which
// is adequate off the cooperative kernel (e.g. on a host-side test or a
// platform without its own kernel.Kernel instance).
func NewI2C(eng *i2c.Engine, now func() sched.Tick) *I2C {
	if now == nil {
		now = func() sched.Tick { return sched.Tick(time.Now().UnixMilli()) }
	}
	return &I2C{eng: eng, now: now}
}

func (b *I2C) Tx(addr uint16, w, r []byte) error {
	dev := i2c.Device{Addr: addr}
	done := make(chan error, 1)

	switch {
	case len(r) == 0:
		b.eng.Push(b.now(), dev, i2c.Write, w, false, 0, func(_ []byte, err error) { done <- err })
	case len(w) == 0:
		b.eng.Push(b.now(), dev, i2c.Read, r, false, 0, func(_ []byte, err error) { done <- err })
	case len(w) == 1:
		b.eng.Push(b.now(), dev, i2c.Read, r, true, w[0], func(_ []byte, err error) { done <- err })
	default:
		return errcode.Unsupported
	}

	return <-done
}
