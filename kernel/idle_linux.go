//go:build !(rp2040 || rp2350)

package kernel

import (
	"time"

	"riglink-core/sched"
)

// LinuxIdler sleeps the host CPU for the idle window, scaling ticks to real
// time. It is the host-side counterpart of MCUIdler, which rp2040/rp2350
// builds use and which sleeps the same way, with time.Sleep.
type LinuxIdler struct {
	// TickDuration is how long a single Tick represents in wall-clock time.
	TickDuration time.Duration
}

// Idle sleeps for wait ticks' worth of wall-clock time.
func (l LinuxIdler) Idle(wait sched.Tick) {
	if wait <= 0 {
		return
	}
	d := l.TickDuration
	if d <= 0 {
		d = time.Millisecond
	}
	time.Sleep(d * time.Duration(wait))
}
