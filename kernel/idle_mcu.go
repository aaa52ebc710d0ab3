//go:build rp2040 || rp2350

package kernel

import (
	"time"

	"riglink-core/sched"
)

// MCUIdler idles on-device between due ticks. It sleeps for wait ticks'
// worth of wall-clock time with time.Sleep, exactly as LinuxIdler does.
type MCUIdler struct {
	TickDuration time.Duration
}

func (m MCUIdler) Idle(wait sched.Tick) {
	if wait <= 0 {
		return
	}
	d := m.TickDuration
	if d <= 0 {
		d = time.Millisecond
	}
	time.Sleep(d * time.Duration(wait))
}
