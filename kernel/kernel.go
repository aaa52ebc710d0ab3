// Package kernel implements the cooperative single-threaded run loop: a
// monotonic tick counter, a recurring-task registry, an evented registry,
// and a scheduler, wired together the way the HAL run loop drives its
// poller and event channel from one goroutine.
package kernel

import "riglink-core/sched"

// Idler is handed the wait Step computes before its next tick and actually
// sleeps (or spins, on a platform with no sleep primitive worth using).
type Idler interface {
	// Idle waits for wait ticks; a wait of zero or less returns at once.
	Idle(wait sched.Tick)
}

// Kernel owns the run loop's clock and registries. It is not goroutine-safe;
// it is meant to run on a single goroutine, exactly like the HAL loop it is
// modeled on.
type Kernel struct {
	now sched.Tick

	Recurring sched.RecurringRegistry
	Evented   sched.EventedRegistry
	runner    sched.Scheduler

	idle Idler

	// panics recovered from an individual Schedulable's Call are reported
	// here instead of taking down the whole loop.
	OnPanic func(recovered any)
}

// New returns a Kernel starting at tick 0, using idle as its sleep strategy.
func New(idle Idler) *Kernel {
	return &Kernel{idle: idle}
}

// Now returns the current tick.
func (k *Kernel) Now() sched.Tick { return k.now }

// Tick advances the clock by delta ticks, schedules and runs every due
// recurring task, then drains the evented registry. Each Schedulable's Call
// runs inside its own recover, so one misbehaving task cannot halt the loop
// — the Go-native stand-in for a fault boundary a C runtime would get from
// a per-task setjmp/longjmp.
func (k *Kernel) Tick(delta sched.Tick) {
	k.now += delta
	k.runner.Schedule(k.now, &k.Recurring)
	k.runner.Schedule(k.now, &k.Evented)
	k.Evented.Clear()
	k.runSafely()
}

func (k *Kernel) runSafely() {
	for k.runner.Pending() > 0 {
		k.stepOne()
	}
}

// stepOne runs exactly one queued Schedulable under recover, so a panic in
// task N does not prevent task N+1 from running this tick.
func (k *Kernel) stepOne() {
	defer func() {
		if r := recover(); r != nil && k.OnPanic != nil {
			k.OnPanic(r)
		}
	}()
	k.runner.RunOne()
}

// Step advances the clock by the shortest recurring period known to the
// registry, or by one tick if no recurring task is registered — the idle
// strategy decides how to actually wait that long.
func (k *Kernel) Step() {
	wait := sched.Tick(1)
	if dt, ok := k.Recurring.Peek(); ok && dt > 0 {
		wait = dt
	}
	if k.idle != nil {
		k.idle.Idle(wait)
	}
	k.Tick(wait)
}
