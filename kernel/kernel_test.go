package kernel

import (
	"testing"

	"riglink-core/sched"
)

type noIdle struct{}

func (noIdle) Idle(sched.Tick) {}

func TestTickRunsDueRecurring(t *testing.T) {
	k := New(noIdle{})
	var calls []sched.Tick
	k.Recurring.Every(0, 5, func(now, dt sched.Tick) { calls = append(calls, now) })

	for i := 0; i < 11; i++ {
		k.Tick(1)
	}

	// now advances to 1 before the first schedule check, so the recurring
	// task first fires at now=1; next then steps by 5 from startAt, so the
	// later fires land at 5 and 10.
	want := []sched.Tick{1, 5, 10}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls[%d] = %d, want %d", i, calls[i], want[i])
		}
	}
}

func TestTickDrainsEventedAfterRun(t *testing.T) {
	k := New(noIdle{})
	fired := 0
	k.Evented.CallFunc(func(sched.Tick) { fired++ })

	k.Tick(1)
	k.Tick(1)

	if fired != 1 {
		t.Fatalf("fired = %d, want 1 (evented tasks must not re-run)", fired)
	}
}

func TestPanicInOneTaskDoesNotStopAnother(t *testing.T) {
	k := New(noIdle{})
	var recovered []any
	k.OnPanic = func(r any) { recovered = append(recovered, r) }

	ranSecond := false
	k.Recurring.Every(0, 1, func(sched.Tick, sched.Tick) { panic("boom") })
	k.Recurring.Every(0, 1, func(sched.Tick, sched.Tick) { ranSecond = true })

	k.Tick(1)

	if !ranSecond {
		t.Fatal("second task should still run after the first panicked")
	}
	if len(recovered) != 1 {
		t.Fatalf("recovered = %v, want exactly one panic captured", recovered)
	}
}

func TestStepAdvancesByShortestPeriod(t *testing.T) {
	k := New(noIdle{})
	k.Recurring.Every(0, 3, func(sched.Tick, sched.Tick) {})
	k.Recurring.Every(0, 7, func(sched.Tick, sched.Tick) {})

	k.Step()
	if k.Now() != 3 {
		t.Fatalf("now = %d, want 3", k.Now())
	}
}
