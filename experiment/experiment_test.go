package experiment

import (
	"testing"

	"riglink-core/sched"
)

func TestInitOnAliveRequest(t *testing.T) {
	e := New()
	var initCount int
	e.Init.CallFunc(func(sched.Tick) { initCount++ })

	e.HandleControl(0, bitAlive)
	e.Tick(0, 1)

	if e.State() != StateRun {
		t.Fatalf("state = %v, want RUN", e.State())
	}
	if initCount != 1 {
		t.Fatalf("initCount = %d, want 1", initCount)
	}
}

func TestStopOnIdleRequest(t *testing.T) {
	e := New()
	var stopCount int
	e.Stop.CallFunc(func(sched.Tick) { stopCount++ })

	e.HandleControl(0, bitAlive)
	e.Tick(0, 1)
	e.HandleControl(1, 0)
	e.Tick(1, 1)

	if e.State() != StateIdle {
		t.Fatalf("state = %v, want IDLE", e.State())
	}
	if stopCount != 1 {
		t.Fatalf("stopCount = %d, want 1", stopCount)
	}
}

func TestRunRegistryOnlyScheduledWhileRunning(t *testing.T) {
	e := New()
	runs := 0
	e.Run.Every(0, 1, func(sched.Tick, sched.Tick) { runs++ })
	idles := 0
	e.Idle.Every(0, 1, func(sched.Tick, sched.Tick) { idles++ })

	e.Tick(0, 1) // stays IDLE
	e.HandleControl(1, bitAlive)
	e.Tick(1, 1) // transitions to RUN
	e.Tick(2, 1) // stays RUN

	if idles != 1 {
		t.Fatalf("idles = %d, want 1", idles)
	}
	if runs != 2 {
		t.Fatalf("runs = %d, want 2 (RUN registry fires on both the transition tick and the following tick)", runs)
	}
}

func TestHeartbeatExactlyAtDeadlineIsNotMissed(t *testing.T) {
	e := New()
	e.EnableHeartbeat(50)
	var timeouts int
	e.Timeout.CallFunc(func(sched.Tick) { timeouts++ })

	e.HandleControl(0, bitAlive)
	e.Tick(0, 1)
	e.HandleControl(40, bitHeartbeat) // deadline = 90

	e.Tick(90, 1) // now == deadline: not missed
	if timeouts != 0 {
		t.Fatalf("timeouts = %d, want 0 at exactly the deadline", timeouts)
	}

	e.Tick(91, 1) // now > deadline: missed, forces alive=false for the next tick
	if timeouts != 1 {
		t.Fatalf("timeouts = %d, want 1 one ms past the deadline", timeouts)
	}

	e.Tick(92, 1) // the forced alive=false takes effect at the top of this tick
	if e.State() != StateIdle {
		t.Fatalf("state = %v, want IDLE after the timeout takes effect", e.State())
	}
	if timeouts != 1 {
		t.Fatalf("timeouts = %d, want still 1 (IDLE transition must not refire TIMEOUT)", timeouts)
	}
}

func TestHeartbeatTimeoutScenario(t *testing.T) {
	e := New()
	e.EnableHeartbeat(50)
	var timeouts int
	e.Timeout.CallFunc(func(sched.Tick) { timeouts++ })

	e.HandleControl(0, bitAlive)
	e.Tick(0, 1)
	e.HandleControl(40, bitHeartbeat)

	for now := sched.Tick(1); now <= 110; now++ {
		e.Tick(now, 1)
	}

	if timeouts == 0 {
		t.Fatal("expected a TIMEOUT event by t=110")
	}
	if e.State() != StateIdle {
		t.Fatalf("state = %v, want IDLE by t=110", e.State())
	}
}
