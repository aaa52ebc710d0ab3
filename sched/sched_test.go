package sched

import "testing"

func TestRecurringScheduleDeterminism(t *testing.T) {
	var reg RecurringRegistry
	var calls []Tick
	reg.Every(0, 7, func(now, dt Tick) {
		calls = append(calls, now)
		if dt != 7 {
			t.Fatalf("dt = %d, want 7", dt)
		}
	})

	var s Scheduler
	for now := Tick(0); now <= 50; now++ {
		s.Schedule(now, &reg)
		s.Run()
	}

	want := []Tick{0, 7, 14, 21, 28, 35, 42, 49}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls[%d] = %d, want %d", i, calls[i], want[i])
		}
	}
}

func TestRecurringWindowCount(t *testing.T) {
	const dt = Tick(10)
	const n = 5
	var reg RecurringRegistry
	count := 0
	reg.Every(0, dt, func(Tick, Tick) { count++ })

	var s Scheduler
	for now := Tick(0); now <= dt*n; now++ {
		s.Schedule(now, &reg)
		s.Run()
	}
	if count != n+1 {
		t.Fatalf("count = %d, want %d", count, n+1)
	}
}

func TestZeroPeriodIsNoOp(t *testing.T) {
	var reg RecurringRegistry
	rec := reg.Every(0, 0, func(Tick, Tick) { t.Fatal("should never be called") })
	if rec != nil {
		t.Fatal("expected nil Recurring for dt=0")
	}
	if reg.Len() != 0 {
		t.Fatalf("len = %d, want 0", reg.Len())
	}
}

func TestResetForcesImmediateTrigger(t *testing.T) {
	var reg RecurringRegistry
	calls := 0
	reg.Every(100, 50, func(Tick, Tick) { calls++ })

	var s Scheduler
	s.Schedule(0, &reg)
	s.Run()
	if calls != 0 {
		t.Fatal("should not have triggered before startAt")
	}

	reg.Reset()
	s.Schedule(0, &reg)
	s.Run()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 after reset", calls)
	}
}

func TestEventedAlwaysTriggers(t *testing.T) {
	var reg EventedRegistry
	var seen []Tick
	reg.CallFunc(func(at Tick) { seen = append(seen, at) })

	var s Scheduler
	s.Schedule(5, &reg)
	s.Schedule(9, &reg)
	s.Run()

	// One Evented keeps a single scheduling timestamp, so both queued calls
	// forward the most recent one.
	if len(seen) != 2 || seen[0] != 9 || seen[1] != 9 {
		t.Fatalf("seen = %v, want [9 9]", seen)
	}
}

func TestSchedulerRunsInSubmissionOrder(t *testing.T) {
	var reg RecurringRegistry
	var order []int
	reg.Every(0, 1, func(Tick, Tick) { order = append(order, 1) })
	reg.Every(0, 1, func(Tick, Tick) { order = append(order, 2) })
	reg.Every(0, 1, func(Tick, Tick) { order = append(order, 3) })

	var s Scheduler
	s.Schedule(0, &reg)
	s.Run()

	want := []int{1, 2, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRegistryPeekShortestPeriod(t *testing.T) {
	var reg RecurringRegistry
	reg.Every(0, 50, func(Tick, Tick) {})
	reg.Every(0, 10, func(Tick, Tick) {})
	reg.Every(0, 30, func(Tick, Tick) {})

	dt, ok := reg.Peek()
	if !ok || dt != 10 {
		t.Fatalf("peek = %d,%v want 10,true", dt, ok)
	}
}
