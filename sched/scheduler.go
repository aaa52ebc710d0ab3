package sched

// Scheduler holds one FIFO of Schedulable references (non-owning — the
// registries own the values) and runs them in two phases: Schedule fills
// the run queue from a Registry, Run drains it.
type Scheduler struct {
	runQ []Schedulable
}

// Schedule iterates reg and pushes every Schedulable whose Schedule(now)
// returns true into the run queue, in registry order.
func (s *Scheduler) Schedule(now Tick, reg Registry) {
	reg.ForEach(func(sch Schedulable) {
		if sch.Schedule(now) {
			s.runQ = append(s.runQ, sch)
		}
	})
}

// Run calls every queued Schedulable's Call method in order, then empties
// the run queue.
func (s *Scheduler) Run() {
	for _, sch := range s.runQ {
		sch.Call()
	}
	s.runQ = s.runQ[:0]
}

// RunOne calls the single oldest queued Schedulable and removes it from the
// run queue, letting a caller wrap each call in its own recover boundary.
// It is a no-op if the run queue is empty.
func (s *Scheduler) RunOne() {
	if len(s.runQ) == 0 {
		return
	}
	sch := s.runQ[0]
	s.runQ = s.runQ[1:]
	sch.Call()
}

// Pending reports how many Schedulables are queued to run.
func (s *Scheduler) Pending() int { return len(s.runQ) }
