package stream

import "riglink-core/container/queue"

// splitPull is the shared state behind a pair of SplitPull branches: a
// single upstream Source feeding two independent downstream queues. Every
// buffer popped from upstream is pushed into both queues exactly once,
// regardless of which branch is queried first.
type splitPull[T any] struct {
	upstream Source[T]
	qA, qB   queue.Queue[T]
}

func (s *splitPull[T]) pullOne() bool {
	if s.upstream.Empty() {
		return false
	}
	v := s.upstream.Pop()
	s.qA.Push(v)
	s.qB.Push(v)
	return true
}

func (s *splitPull[T]) fill(own *queue.Queue[T]) {
	for own.Empty() {
		if !s.pullOne() {
			return
		}
	}
}

// SplitPullBranch is one of the two Sources produced by NewSplitPull.
type SplitPullBranch[T any] struct {
	shared *splitPull[T]
	own    *queue.Queue[T]
}

func (b SplitPullBranch[T]) Empty() bool {
	b.shared.fill(b.own)
	return b.own.Empty()
}

func (b SplitPullBranch[T]) Pop() T {
	b.shared.fill(b.own)
	return b.own.Pop()
}

// NewSplitPull returns two Sources, each seeing every buffer produced by
// upstream exactly once. depth bounds how far one branch may lag behind the
// other before it would need to block (the cooperative model has no
// blocking, so a lagging branch simply accumulates up to depth entries).
func NewSplitPull[T any](upstream Source[T], depth int) (a, b Source[T]) {
	s := &splitPull[T]{upstream: upstream, qA: queue.New[T](depth), qB: queue.New[T](depth)}
	return SplitPullBranch[T]{shared: s, own: &s.qA}, SplitPullBranch[T]{shared: s, own: &s.qB}
}
