package stream

// SplitPush is a Sink that fans a single push out to two downstream sinks.
// It reports Full if either side is full, and pushes the same value to both
// sides on Push.
type SplitPush[T any] struct {
	A, B Sink[T]
}

// NewSplitPush wraps a and b.
func NewSplitPush[T any](a, b Sink[T]) *SplitPush[T] { return &SplitPush[T]{A: a, B: b} }

func (s *SplitPush[T]) Full() bool { return s.A.Full() || s.B.Full() }

func (s *SplitPush[T]) Push(v T) {
	s.A.Push(v)
	s.B.Push(v)
}
