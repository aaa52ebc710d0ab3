package stream

import "riglink-core/container/queue"

// QueueSink adapts a queue.Queue to the Sink contract.
type QueueSink[T any] struct{ Q *queue.Queue[T] }

func (s QueueSink[T]) Full() bool { return s.Q.Full() }
func (s QueueSink[T]) Push(v T)   { s.Q.Push(v) }

// QueueSource adapts a queue.Queue to the Source contract.
type QueueSource[T any] struct{ Q *queue.Queue[T] }

func (s QueueSource[T]) Empty() bool { return s.Q.Empty() }
func (s QueueSource[T]) Pop() T      { return s.Q.Pop() }
