package stream

import "riglink-core/container/queue"

const lineFilterCapacity = 128

// LineFilter is a Source of complete lines (byte buffers, terminator
// stripped) built from an upstream Source of raw bytes. It accumulates into
// an internal stash of lineFilterCapacity bytes; on LF or CR it emits the
// stash (handling both LF and CR+LF endings), ignores empty lines, and drops
// a line outright if it overruns the stash or if the output queue is full
// when the line completes.
type LineFilter struct {
	upstream Source[byte]
	stash    [lineFilterCapacity]byte
	stashLen int
	overrun  bool
	out      queue.Queue[[]byte]
}

// NewLineFilter wraps upstream, buffering up to outDepth completed lines.
func NewLineFilter(upstream Source[byte], outDepth int) *LineFilter {
	return &LineFilter{upstream: upstream, out: queue.New[[]byte](outDepth)}
}

func (f *LineFilter) drainUpstream() {
	for !f.upstream.Empty() {
		b := f.upstream.Pop()
		switch b {
		case '\n', '\r':
			// In CR+LF the CR ends the line and the LF then sees an empty
			// stash, which emit ignores.
			f.emit()
		default:
			if f.stashLen >= lineFilterCapacity {
				f.overrun = true
				continue
			}
			f.stash[f.stashLen] = b
			f.stashLen++
		}
	}
}

func (f *LineFilter) emit() {
	if f.overrun {
		// Oversized line: drop it and resume with an empty stash.
		f.overrun = false
		f.stashLen = 0
		return
	}
	if f.stashLen == 0 {
		return // ignore empty lines
	}
	if f.out.Full() {
		f.stashLen = 0
		return // drop: output queue saturated
	}
	line := make([]byte, f.stashLen)
	copy(line, f.stash[:f.stashLen])
	f.out.Push(line)
	f.stashLen = 0
}

// Empty reports whether a complete line is available.
func (f *LineFilter) Empty() bool {
	f.drainUpstream()
	return f.out.Empty()
}

// Pop returns the next complete line, without its terminator.
func (f *LineFilter) Pop() []byte {
	f.drainUpstream()
	return f.out.Pop()
}
