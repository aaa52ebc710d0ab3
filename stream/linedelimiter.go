package stream

// LineDelimiter wraps a downstream Sink of byte slices, appending a single
// LF to every pushed buffer before forwarding it. When the input slice has
// no spare capacity for the LF, a new, larger backing array is allocated.
type LineDelimiter struct {
	downstream Sink[[]byte]
}

// NewLineDelimiter wraps downstream.
func NewLineDelimiter(downstream Sink[[]byte]) *LineDelimiter {
	return &LineDelimiter{downstream: downstream}
}

func (d *LineDelimiter) Full() bool { return d.downstream.Full() }

func (d *LineDelimiter) Push(line []byte) {
	if len(line) < cap(line) {
		d.downstream.Push(append(line, '\n'))
		return
	}
	grown := make([]byte, len(line)+1)
	copy(grown, line)
	grown[len(line)] = '\n'
	d.downstream.Push(grown)
}
