package stream

const hexDigits = "0123456789ABCDEF"

// Hexify wraps a downstream byte Sink. Each pushed byte expands to the
// three-byte sequence '\\', hi-nibble, lo-nibble (matching x/conv's nibble
// table); the expansion is accumulated into a work buffer and flushed to the
// downstream sink once per Push call.
type Hexify struct {
	downstream Sink[byte]
}

// NewHexify wraps downstream.
func NewHexify(downstream Sink[byte]) *Hexify { return &Hexify{downstream: downstream} }

func (h *Hexify) Full() bool { return h.downstream.Full() }

func (h *Hexify) Push(b byte) {
	var work [3]byte
	work[0] = '\\'
	work[1] = hexDigits[b>>4]
	work[2] = hexDigits[b&0xF]
	for _, o := range work {
		h.downstream.Push(o)
	}
}
