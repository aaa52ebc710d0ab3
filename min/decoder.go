package min

import "riglink-core/container/queue"

const (
	headerByte byte = 0xAA
	stuffByte  byte = 0x55
	eofByte    byte = 0x55
)

type rxPhase uint8

const (
	phaseSearchSOF rxPhase = iota
	phaseIDCtrl
	phaseLen
	phasePayload
	phaseCRC
	phaseAwaitEOF
)

// Decoder implements the MIN receive state machine: SEARCH_SOF -> ID_CTRL ->
// LEN -> PAYLOAD(LEN) -> CRC3..CRC0 -> EOF -> SEARCH_SOF, with byte-stuff removal
// and three-header resynchronization, fed one byte at a time.
type Decoder struct {
	phase rxPhase

	sofHeaders     int // consecutive headers seen while searching for SOF
	pendingHeaders int // consecutive headers seen mid-frame, not yet resolved

	idctrl  byte
	length  int
	payload []byte
	crc     crcAccum
	crcWant [4]byte
	crcGot  int

	out queue.Queue[Frame]
}

// NewDecoder returns a Decoder whose completed frames land in a queue of the
// given depth.
func NewDecoder(outDepth int) *Decoder {
	return &Decoder{out: queue.New[Frame](outDepth)}
}

// Feed processes a single incoming byte, decoding frames into the internal
// output queue as they complete. Call Empty/Pop (or use as a stream.Source
// via In) to retrieve them.
func (d *Decoder) Feed(b byte) {
	if d.phase == phaseSearchSOF {
		if b == headerByte {
			d.sofHeaders++
			if d.sofHeaders == 3 {
				d.sofHeaders = 0
				d.startFrame()
			}
		} else {
			d.sofHeaders = 0
		}
		return
	}
	d.feedInFrame(b)
}

func (d *Decoder) startFrame() {
	d.phase = phaseIDCtrl
	d.pendingHeaders = 0
	d.length = 0
	d.payload = d.payload[:0]
	d.crc = newCRCAccum()
	d.crcGot = 0
}

func (d *Decoder) abortToSearch() {
	d.phase = phaseSearchSOF
	d.sofHeaders = 0
	d.pendingHeaders = 0
}

func (d *Decoder) feedInFrame(b byte) {
	if b == headerByte {
		d.pendingHeaders++
		switch d.pendingHeaders {
		case 2:
			// Hold: wait for the byte that resolves this pair.
			return
		case 3:
			// Three consecutive headers resync to ID_CTRL regardless of
			// current phase.
			d.pendingHeaders = 0
			d.startFrame()
			return
		default: // 1
			return
		}
	}

	switch d.pendingHeaders {
	case 2:
		d.pendingHeaders = 0
		if b == stuffByte {
			// The pair was real data; the stuff byte itself is discarded.
			d.commitFrameByte(headerByte)
			d.commitFrameByte(headerByte)
			return
		}
		// Anything else after a pending pair resyncs the search.
		d.abortToSearch()
		return
	case 1:
		d.pendingHeaders = 0
		d.commitFrameByte(headerByte)
		d.commitFrameByte(b)
		return
	default:
		d.commitFrameByte(b)
	}
}

func (d *Decoder) commitFrameByte(b byte) {
	switch d.phase {
	case phaseIDCtrl:
		d.idctrl = b
		d.crc.Write(b)
		d.phase = phaseLen
	case phaseLen:
		d.length = int(b)
		d.crc.Write(b)
		if d.length == 0 {
			d.phase = phaseCRC
		} else {
			d.phase = phasePayload
		}
	case phasePayload:
		d.payload = append(d.payload, b)
		d.crc.Write(b)
		if len(d.payload) == d.length {
			d.phase = phaseCRC
		}
	case phaseCRC:
		d.crcWant[d.crcGot] = b
		d.crcGot++
		if d.crcGot == 4 {
			d.phase = phaseAwaitEOF
		}
	case phaseAwaitEOF:
		if b == eofByte {
			d.finishFrame()
		} else {
			d.abortToSearch()
		}
	}
}

func (d *Decoder) finishFrame() {
	got := d.crc.Sum()
	want := uint32(d.crcWant[0])<<24 | uint32(d.crcWant[1])<<16 | uint32(d.crcWant[2])<<8 | uint32(d.crcWant[3])
	d.abortToSearch()
	if got != want {
		return // CRC mismatch: silently drop the frame
	}
	f := FrameFromBytes(d.idctrl&MaxID, d.payload)
	if !d.out.Full() {
		d.out.Push(f)
	}
}

// Empty reports whether a decoded Frame is available.
func (d *Decoder) Empty() bool { return d.out.Empty() }

// Pop returns the next decoded Frame.
func (d *Decoder) Pop() Frame { return d.out.Pop() }

// In decodes a byte Source into a Frame Source, draining upstream on every
// query.
type In struct {
	upstream interface {
		Empty() bool
		Pop() byte
	}
	dec *Decoder
}

// NewIn wraps upstream, decoding into frames with the given output depth.
func NewIn(upstream interface {
	Empty() bool
	Pop() byte
}, outDepth int) *In {
	return &In{upstream: upstream, dec: NewDecoder(outDepth)}
}

func (in *In) drain() {
	for !in.upstream.Empty() && in.dec.Empty() {
		in.dec.Feed(in.upstream.Pop())
	}
}

func (in *In) Empty() bool {
	in.drain()
	return in.dec.Empty()
}

func (in *In) Pop() Frame {
	in.drain()
	return in.dec.Pop()
}
