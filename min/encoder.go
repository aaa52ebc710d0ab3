package min

import "riglink-core/stream"

// Encode serializes f onto downstream as a complete MIN wire frame: three
// header bytes, id, length, payload, CRC32 (big-endian), stuffed, then EOF.
func Encode(f *Frame, downstream stream.Sink[byte]) {
	downstream.Push(headerByte)
	downstream.Push(headerByte)
	downstream.Push(headerByte)

	body := make([]byte, 0, 2+f.Len()+4)
	body = append(body, f.ID())
	body = append(body, byte(f.Len()))
	body = append(body, f.Bytes()...)

	crc := newCRCAccum()
	crc.WriteAll(body)
	sum := crc.Sum()
	body = append(body, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))

	run := 0
	for _, b := range body {
		downstream.Push(b)
		if b == headerByte {
			run++
			if run == 2 {
				downstream.Push(stuffByte)
				run = 0
			}
		} else {
			run = 0
		}
	}

	downstream.Push(eofByte)
}

// Bytes serializes f to a standalone wire-format byte slice.
func Bytes(f *Frame) []byte {
	var out []byte
	sink := &sliceSink{buf: &out}
	Encode(f, sink)
	return out
}

type sliceSink struct{ buf *[]byte }

func (s *sliceSink) Full() bool   { return false }
func (s *sliceSink) Push(b byte)  { *s.buf = append(*s.buf, b) }
