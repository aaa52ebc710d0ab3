// Package min implements the MIN (Microcontroller Interconnect Network)
// byte-stuffed, CRC32-checked framing protocol: a Frame carries a 6-bit id
// and a payload with independent pack/unpack cursors for sequential
// primitive serialization.
package min

import (
	"encoding/binary"
	"math"

	"riglink-core/container/buffer"
)

// DefaultPayloadCapacity is the default Frame payload size.
const DefaultPayloadCapacity = 128

// MaxID is the largest valid frame id (6 bits).
const MaxID = 0x3F

// Frame is a MIN message: a 6-bit id, a payload buffer, and pack/unpack
// cursors used to serialize and deserialize primitive values sequentially.
// pack_cursor <= len <= capacity; unpack_cursor <= len, always.
type Frame struct {
	id      uint8
	payload buffer.Buffer[byte]
	unpack  int
}

// NewFrame returns an empty Frame with the given id and default payload
// capacity. Requires id <= MaxID.
func NewFrame(id uint8) Frame { return NewFrameCap(id, DefaultPayloadCapacity) }

// NewFrameCap returns an empty Frame with the given id and payload capacity.
func NewFrameCap(id uint8, capacity int) Frame {
	if id > MaxID {
		panic("min: frame id out of range")
	}
	return Frame{id: id, payload: buffer.New[byte](capacity)}
}

// FrameFromBytes builds a Frame whose payload is exactly raw (capacity ==
// len(raw)), used by the decoder once a complete frame body is known.
func FrameFromBytes(id uint8, raw []byte) Frame {
	f := NewFrameCap(id, len(raw))
	for _, b := range raw {
		f.payload.Append(b)
	}
	return f
}

// ID returns the frame's 6-bit id.
func (f *Frame) ID() uint8 { return f.id }

// Len reports the packed payload length.
func (f *Frame) Len() int { return f.payload.Len() }

// Cap reports the payload capacity.
func (f *Frame) Cap() int { return f.payload.Cap() }

// Bytes returns the packed payload bytes.
func (f *Frame) Bytes() []byte { return f.payload.All() }

// PackCursor reports how many bytes have been packed so far (mirrors Len,
// since packing only ever appends).
func (f *Frame) PackCursor() int { return f.payload.Len() }

// UnpackCursor reports the current unpack read position.
func (f *Frame) UnpackCursor() int { return f.unpack }

// Move transfers ownership of the payload buffer, per Frame's move
// contract.
func (f *Frame) Move() Frame {
	out := Frame{id: f.id, payload: f.payload.Move(), unpack: f.unpack}
	f.unpack = 0
	return out
}

func (f *Frame) packByte(b byte) { f.payload.Append(b) }

// PackU8 appends a single byte.
func (f *Frame) PackU8(v uint8) { f.packByte(v) }

// PackU16 appends v big-endian.
func (f *Frame) PackU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	for _, x := range b {
		f.packByte(x)
	}
}

// PackU32 appends v big-endian.
func (f *Frame) PackU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	for _, x := range b {
		f.packByte(x)
	}
}

// PackU64 appends v big-endian.
func (f *Frame) PackU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	for _, x := range b {
		f.packByte(x)
	}
}

// PackF32 appends v as its big-endian IEEE-754 bit pattern.
func (f *Frame) PackF32(v float32) { f.PackU32(math.Float32bits(v)) }

// PackF64 appends v as its big-endian IEEE-754 bit pattern.
func (f *Frame) PackF64(v float64) { f.PackU64(math.Float64bits(v)) }

func (f *Frame) unpackBytes(n int) []byte {
	if f.unpack+n > f.payload.Len() {
		panic("min: unpack past payload length")
	}
	out := make([]byte, n)
	data := f.payload.All()
	copy(out, data[f.unpack:f.unpack+n])
	f.unpack += n
	return out
}

// UnpackU8 reads the next byte.
func (f *Frame) UnpackU8() uint8 { return f.unpackBytes(1)[0] }

// UnpackU16 reads the next two bytes, big-endian.
func (f *Frame) UnpackU16() uint16 { return binary.BigEndian.Uint16(f.unpackBytes(2)) }

// UnpackU32 reads the next four bytes, big-endian.
func (f *Frame) UnpackU32() uint32 { return binary.BigEndian.Uint32(f.unpackBytes(4)) }

// UnpackU64 reads the next eight bytes, big-endian.
func (f *Frame) UnpackU64() uint64 { return binary.BigEndian.Uint64(f.unpackBytes(8)) }

// UnpackF32 reads the next four bytes as a big-endian IEEE-754 float32.
func (f *Frame) UnpackF32() float32 { return math.Float32frombits(f.UnpackU32()) }

// UnpackF64 reads the next eight bytes as a big-endian IEEE-754 float64.
func (f *Frame) UnpackF64() float64 { return math.Float64frombits(f.UnpackU64()) }
