package min

import "testing"

func buildSampleFrame() Frame {
	f := NewFrame(10)
	f.PackF64(3.14)
	f.PackU32(3600)
	return f
}

func TestEncodeRoundTrip(t *testing.T) {
	f := buildSampleFrame()
	wire := Bytes(&f)

	if len(wire) < 5 || wire[0] != 0xAA || wire[1] != 0xAA || wire[2] != 0xAA || wire[3] != 0x0A || wire[4] != 0x0C {
		t.Fatalf("wire header = % X, want AA AA AA 0A 0C ...", wire[:5])
	}
	if wire[len(wire)-1] != 0x55 {
		t.Fatalf("wire does not end in EOF: % X", wire)
	}

	dec := NewDecoder(4)
	for _, b := range wire {
		dec.Feed(b)
	}
	if dec.Empty() {
		t.Fatal("decoder produced no frame")
	}
	got := dec.Pop()
	if got.ID() != 10 {
		t.Fatalf("id = %d, want 10", got.ID())
	}
	if v := got.UnpackF64(); v != 3.14 {
		t.Fatalf("float = %v, want 3.14", v)
	}
	if v := got.UnpackU32(); v != 3600 {
		t.Fatalf("uint32 = %v, want 3600", v)
	}
}

func TestDecoderDropsCRCMismatch(t *testing.T) {
	f := buildSampleFrame()
	wire := Bytes(&f)
	wire[len(wire)-2] ^= 0xFF // corrupt the last CRC byte

	dec := NewDecoder(4)
	for _, b := range wire {
		dec.Feed(b)
	}
	if !dec.Empty() {
		t.Fatal("decoder should have dropped the corrupted frame")
	}
}

func TestDecoderRecoversAfterNoise(t *testing.T) {
	f := buildSampleFrame()
	wire := Bytes(&f)

	dec := NewDecoder(4)
	noise := []byte{0x01, 0x02, 0xAA, 0x10, 0x55}
	for _, b := range noise {
		dec.Feed(b)
	}
	for _, b := range wire {
		dec.Feed(b)
	}
	if dec.Empty() {
		t.Fatal("decoder should recover and decode the valid frame following noise")
	}
	got := dec.Pop()
	if got.ID() != 10 {
		t.Fatalf("id = %d, want 10", got.ID())
	}
}

func TestDecoderRecoversAfterBitFlipThenValidFrame(t *testing.T) {
	bad := buildSampleFrame()
	badWire := Bytes(&bad)
	badWire[len(badWire)-2] ^= 0x01

	good := NewFrame(20)
	good.PackU8(7)
	goodWire := Bytes(&good)

	dec := NewDecoder(4)
	for _, b := range badWire {
		dec.Feed(b)
	}
	for _, b := range goodWire {
		dec.Feed(b)
	}
	if dec.Empty() {
		t.Fatal("expected the valid frame after the corrupted one")
	}
	got := dec.Pop()
	if got.ID() != 20 || got.UnpackU8() != 7 {
		t.Fatalf("got id=%d, want 20 with payload 7", got.ID())
	}
}

func TestEncoderStuffsHeaderPairs(t *testing.T) {
	f := NewFrame(1)
	f.PackU8(0xAA)
	f.PackU8(0xAA)
	wire := Bytes(&f)

	dec := NewDecoder(4)
	for _, b := range wire {
		dec.Feed(b)
	}
	if dec.Empty() {
		t.Fatal("decoder failed to destuff header pair in payload")
	}
	got := dec.Pop()
	if got.Len() != 2 {
		t.Fatalf("payload len = %d, want 2", got.Len())
	}
	first := got.UnpackU8()
	second := got.UnpackU8()
	if first != 0xAA || second != 0xAA {
		t.Fatal("destuffed payload mismatch")
	}
}

func TestFrameRegistryDoubleRegisterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double registration")
		}
	}()
	var reg FrameRegistry
	reg.Register(5, func(*Frame) {})
	reg.Register(5, func(*Frame) {})
}

func TestFrameRegistryDispatch(t *testing.T) {
	var reg FrameRegistry
	var got uint8
	reg.Register(3, func(f *Frame) { got = f.ID() })

	f := NewFrame(3)
	if !reg.Dispatch(&f) {
		t.Fatal("expected dispatch to find handler")
	}
	if got != 3 {
		t.Fatalf("handler saw id %d, want 3", got)
	}

	other := NewFrame(4)
	if reg.Dispatch(&other) {
		t.Fatal("expected no handler for unregistered id")
	}
}
