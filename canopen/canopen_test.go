package canopen

import "testing"

type fakeDevice struct {
	id       uint8
	pdoSeen  [][]byte
	sdoSeen  []SDOResponse
}

func (f *fakeDevice) NodeID() uint8 { return f.id }
func (f *fakeDevice) OnPDO(cobID uint32, data []byte) {
	cp := append([]byte(nil), data...)
	f.pdoSeen = append(f.pdoSeen, cp)
}
func (f *fakeDevice) OnSDOResponse(resp SDOResponse) { f.sdoSeen = append(f.sdoSeen, resp) }

type frameSource struct {
	frames []Frame
	i      int
}

func (s *frameSource) Empty() bool { return s.i >= len(s.frames) }
func (s *frameSource) Pop() Frame  { f := s.frames[s.i]; s.i++; return f }

func TestRegisterNodeZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering node id 0")
		}
	}()
	d := NewDispatcher()
	d.Register(&fakeDevice{id: 0})
}

func TestDoubleRegisterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double registration")
		}
	}()
	d := NewDispatcher()
	d.Register(&fakeDevice{id: 5})
	d.Register(&fakeDevice{id: 5})
}

func TestPDORoutingBeforeSDO(t *testing.T) {
	d := NewDispatcher()
	dev := &fakeDevice{id: 3}
	d.Register(dev)
	d.RegisterTPDO(dev, 0x1A3, []MapEntry{{Index: 0x6000, Subindex: 1, Bits: 16}})

	src := &frameSource{frames: []Frame{
		{ID: 0x1A3, DLC: 2, Data: [8]byte{0x34, 0x12}},
	}}
	d.Process(0, src)

	if len(dev.pdoSeen) != 1 {
		t.Fatalf("pdoSeen = %d, want 1", len(dev.pdoSeen))
	}
	decoded := DecodePDO(dev.pdoSeen[0], []MapEntry{{Bits: 16}})
	if decoded[0] != 0x1234 {
		t.Fatalf("decoded = %#x, want 0x1234", decoded[0])
	}
}

func TestSDOResponseRoutedToDevice(t *testing.T) {
	d := NewDispatcher()
	dev := &fakeDevice{id: 9}
	d.Register(dev)

	src := &frameSource{frames: []Frame{
		{ID: cobSDOServer + 9, DLC: 8, Data: [8]byte{sdoCmdRead, 0x00, 0x60, 1, 7, 0, 0, 0}},
	}}
	d.Process(0, src)

	if len(dev.sdoSeen) != 1 {
		t.Fatalf("sdoSeen = %d, want 1", len(dev.sdoSeen))
	}
	if dev.sdoSeen[0].Value != 7 || dev.sdoSeen[0].Index != 0x6000 {
		t.Fatalf("resp = %+v", dev.sdoSeen[0])
	}
}

func TestUnhandledFrameLogged(t *testing.T) {
	d := NewDispatcher()
	var logged []Frame
	d.Unhandled = func(f Frame) { logged = append(logged, f) }

	src := &frameSource{frames: []Frame{{ID: 0x999, DLC: 0}}}
	d.Process(0, src)

	if len(logged) != 1 {
		t.Fatalf("logged = %d, want 1", len(logged))
	}
}

func TestSDOSendDisciplineEnforcesGapAndFIFO(t *testing.T) {
	d := NewDispatcher()
	dev := &fakeDevice{id: 12}
	d.Register(dev)

	var sent []uint32
	d.Send = func(id uint32, body [8]byte) { sent = append(sent, id) }

	d.SendSDO(0, 12, sdoCmdRead, 0x6000, 1, 0)
	d.SendSDO(0, 12, sdoCmdRead, 0x6001, 1, 0)
	if len(sent) != 1 {
		t.Fatalf("sent = %d, want 1 (second request queues behind the in-flight one)", len(sent))
	}

	// Response to the first arrives at t=0; the queued second request must
	// wait out the minimum gap before it is sent.
	src := &frameSource{frames: []Frame{
		{ID: cobSDOServer + 12, DLC: 8, Data: [8]byte{sdoCmdRead, 0, 0x60, 1, 0, 0, 0, 0}},
	}}
	d.Process(0, src)
	if len(sent) != 1 {
		t.Fatalf("sent = %d, want still 1 before the gap elapses", len(sent))
	}

	d.byNode[12].client.tryStart(minSDOGap, d.sendFrame)
	if len(sent) != 2 {
		t.Fatalf("sent = %d, want 2 once the gap has elapsed", len(sent))
	}
}
