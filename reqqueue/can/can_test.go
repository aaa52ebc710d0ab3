package can

import (
	"testing"

	"riglink-core/canopen"
)

type fakeBus struct {
	sent []Frame
	err  error
}

func (b *fakeBus) Send(f Frame) error {
	b.sent = append(b.sent, f)
	return b.err
}

type fakeDevice struct {
	id      uint8
	pdoSeen int
}

func (d *fakeDevice) NodeID() uint8                       { return d.id }
func (d *fakeDevice) OnPDO(cobID uint32, data []byte)     { d.pdoSeen++ }
func (d *fakeDevice) OnSDOResponse(resp canopen.SDOResponse) {}

func TestPushTXSendsAndCompletes(t *testing.T) {
	bus := &fakeBus{}
	e := New(bus, nil, 4)
	var gotErr error
	e.PushTX(0, Device{ID: "can0"}, Frame{ID: 0x100, DLC: 1, Data: [8]byte{0xAA}}, func(err error) { gotErr = err })
	if gotErr != nil {
		t.Fatalf("gotErr = %v, want nil", gotErr)
	}
	if len(bus.sent) != 1 || bus.sent[0].ID != 0x100 {
		t.Fatalf("sent = %+v", bus.sent)
	}
}

func TestDeliverRoutesIntoDispatcher(t *testing.T) {
	disp := canopen.NewDispatcher()
	dev := &fakeDevice{id: 3}
	disp.Register(dev)
	disp.RegisterTPDO(dev, 0x1A3, nil)

	e := New(&fakeBus{}, disp, 4)
	e.Deliver(0, Frame{ID: 0x1A3, DLC: 1, Data: [8]byte{0x01}})

	if dev.pdoSeen != 1 {
		t.Fatalf("pdoSeen = %d, want 1", dev.pdoSeen)
	}
}

func TestDeliverWithoutDispatcherIsNoop(t *testing.T) {
	e := New(&fakeBus{}, nil, 4)
	e.Deliver(0, Frame{ID: 0x1A3, DLC: 1}) // must not panic
}
