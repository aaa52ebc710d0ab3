package i2c

import "testing"

type fakeBus struct {
	txs []struct{ addr uint16; w, r []byte }
	err error
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	b.txs = append(b.txs, struct {
		addr uint16
		w, r []byte
	}{addr, append([]byte(nil), w...), r})
	if b.err != nil {
		return b.err
	}
	for i := range r {
		r[i] = byte(i + 1)
	}
	return nil
}

func TestWriteTransferRoundTrip(t *testing.T) {
	bus := &fakeBus{}
	e := New(bus, 4)
	var gotErr error
	e.Push(0, Device{Addr: 0x40, ID: "sensor"}, Write, []byte{0x01, 0x02}, false, 0, func(data []byte, err error) {
		gotErr = err
	})
	if gotErr != nil {
		t.Fatalf("gotErr = %v, want nil", gotErr)
	}
	if len(bus.txs) != 1 || bus.txs[0].addr != 0x40 {
		t.Fatalf("txs = %+v", bus.txs)
	}
}

func TestReadTransferWithMemAddr(t *testing.T) {
	bus := &fakeBus{}
	e := New(bus, 4)
	data := make([]byte, 3)
	var got []byte
	e.Push(0, Device{Addr: 0x40}, Read, data, true, 0x10, func(d []byte, err error) {
		got = d
	})
	if bus.txs[0].w[0] != 0x10 {
		t.Fatalf("mem addr byte = %#x, want 0x10", bus.txs[0].w[0])
	}
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("got = %v, want filled by the fake Tx", got)
	}
}

func TestFIFOOrderAcrossTwoDevices(t *testing.T) {
	bus := &fakeBus{}
	e := New(bus, 4)
	var order []string
	e.Push(0, Device{Addr: 0x10, ID: "a"}, Write, []byte{1}, false, 0, func([]byte, error) { order = append(order, "a") })
	e.Push(0, Device{Addr: 0x20, ID: "b"}, Write, []byte{2}, false, 0, func([]byte, error) { order = append(order, "b") })
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v, want [a b] (Tx is synchronous so both complete during Push)", order)
	}
}

func TestTxErrorPropagatesWithoutSuccess(t *testing.T) {
	bus := &fakeBus{err: errSentinel{}}
	e := New(bus, 4)
	var gotErr error
	var success bool
	e.Push(0, Device{Addr: 0x40}, Write, []byte{1}, false, 0, func(_ []byte, err error) {
		if err == nil {
			success = true
		}
		gotErr = err
	})
	if success {
		t.Fatal("a failing Tx must not report success")
	}
	if gotErr == nil {
		t.Fatal("expected the Tx error to propagate to done")
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "tx failed" }
