package spi

import "testing"

type fakeBus struct {
	configured  []Profile
	txs         int
	configErr   error
}

func (b *fakeBus) Configure(p Profile) error {
	b.configured = append(b.configured, p)
	return b.configErr
}

func (b *fakeBus) Tx(w, r []byte) error {
	b.txs++
	return nil
}

func TestReconfiguresOnlyOnProfileChange(t *testing.T) {
	bus := &fakeBus{}
	e := New(bus, 4)

	devA := Device{ID: "a", Profile: Profile{CPOL: 0, CPHA: 0}}
	devB := Device{ID: "b", Profile: Profile{CPOL: 1, CPHA: 1}}

	e.Push(0, devA, Both, []byte{1}, make([]byte, 1), nil)
	e.Push(0, devA, Both, []byte{2}, make([]byte, 1), nil)
	e.Push(0, devB, Both, []byte{3}, make([]byte, 1), nil)
	e.Push(0, devA, Both, []byte{4}, make([]byte, 1), nil)

	if len(bus.configured) != 3 {
		t.Fatalf("configured %d times, want 3 (a, then b, then back to a)", len(bus.configured))
	}
	if bus.txs != 4 {
		t.Fatalf("txs = %d, want 4", bus.txs)
	}
}

func TestConfigureErrorAbortsBeforeTx(t *testing.T) {
	bus := &fakeBus{configErr: errSentinel{}}
	e := New(bus, 4)
	var gotErr error
	e.Push(0, Device{ID: "a"}, MOSI, []byte{1}, nil, func(_ []byte, err error) { gotErr = err })
	if gotErr == nil {
		t.Fatal("expected a Configure failure to propagate")
	}
	if bus.txs != 0 {
		t.Fatalf("txs = %d, want 0 (Tx must not run after a failed Configure)", bus.txs)
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "configure failed" }
