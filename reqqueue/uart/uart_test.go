package uart

import "testing"

type fakePort struct {
	written []byte
	toRead  []byte
	readErr error
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	n := copy(b, p.toRead)
	return n, nil
}

func (p *fakePort) Buffered() int { return len(p.toRead) }

func TestTXWritesThroughPort(t *testing.T) {
	port := &fakePort{}
	e := New(port, 4)
	e.Push(0, Device{ID: "a"}, TX, []byte("hello"), nil)
	if string(port.written) != "hello" {
		t.Fatalf("written = %q, want %q", port.written, "hello")
	}
}

func TestRXFillsBufferAndReportsCount(t *testing.T) {
	port := &fakePort{toRead: []byte("ok")}
	e := New(port, 4)
	buf := make([]byte, 8)
	var gotN int
	var gotErr error
	e.Push(0, Device{ID: "a"}, RX, buf, func(n int, err error) { gotN, gotErr = n, err })
	if gotErr != nil || gotN != 2 || string(buf[:2]) != "ok" {
		t.Fatalf("n=%d err=%v buf=%q", gotN, gotErr, buf[:gotN])
	}
}

func TestReadErrorPropagates(t *testing.T) {
	port := &fakePort{readErr: errSentinel{}}
	e := New(port, 4)
	var gotErr error
	e.Push(0, Device{ID: "a"}, RX, make([]byte, 4), func(_ int, err error) { gotErr = err })
	if gotErr == nil {
		t.Fatal("expected the Read error to propagate")
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "read failed" }
