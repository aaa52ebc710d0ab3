package stream

import (
	"riglink-core/container/queue"
	"testing"
)

func bytesSource(s string) Source[byte] {
	q := queue.New[byte](len(s) + 1)
	for i := 0; i < len(s); i++ {
		q.Push(s[i])
	}
	return QueueSource[byte]{Q: &q}
}

func TestLineFilterMixedTerminators(t *testing.T) {
	f := NewLineFilter(bytesSource("a\nbb\r\nccc\n"), 8)
	var got []string
	for !f.Empty() {
		got = append(got, string(f.Pop()))
	}
	want := []string{"a", "bb", "ccc"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLineFilterOversizedLineDropped(t *testing.T) {
	long := make([]byte, 130)
	for i := range long {
		long[i] = 'x'
	}
	q := queue.New[byte](140)
	for _, b := range long {
		q.Push(b)
	}
	q.Push('\n')
	for _, b := range []byte("ok\n") {
		q.Push(b)
	}
	f := NewLineFilter(QueueSource[byte]{Q: &q}, 4)
	if f.Empty() {
		t.Fatal("expected the surviving short line")
	}
	if got := string(f.Pop()); got != "ok" {
		t.Fatalf("got %q, want \"ok\" (oversized line should have been dropped)", got)
	}
	if !f.Empty() {
		t.Fatal("expected no further lines")
	}
}

func TestLineFilterEmptyLinesIgnored(t *testing.T) {
	f := NewLineFilter(bytesSource("\n\na\n\n"), 8)
	if f.Empty() {
		t.Fatal("expected one line")
	}
	if got := string(f.Pop()); got != "a" {
		t.Fatalf("got %q, want \"a\"", got)
	}
	if !f.Empty() {
		t.Fatal("expected no further lines")
	}
}

type sliceSink struct {
	pushes *[][]byte
	full   bool
}

func (s sliceSink) Full() bool { return s.full }
func (s sliceSink) Push(v []byte) {
	*s.pushes = append(*s.pushes, append([]byte(nil), v...))
}

func TestLineDelimiterAppendsLF(t *testing.T) {
	var got [][]byte
	d := NewLineDelimiter(sliceSink{pushes: &got})
	d.Push([]byte("hello"))
	if string(got[0]) != "hello\n" {
		t.Fatalf("got %q, want \"hello\\n\"", got[0])
	}
}

type byteSink struct {
	buf  []byte
	full bool
}

func (s *byteSink) Full() bool  { return s.full }
func (s *byteSink) Push(b byte) { s.buf = append(s.buf, b) }

func TestHexifyExpandsBytes(t *testing.T) {
	out := &byteSink{}
	h := NewHexify(out)
	h.Push(0xAB)
	if string(out.buf) != "\\AB" {
		t.Fatalf("got %q, want \"\\\\AB\"", out.buf)
	}
}

func TestSplitPushFullIfEitherFull(t *testing.T) {
	var a, b []int
	sinkA := intSink{buf: &a}
	sinkB := intSink{buf: &b, full: true}
	sp := NewSplitPush[int](sinkA, sinkB)
	if !sp.Full() {
		t.Fatal("expected full when b is full")
	}
}

type intSink struct {
	buf  *[]int
	full bool
}

func (s intSink) Full() bool { return s.full }
func (s intSink) Push(v int) { *s.buf = append(*s.buf, v) }

func TestSplitPushPushesBoth(t *testing.T) {
	var a, b []int
	sp := NewSplitPush[int](intSink{buf: &a}, intSink{buf: &b})
	sp.Push(7)
	if len(a) != 1 || a[0] != 7 || len(b) != 1 || b[0] != 7 {
		t.Fatalf("a=%v b=%v, want both [7]", a, b)
	}
}

func TestSplitPullBothSeeEveryBuffer(t *testing.T) {
	q := queue.New[int](4)
	q.Push(1)
	q.Push(2)
	q.Push(3)
	a, b := NewSplitPull[int](QueueSource[int]{Q: &q}, 4)

	// Query b first; a must still see everything in order.
	var bGot []int
	for !b.Empty() {
		bGot = append(bGot, b.Pop())
	}
	var aGot []int
	for !a.Empty() {
		aGot = append(aGot, a.Pop())
	}
	want := []int{1, 2, 3}
	for i := range want {
		if aGot[i] != want[i] || bGot[i] != want[i] {
			t.Fatalf("aGot=%v bGot=%v, want both %v", aGot, bGot, want)
		}
	}
}

func TestTeeMirrorsToSide(t *testing.T) {
	q := queue.New[int](4)
	q.Push(10)
	q.Push(20)
	var side []int
	tee := NewTee[int](QueueSource[int]{Q: &q}, intSink{buf: &side}, 4)
	var primary []int
	for !tee.Empty() {
		primary = append(primary, tee.Pop())
	}
	if len(primary) != 2 || len(side) != 2 {
		t.Fatalf("primary=%v side=%v, want both len 2", primary, side)
	}
}

func TestTeeSideDropsOnFull(t *testing.T) {
	q := queue.New[int](2)
	q.Push(1)
	q.Push(2)
	side := intSink{buf: &[]int{}, full: true}
	tee := NewTee[int](QueueSource[int]{Q: &q}, side, 4)
	for !tee.Empty() {
		tee.Pop()
	}
	// No panic expected; side silently dropped both values.
}
