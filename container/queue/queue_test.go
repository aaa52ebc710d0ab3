package queue

import "testing"

func TestPushPopOrder(t *testing.T) {
	q := New[int](3)
	q.Push(1)
	q.Push(2)
	q.Push(3)
	if !q.Full() {
		t.Fatal("expected full")
	}
	for _, want := range []int{1, 2, 3} {
		if got := q.Pop(); got != want {
			t.Fatalf("pop = %d, want %d", got, want)
		}
	}
	if !q.Empty() {
		t.Fatal("expected empty")
	}
}

func TestWrapAround(t *testing.T) {
	q := New[int](2)
	q.Push(1)
	q.Push(2)
	if q.Pop() != 1 {
		t.Fatal("wrong pop order")
	}
	q.Push(3)
	if *q.At(0) != 2 || *q.At(1) != 3 {
		t.Fatalf("at(0)=%d at(1)=%d, want 2/3", *q.At(0), *q.At(1))
	}
}

func TestPushFullPanics(t *testing.T) {
	q := New[int](1)
	q.Push(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on push into full queue")
		}
	}()
	q.Push(2)
}

func TestPopEmptyPanics(t *testing.T) {
	q := New[int](1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on pop from empty queue")
		}
	}()
	q.Pop()
}

func TestMoveZeroesSource(t *testing.T) {
	q := New[int](2)
	q.Push(1)
	moved := q.Move()
	if q.Cap() != 0 || q.Size() != 0 {
		t.Fatalf("source not zeroed: cap=%d size=%d", q.Cap(), q.Size())
	}
	if moved.Size() != 1 || *moved.At(0) != 1 {
		t.Fatal("moved queue lost contents")
	}
}

func TestIndicesShiftAfterPop(t *testing.T) {
	q := New[int](3)
	q.Push(10)
	q.Push(20)
	q.Push(30)
	q.Pop()
	if *q.At(0) != 20 || *q.At(1) != 30 {
		t.Fatalf("at(0)=%d at(1)=%d after pop, want 20/30", *q.At(0), *q.At(1))
	}
}
