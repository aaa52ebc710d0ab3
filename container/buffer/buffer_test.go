package buffer

import "testing"

func TestAppendAndIterate(t *testing.T) {
	b := New[int](4)
	for _, v := range []int{1, 2, 3, 4} {
		b.Append(v)
	}
	if b.Len() != 4 {
		t.Fatalf("len = %d, want 4", b.Len())
	}
	got := b.All()
	want := []int{1, 2, 3, 4}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("All()[%d] = %d, want %d", i, got[i], v)
		}
	}
}

func TestAppendPastCapacityPanics(t *testing.T) {
	b := New[int](1)
	b.Append(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic appending past capacity")
		}
	}()
	b.Append(2)
}

func TestAtOutOfRangePanics(t *testing.T) {
	b := New[int](2)
	b.Append(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on At(len)")
		}
	}()
	_ = b.At(1)
}

func TestMoveZeroesSource(t *testing.T) {
	b := From(1, 2, 3, 4)
	moved := b.Move()
	if b.Cap() != 0 || b.Len() != 0 {
		t.Fatalf("source not zeroed: cap=%d len=%d", b.Cap(), b.Len())
	}
	if moved.Len() != 4 {
		t.Fatalf("moved len = %d, want 4", moved.Len())
	}
	got := moved.All()
	for i, v := range []int{1, 2, 3, 4} {
		if got[i] != v {
			t.Fatalf("moved[%d] = %d, want %d", i, got[i], v)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := From(1, 2)
	c := b.Clone()
	c.Set(0, 99)
	if b.At(0) != 1 {
		t.Fatal("clone mutation leaked into source")
	}
}

func TestNewBufferFromSetsLen(t *testing.T) {
	b := From(5, 6, 7)
	if b.Len() != 3 || b.Cap() != 3 {
		t.Fatalf("len=%d cap=%d, want 3/3", b.Len(), b.Cap())
	}
}

func TestZeroValueConstructorLenZero(t *testing.T) {
	b := New[byte](8)
	if b.Len() != 0 || b.Cap() != 8 {
		t.Fatalf("len=%d cap=%d, want 0/8", b.Len(), b.Cap())
	}
}
