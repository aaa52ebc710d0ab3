package reqqueue

import (
	"testing"

	"riglink-core/errcode"
)

type fakeDevice struct{ name string }

func TestFIFOOrderSingleFlight(t *testing.T) {
	e := New[fakeDevice](4)
	var order []string
	var started []string

	push := func(name string) {
		e.Push(0, Request[fakeDevice]{
			Device: fakeDevice{name: name},
			Start: func(req *Request[fakeDevice]) error {
				started = append(started, req.Device.name)
				return nil
			},
			Callback: func(req *Request[fakeDevice], err error) {
				order = append(order, req.Device.name)
			},
		})
	}

	push("A")
	push("B")
	push("C")

	if len(started) != 1 || started[0] != "A" {
		t.Fatalf("started = %v, want only A started (single in-flight slot)", started)
	}

	e.Complete(1)
	e.Complete(2)
	e.Complete(3)

	want := []string{"A", "B", "C"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestTryPushDropsWhenFull(t *testing.T) {
	e := New[fakeDevice](1)
	// Fill the in-flight slot and the one queue slot.
	e.Push(0, Request[fakeDevice]{Start: func(*Request[fakeDevice]) error { return nil }})
	accepted := e.TryPush(0, Request[fakeDevice]{})
	if !accepted {
		t.Fatal("expected the first queued slot to accept")
	}
	accepted = e.TryPush(0, Request[fakeDevice]{})
	if accepted {
		t.Fatal("expected TryPush to drop once the queue is full")
	}
}

func TestErrorAbortsWithoutSuccessCallback(t *testing.T) {
	e := New[fakeDevice](2)
	var gotErr error
	var success bool

	e.Push(0, Request[fakeDevice]{
		Start: func(*Request[fakeDevice]) error { return nil },
		Callback: func(req *Request[fakeDevice], err error) {
			if err == nil {
				success = true
			}
			gotErr = err
		},
	})
	e.Error(1, errcode.Error)

	if success {
		t.Fatal("aborted request must not receive a success callback")
	}
	if gotErr != errcode.Error {
		t.Fatalf("gotErr = %v, want errcode.Error", gotErr)
	}
}

func TestDeadlineExpiryAborts(t *testing.T) {
	e := New[fakeDevice](2)
	var gotErr error

	e.Push(0, Request[fakeDevice]{
		DeadlineMs: 10,
		Start:      func(*Request[fakeDevice]) error { return nil },
		Callback:   func(req *Request[fakeDevice], err error) { gotErr = err },
	})

	e.CheckDeadline(5) // before deadline: no-op
	if gotErr != nil {
		t.Fatal("deadline should not have expired yet")
	}

	e.CheckDeadline(11) // one past the deadline
	if gotErr != errcode.Timeout {
		t.Fatalf("gotErr = %v, want errcode.Timeout", gotErr)
	}
}

func TestStartErrorAbortsImmediately(t *testing.T) {
	e := New[fakeDevice](2)
	var gotErr error
	e.Push(0, Request[fakeDevice]{
		Start:    func(*Request[fakeDevice]) error { return errcode.Busy },
		Callback: func(req *Request[fakeDevice], err error) { gotErr = err },
	})
	if gotErr != errcode.Busy {
		t.Fatalf("gotErr = %v, want errcode.Busy", gotErr)
	}
}
