package server

import (
	"sync"
	"testing"
	"time"
)

func TestActionQueueFIFO(t *testing.T) {
	q := newActionQueue()
	for i := 1; i <= 3; i++ {
		q.push(action{kind: actionMessage, handle: Handle(i)})
	}
	for i := 1; i <= 3; i++ {
		a, ok := q.pop()
		if !ok {
			t.Fatal("pop reported closed")
		}
		if a.handle != Handle(i) || a.seq != uint64(i) {
			t.Fatalf("pop = handle %d seq %d, want %d", a.handle, a.seq, i)
		}
	}
}

func TestActionQueuePopBlocksUntilPush(t *testing.T) {
	q := newActionQueue()
	got := make(chan action, 1)
	go func() {
		a, _ := q.pop()
		got <- a
	}()

	select {
	case <-got:
		t.Fatal("pop returned on an empty queue")
	case <-time.After(20 * time.Millisecond):
	}

	q.push(action{kind: actionSubscribe, handle: 7})
	select {
	case a := <-got:
		if a.handle != 7 {
			t.Fatalf("handle = %d, want 7", a.handle)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not wake")
	}
}

func TestActionQueueCloseWakesWaiter(t *testing.T) {
	q := newActionQueue()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, ok := q.pop(); ok {
			t.Error("pop succeeded after close")
		}
	}()
	time.Sleep(10 * time.Millisecond)
	q.close()
	wg.Wait()
}

func TestActionQueueCloseDiscardsPending(t *testing.T) {
	q := newActionQueue()
	q.push(action{kind: actionSubscribe, handle: 1})
	q.push(action{kind: actionMessage, handle: 1})

	pending := q.close()
	if len(pending) != 2 {
		t.Fatalf("close returned %d actions, want 2", len(pending))
	}
	if q.push(action{kind: actionMessage}) {
		t.Fatal("push succeeded after close")
	}
	if q.len() != 0 {
		t.Fatalf("len() = %d after close", q.len())
	}
	if _, ok := q.pop(); ok {
		t.Fatal("pop succeeded after close")
	}
	if again := q.close(); again != nil {
		t.Fatal("second close returned actions")
	}
}

func TestActionKindString(t *testing.T) {
	tests := map[actionKind]string{
		actionSubscribe:   "subscribe",
		actionUnsubscribe: "unsubscribe",
		actionMessage:     "message",
		actionKind(99):    "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", k, got, want)
		}
	}
}
