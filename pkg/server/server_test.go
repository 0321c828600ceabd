package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/spc-dev/spc/pkg/protocol"
)

var keyDown = []byte(`{"type":"key_down","key":1}`)

func TestActionsAppliedInArrivalOrder(t *testing.T) {
	handler := &countingHandler{}
	s := New(nil, handler, nil)

	var (
		mu         sync.Mutex
		lastSeq    uint64
		outOfOrder int
	)
	var applied atomic.Int64
	s.onApply = func(a action) {
		mu.Lock()
		if a.seq <= lastSeq {
			outOfOrder++
		}
		lastSeq = a.seq
		mu.Unlock()
		applied.Add(1)
	}
	s.Start()
	defer s.Shutdown(context.Background())

	const producers = 8
	const perProducer = 25

	var pushed atomic.Int64
	var keptMu sync.Mutex
	kept := map[Handle]*fakeConn{}
	var dropped []*fakeConn

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				conn := newFakeConn()
				h, err := s.Open(conn)
				if err != nil {
					t.Errorf("Open: %v", err)
					return
				}
				s.Receive(h, keyDown)
				s.Receive(h, keyDown)
				pushed.Add(3)

				if i%2 == 1 {
					s.Close(h)
					// Arrives after the unsubscribe and must be discarded.
					s.Receive(h, keyDown)
					pushed.Add(2)
					keptMu.Lock()
					dropped = append(dropped, conn)
					keptMu.Unlock()
					continue
				}
				keptMu.Lock()
				kept[h] = conn
				keptMu.Unlock()
			}
		}()
	}
	wg.Wait()

	waitFor(t, "all actions applied", func() bool { return applied.Load() == pushed.Load() })

	mu.Lock()
	if outOfOrder != 0 {
		t.Errorf("%d actions applied out of arrival order", outOfOrder)
	}
	mu.Unlock()

	if got, want := s.ConnectionCount(), len(kept); got != want {
		t.Errorf("ConnectionCount() = %d, want %d", got, want)
	}
	for h := range kept {
		if _, ok := s.peers.get(h); !ok {
			t.Errorf("handle %d missing from registry", h)
		}
	}
	for _, c := range dropped {
		if !c.isClosed() {
			t.Error("closed viewer's connection was not closed")
		}
	}
	if got, want := handler.n.Load(), int64(producers*perProducer*2); got != want {
		t.Errorf("dispatched %d controls, want %d", got, want)
	}
}

func TestFanOutSurvivesFailingConnection(t *testing.T) {
	metrics := NewMetricsCollector()
	s := New(nil, nil, nil)
	s.SetObserver(metrics)
	s.Start()
	defer s.Shutdown(context.Background())

	const n = 5
	const failing = 2
	conns := make([]*fakeConn, n)
	for i := range conns {
		conns[i] = newFakeConn()
		if i == failing {
			conns[i].fail = errors.New("broken pipe")
		}
		if _, err := s.Open(conns[i]); err != nil {
			t.Fatalf("Open: %v", err)
		}
	}
	waitFor(t, "viewers registered", func() bool { return s.ConnectionCount() == n })

	if got := s.Send([]byte(`{"type":"state"}`)); got != n {
		t.Fatalf("Send() = %d, want %d", got, n)
	}

	for i, c := range conns {
		if i == failing {
			continue
		}
		c := c
		waitFor(t, "text delivery", func() bool { return len(c.messages()) == 1 })
	}
	waitFor(t, "failing viewer removed", func() bool { return s.ConnectionCount() == n-1 })

	frame := []byte{1, 2, 3, 4}
	if got := s.SendBinary(frame); got != n-1 {
		t.Fatalf("SendBinary() = %d, want %d", got, n-1)
	}
	for i, c := range conns {
		if i == failing {
			continue
		}
		c := c
		waitFor(t, "binary delivery", func() bool { return len(c.messages()) == 2 })
		msgs := c.messages()
		if msgs[0].messageType != websocket.TextMessage || msgs[1].messageType != websocket.BinaryMessage {
			t.Fatalf("conn %d got types %d,%d", i, msgs[0].messageType, msgs[1].messageType)
		}
		if string(msgs[1].data) != string(frame) {
			t.Fatalf("conn %d got %v, want %v", i, msgs[1].data, frame)
		}
	}

	if !conns[failing].isClosed() {
		t.Error("failing connection was not closed")
	}
	stats := metrics.Snapshot()
	if stats.WriteErrors != 1 {
		t.Errorf("WriteErrors = %d, want 1", stats.WriteErrors)
	}
	if stats.ActiveConnections != n-1 {
		t.Errorf("ActiveConnections = %d, want %d", stats.ActiveConnections, n-1)
	}
}

// blockedViewer opens a viewer whose writer is parked inside WriteMessage
// with first until release is called.
func blockedViewer(t *testing.T, s *Server, first func()) (conn *fakeConn, release func()) {
	t.Helper()
	conn = newFakeConn()
	conn.block = make(chan struct{})
	conn.writing = make(chan struct{}, 8)
	s.Open(conn)
	waitFor(t, "viewer registered", func() bool { return s.ConnectionCount() >= 1 })
	first()
	<-conn.writing
	var once sync.Once
	return conn, func() { once.Do(func() { close(conn.block) }) }
}

func TestTextSurvivesFrameBacklog(t *testing.T) {
	s := New(DefaultConfig().WithSendQueueSize(4), nil, nil)
	metrics := NewMetricsCollector()
	s.SetObserver(metrics)
	s.Start()
	defer s.Shutdown(context.Background())

	slow, release := blockedViewer(t, s, func() { s.SendBinary([]byte("frame-0")) })
	defer release()
	fast := newFakeConn()
	s.Open(fast)
	waitFor(t, "viewers registered", func() bool { return s.ConnectionCount() == 2 })

	frame := func(i int) []byte {
		b := make([]byte, 64*1024)
		copy(b, fmt.Sprintf("frame-%d", i))
		return b
	}
	for i := 1; i <= 40; i++ {
		if got := s.SendBinary(frame(i)); got != 2 {
			t.Fatalf("SendBinary(%d) = %d, want 2", i, got)
		}
	}
	levelData := []byte(`{"type":"state","name":"level_data"}`)
	if got := s.Send(levelData); got != 2 {
		t.Fatalf("Send(level_data) = %d, want 2", got)
	}

	release()
	waitFor(t, "slow delivery", func() bool { return len(slow.messages()) == 3 })
	got := slow.messages()
	if string(got[0].data) != "frame-0" {
		t.Errorf("first message = %q, want frame-0", got[0].data)
	}
	if got[1].binary() || !bytes.Equal(got[1].data, levelData) {
		t.Errorf("second message = %q, want level_data text", got[1].data)
	}
	if !got[2].binary() || !bytes.Equal(got[2].data, frame(40)) {
		t.Errorf("third message is not the latest frame")
	}

	waitFor(t, "fast delivery", func() bool {
		for _, m := range fast.messages() {
			if bytes.Equal(m.data, levelData) {
				return true
			}
		}
		return false
	})
	stats := metrics.Snapshot()
	if stats.TextDropped != 0 {
		t.Errorf("TextDropped = %d, want 0", stats.TextDropped)
	}
	if stats.BinaryDropped < 39 {
		t.Errorf("BinaryDropped = %d, want at least 39", stats.BinaryDropped)
	}
	if s.ConnectionCount() != 2 {
		t.Errorf("ConnectionCount() = %d, want 2", s.ConnectionCount())
	}
}

func TestSnapshotReplacedByNewerOne(t *testing.T) {
	s := New(nil, nil, nil)
	metrics := NewMetricsCollector()
	s.SetObserver(metrics)
	s.Start()
	defer s.Shutdown(context.Background())

	slow, release := blockedViewer(t, s, func() { s.Send([]byte("event-0")) })
	defer release()

	s.SendLatest("game_state", []byte("game-1"))
	s.Send([]byte("event-1"))
	s.SendLatest("game_state", []byte("game-2"))
	s.SendLatest("live_level_data", []byte("live-1"))

	release()
	want := []string{"event-0", "event-1", "game-2", "live-1"}
	waitFor(t, "slow delivery", func() bool { return len(slow.messages()) == len(want) })
	var got []string
	for _, m := range slow.messages() {
		got = append(got, string(m.data))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delivered messages mismatch (-want +got):\n%s", diff)
	}
	if n := metrics.Snapshot().TextDropped; n != 1 {
		t.Errorf("TextDropped = %d, want 1", n)
	}
}

func TestTextBacklogOverflowDropsViewer(t *testing.T) {
	s := New(DefaultConfig().WithSendQueueSize(2), nil, nil)
	metrics := NewMetricsCollector()
	s.SetObserver(metrics)
	s.Start()
	defer s.Shutdown(context.Background())

	slow, release := blockedViewer(t, s, func() { s.Send([]byte("event-0")) })
	defer release()
	fast := newFakeConn()
	s.Open(fast)
	waitFor(t, "viewers registered", func() bool { return s.ConnectionCount() == 2 })

	s.Send([]byte("event-1"))
	s.Send([]byte("event-2"))
	if got := s.Send([]byte("event-3")); got != 1 {
		t.Fatalf("Send past the backlog limit = %d, want 1", got)
	}

	waitFor(t, "slow viewer removed", func() bool { return s.ConnectionCount() == 1 })
	if !slow.isClosed() {
		t.Error("slow connection was not closed")
	}
	release()
	waitFor(t, "fast delivery", func() bool { return len(fast.messages()) == 3 })

	stats := metrics.Snapshot()
	if stats.WriteErrors != 1 {
		t.Errorf("WriteErrors = %d, want 1", stats.WriteErrors)
	}
	if stats.TextDropped != 0 {
		t.Errorf("TextDropped = %d, want 0", stats.TextDropped)
	}
}

func TestWriteDeadlineFailureDropsViewer(t *testing.T) {
	s := New(DefaultConfig().WithWriteTimeout(time.Second), nil, nil)
	metrics := NewMetricsCollector()
	s.SetObserver(metrics)
	s.Start()
	defer s.Shutdown(context.Background())

	conn := &deadlineFailConn{fakeConn: newFakeConn(), err: errors.New("set deadline: use of closed connection")}
	s.Open(conn)
	waitFor(t, "viewer registered", func() bool { return s.ConnectionCount() == 1 })

	s.Send([]byte("x"))
	waitFor(t, "viewer removed", func() bool { return s.ConnectionCount() == 0 })
	if n := len(conn.messages()); n != 0 {
		t.Errorf("%d messages written past a failed deadline", n)
	}
	if !conn.isClosed() {
		t.Error("connection was not closed")
	}
	if n := metrics.Snapshot().WriteErrors; n != 1 {
		t.Errorf("WriteErrors = %d, want 1", n)
	}
}

func TestControlsDispatchedThroughDispatcher(t *testing.T) {
	handler := &countingHandler{}
	dispatch := make(chanDispatcher, 4)
	s := New(nil, handler, dispatch)
	s.Start()
	defer s.Shutdown(context.Background())

	h, _ := s.Open(newFakeConn())
	s.Receive(h, []byte(`{"type":"mouse_down","x":0.5,"y":0.25}`))

	fn := <-dispatch
	if handler.n.Load() != 0 {
		t.Fatal("handler ran before the dispatcher executed the callback")
	}
	fn()
	if handler.n.Load() != 1 {
		t.Fatalf("handler calls = %d, want 1", handler.n.Load())
	}
	want := protocol.Control{Type: protocol.ControlMouseDown, X: 0.5, Y: 0.25}
	if got := handler.lastControl(); got != want {
		t.Fatalf("control = %+v, want %+v", got, want)
	}
}

func TestMalformedAndUnknownControlsDiscarded(t *testing.T) {
	handler := &countingHandler{}
	metrics := NewMetricsCollector()
	s := New(nil, handler, nil)
	s.SetObserver(metrics)
	var applied atomic.Int64
	s.onApply = func(action) { applied.Add(1) }
	s.Start()
	defer s.Shutdown(context.Background())

	h, _ := s.Open(newFakeConn())
	s.Receive(h, []byte(`not json`))
	s.Receive(h, []byte(`{"type":"scroll"}`))
	s.Receive(h, []byte(`{"x":1}`))
	s.Receive(h, keyDown)
	s.Receive(Handle(9999), keyDown)

	waitFor(t, "actions applied", func() bool { return applied.Load() == 6 })
	if handler.n.Load() != 1 {
		t.Fatalf("handler calls = %d, want 1", handler.n.Load())
	}
	stats := metrics.Snapshot()
	if stats.ControlsDiscarded != 4 || stats.ControlsDispatched != 1 {
		t.Fatalf("discarded=%d dispatched=%d, want 4 and 1", stats.ControlsDiscarded, stats.ControlsDispatched)
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	var calls atomic.Int64
	s := New(nil, ControlHandlerFunc(func(protocol.Control) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	}), nil)
	s.Start()
	defer s.Shutdown(context.Background())

	h, _ := s.Open(newFakeConn())
	s.Receive(h, keyDown)
	s.Receive(h, keyDown)
	waitFor(t, "second control", func() bool { return calls.Load() == 2 })
}

func TestShutdown(t *testing.T) {
	s := New(nil, nil, nil)
	s.Start()

	live := newFakeConn()
	s.Open(live)
	waitFor(t, "viewer registered", func() bool { return s.ConnectionCount() == 1 })

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !live.isClosed() {
		t.Error("live connection not closed")
	}
	if s.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount() = %d after shutdown", s.ConnectionCount())
	}
	if _, err := s.Open(newFakeConn()); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Open after shutdown: err = %v, want ErrServerClosed", err)
	}
	if got := s.Send([]byte("x")); got != 0 {
		t.Errorf("Send after shutdown = %d, want 0", got)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestShutdownBeforeStartClosesPendingConnections(t *testing.T) {
	s := New(nil, nil, nil)
	pending := newFakeConn()
	if _, err := s.Open(pending); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !pending.isClosed() {
		t.Fatal("connection of discarded subscribe left open")
	}
}

func TestOpenNilConnection(t *testing.T) {
	s := New(nil, nil, nil)
	if _, err := s.Open(nil); !errors.Is(err, ErrNoConnection) {
		t.Fatalf("err = %v, want ErrNoConnection", err)
	}
}

func TestHandlesAreNotReused(t *testing.T) {
	s := New(nil, nil, nil)
	seen := map[Handle]bool{}
	for i := 0; i < 100; i++ {
		h, err := s.Open(newFakeConn())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if seen[h] {
			t.Fatalf("handle %d reused", h)
		}
		seen[h] = true
		s.Close(h)
	}
	s.Shutdown(context.Background())
}
