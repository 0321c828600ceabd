package server

import (
	"errors"
	"sync"
	"testing"

	"github.com/spc-dev/spc/pkg/protocol"
)

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.MessageSent(false, 10)
	m.MessageSent(true, 100)
	m.MessageDropped(true)
	m.WriteFailed(errors.New("x"))
	m.ControlDispatched(protocol.ControlKeyDown)
	m.ControlDiscarded(DiscardMalformed)

	s := m.Snapshot()
	if s.ActiveConnections != 1 || s.TotalConnections != 2 || s.ClosedConnections != 1 || s.PeakConnections != 2 {
		t.Errorf("connection counters = %+v", s)
	}
	if s.TextSent != 1 || s.BinarySent != 1 || s.BytesSent != 110 {
		t.Errorf("send counters = %+v", s)
	}
	if s.BinaryDropped != 1 || s.TextDropped != 0 || s.WriteErrors != 1 {
		t.Errorf("failure counters = %+v", s)
	}
	if s.ControlsDispatched != 1 || s.ControlsDiscarded != 1 {
		t.Errorf("control counters = %+v", s)
	}

	m.Reset()
	s = m.Snapshot()
	if s.ActiveConnections != 1 || s.PeakConnections != 1 || s.BytesSent != 0 {
		t.Errorf("after Reset = %+v", s)
	}
}

func TestMetricsCollectorPeakUnderConcurrency(t *testing.T) {
	m := NewMetricsCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.ConnectionOpened()
		}()
	}
	wg.Wait()
	if got := m.Snapshot().PeakConnections; got != 50 {
		t.Fatalf("PeakConnections = %d, want 50", got)
	}
}

type recordingObserver struct {
	nopObserver
	opened int
}

func (r *recordingObserver) ConnectionOpened() { r.opened++ }

func TestObserversFanOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	o := Observers(a, nil, b)
	o.ConnectionOpened()
	if a.opened != 1 || b.opened != 1 {
		t.Fatalf("opened = %d,%d, want 1,1", a.opened, b.opened)
	}

	if _, ok := Observers().(nopObserver); !ok {
		t.Fatal("empty Observers should be a no-op")
	}
	if Observers(a) != Observer(a) {
		t.Fatal("single observer should be returned as is")
	}
}
