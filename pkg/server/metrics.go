package server

import (
	"sync/atomic"
	"time"

	"github.com/spc-dev/spc/pkg/protocol"
)

// Observer receives transport and dispatch events. Implementations are
// called from several goroutines and must be safe for concurrent use.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	MessageSent(binary bool, bytes int)
	MessageDropped(binary bool)
	WriteFailed(err error)
	ControlDispatched(t protocol.ControlType)
	ControlDiscarded(reason string)
}

// Discard reasons passed to Observer.ControlDiscarded.
const (
	DiscardStaleHandle = "stale_handle"
	DiscardMalformed   = "malformed"
	DiscardUnknownType = "unknown_type"
	DiscardNoHandler   = "no_handler"
)

type nopObserver struct{}

func (nopObserver) ConnectionOpened() {}
func (nopObserver) ConnectionClosed() {}
func (nopObserver) MessageSent(bool, int) {}
func (nopObserver) MessageDropped(bool) {}
func (nopObserver) WriteFailed(error) {}
func (nopObserver) ControlDispatched(protocol.ControlType) {}
func (nopObserver) ControlDiscarded(string) {}

// Observers fans every event out to each non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	switch len(list) {
	case 0:
		return nopObserver{}
	case 1:
		return list[0]
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) ConnectionOpened() {
	for _, o := range m {
		o.ConnectionOpened()
	}
}

func (m multiObserver) ConnectionClosed() {
	for _, o := range m {
		o.ConnectionClosed()
	}
}

func (m multiObserver) MessageSent(binary bool, bytes int) {
	for _, o := range m {
		o.MessageSent(binary, bytes)
	}
}

func (m multiObserver) MessageDropped(binary bool) {
	for _, o := range m {
		o.MessageDropped(binary)
	}
}

func (m multiObserver) WriteFailed(err error) {
	for _, o := range m {
		o.WriteFailed(err)
	}
}

func (m multiObserver) ControlDispatched(t protocol.ControlType) {
	for _, o := range m {
		o.ControlDispatched(t)
	}
}

func (m multiObserver) ControlDiscarded(reason string) {
	for _, o := range m {
		o.ControlDiscarded(reason)
	}
}

// Stats is a point-in-time view of the broadcast counters.
type Stats struct {
	// Connections
	ActiveConnections int64
	TotalConnections  int64
	ClosedConnections int64
	PeakConnections   int64

	// Outbound
	TextSent      int64
	BinarySent    int64
	BytesSent     int64
	TextDropped   int64
	BinaryDropped int64
	WriteErrors   int64

	// Inbound
	ControlsDispatched int64
	ControlsDiscarded  int64

	// Timestamp
	CollectedAt time.Time
}

// MetricsCollector is an Observer that keeps atomic counters.
type MetricsCollector struct {
	active             atomic.Int64
	total              atomic.Int64
	closed             atomic.Int64
	peak               atomic.Int64
	textSent           atomic.Int64
	binarySent         atomic.Int64
	bytesSent          atomic.Int64
	textDropped        atomic.Int64
	binaryDropped      atomic.Int64
	writeErrors        atomic.Int64
	controlsDispatched atomic.Int64
	controlsDiscarded  atomic.Int64
}

// NewMetricsCollector creates a new MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// ConnectionOpened records a viewer joining.
func (m *MetricsCollector) ConnectionOpened() {
	m.total.Add(1)
	n := m.active.Add(1)
	for {
		peak := m.peak.Load()
		if n <= peak || m.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

// ConnectionClosed records a viewer leaving.
func (m *MetricsCollector) ConnectionClosed() {
	m.active.Add(-1)
	m.closed.Add(1)
}

// MessageSent records a completed write.
func (m *MetricsCollector) MessageSent(binary bool, bytes int) {
	if binary {
		m.binarySent.Add(1)
	} else {
		m.textSent.Add(1)
	}
	m.bytesSent.Add(int64(bytes))
}

// MessageDropped records a pending message replaced by a newer one.
func (m *MetricsCollector) MessageDropped(binary bool) {
	if binary {
		m.binaryDropped.Add(1)
	} else {
		m.textDropped.Add(1)
	}
}

// WriteFailed records a transport write error.
func (m *MetricsCollector) WriteFailed(error) {
	m.writeErrors.Add(1)
}

// ControlDispatched records a control message handed to the host.
func (m *MetricsCollector) ControlDispatched(protocol.ControlType) {
	m.controlsDispatched.Add(1)
}

// ControlDiscarded records an inbound message that was dropped.
func (m *MetricsCollector) ControlDiscarded(string) {
	m.controlsDiscarded.Add(1)
}

// Snapshot returns current metrics.
func (m *MetricsCollector) Snapshot() *Stats {
	return &Stats{
		ActiveConnections:  m.active.Load(),
		TotalConnections:   m.total.Load(),
		ClosedConnections:  m.closed.Load(),
		PeakConnections:    m.peak.Load(),
		TextSent:           m.textSent.Load(),
		BinarySent:         m.binarySent.Load(),
		BytesSent:          m.bytesSent.Load(),
		TextDropped:        m.textDropped.Load(),
		BinaryDropped:      m.binaryDropped.Load(),
		WriteErrors:        m.writeErrors.Load(),
		ControlsDispatched: m.controlsDispatched.Load(),
		ControlsDiscarded:  m.controlsDiscarded.Load(),
		CollectedAt:        time.Now(),
	}
}

// Reset resets all counters except the active connection gauge.
func (m *MetricsCollector) Reset() {
	m.total.Store(0)
	m.closed.Store(0)
	m.peak.Store(m.active.Load())
	m.textSent.Store(0)
	m.binarySent.Store(0)
	m.bytesSent.Store(0)
	m.textDropped.Store(0)
	m.binaryDropped.Store(0)
	m.writeErrors.Store(0)
	m.controlsDispatched.Store(0)
	m.controlsDiscarded.Store(0)
}
