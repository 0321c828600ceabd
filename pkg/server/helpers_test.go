package server

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spc-dev/spc/pkg/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	msgs   []outbound
	fail   error
	closed bool

	// block, when non-nil, is received from before each write.
	block   chan struct{}
	writing chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{}
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	if c.block != nil {
		c.writing <- struct{}{}
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	if c.closed {
		return errors.New("fake: closed")
	}
	c.msgs = append(c.msgs, outbound{messageType: mt, data: append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) messages() []outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]outbound(nil), c.msgs...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// deadlineFailConn rejects every write deadline.
type deadlineFailConn struct {
	*fakeConn
	err error
}

func (c *deadlineFailConn) SetWriteDeadline(time.Time) error { return c.err }

type countingHandler struct {
	n    atomic.Int64
	mu   sync.Mutex
	last protocol.Control
}

func (h *countingHandler) HandleControl(c protocol.Control) {
	h.n.Add(1)
	h.mu.Lock()
	h.last = c
	h.mu.Unlock()
}

func (h *countingHandler) lastControl() protocol.Control {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// chanDispatcher hands posted callbacks to the test instead of running them.
type chanDispatcher chan func()

func (d chanDispatcher) Post(fn func()) bool {
	d <- fn
	return true
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func wsURL(t *testing.T, baseURL, path string) string {
	t.Helper()
	if !strings.HasPrefix(baseURL, "http") {
		t.Fatalf("unexpected base URL: %q", baseURL)
	}
	return "ws" + strings.TrimPrefix(baseURL, "http") + path
}

func dialWS(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial(%q) failed: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
