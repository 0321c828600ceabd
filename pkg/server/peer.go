package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the transport a viewer is reached through. *websocket.Conn
// satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// deadlineConn is implemented by transports that support write deadlines.
type deadlineConn interface {
	SetWriteDeadline(t time.Time) error
}

type outbound struct {
	messageType int
	data        []byte

	// key names a state snapshot. A newer text message with the same key
	// replaces a pending one.
	key string
}

func (o outbound) binary() bool { return o.messageType == websocket.BinaryMessage }

// enqueueResult is what happened to a message handed to a peer.
type enqueueResult int

const (
	enqueued enqueueResult = iota
	// superseded: accepted, and an older pending message of the same kind
	// was discarded.
	superseded
	// overflowed: the text backlog is full and the peer must be dropped.
	overflowed
	rejected
)

// peer is one registered viewer. Its writer goroutine is the only caller of
// conn.WriteMessage.
//
// Text is kept in order and never discarded, except that a pending state
// snapshot is replaced by a newer one under the same key. Frames go through
// a single slot holding only the latest.
type peer struct {
	handle   Handle
	viewerID string
	conn     Conn

	mu      sync.Mutex
	text    []outbound
	frame   *outbound
	maxText int

	wake chan struct{}
	done chan struct{}

	closeOnce sync.Once
	server    *Server
}

func newPeer(s *Server, h Handle, viewerID string, conn Conn) *peer {
	return &peer{
		handle:   h,
		viewerID: viewerID,
		conn:     conn,
		maxText:  s.config.SendQueueSize,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		server:   s,
	}
}

// enqueue hands o to the writer without blocking.
func (p *peer) enqueue(o outbound) enqueueResult {
	select {
	case <-p.done:
		return rejected
	default:
	}

	res := enqueued
	p.mu.Lock()
	switch {
	case o.binary():
		if p.frame != nil {
			res = superseded
		}
		p.frame = &o
	case o.key != "":
		for i, q := range p.text {
			if q.key == o.key {
				p.text = append(p.text[:i], p.text[i+1:]...)
				res = superseded
				break
			}
		}
		fallthrough
	default:
		if len(p.text) >= p.maxText {
			p.mu.Unlock()
			return overflowed
		}
		p.text = append(p.text, o)
	}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return res
}

// next pops the oldest text message, then the pending frame.
func (p *peer) next() (outbound, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.text) > 0 {
		o := p.text[0]
		p.text[0] = outbound{}
		p.text = p.text[1:]
		return o, true
	}
	if p.frame != nil {
		o := *p.frame
		p.frame = nil
		return o, true
	}
	return outbound{}, false
}

// writeLoop sends queued messages until the peer is closed or a write fails.
func (p *peer) writeLoop() {
	s := p.server
	for {
		o, ok := p.next()
		if !ok {
			select {
			case <-p.done:
				return
			case <-p.wake:
				continue
			}
		}
		select {
		case <-p.done:
			return
		default:
		}
		if err := p.write(o); err != nil {
			select {
			case <-p.done:
			default:
				p.fail("write", err)
			}
			return
		}
		s.observer.MessageSent(o.binary(), len(o.data))
	}
}

// fail reports err, closes the peer and queues its removal.
func (p *peer) fail(op string, err error) {
	s := p.server
	cerr := &ConnError{Handle: p.handle, ViewerID: p.viewerID, Op: op, Err: err}
	s.logger.Warn("write failed, dropping viewer",
		"viewer_id", p.viewerID,
		"handle", p.handle,
		"error", err)
	s.observer.WriteFailed(cerr)
	p.close()
	s.Close(p.handle)
}

func (p *peer) write(o outbound) error {
	if d := p.server.config.WriteTimeout; d > 0 {
		if dc, ok := p.conn.(deadlineConn); ok {
			if err := dc.SetWriteDeadline(time.Now().Add(d)); err != nil {
				return err
			}
		}
	}
	return p.conn.WriteMessage(o.messageType, o.data)
}

// close stops the writer and closes the transport. Safe to call repeatedly.
func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}
