package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spc-dev/spc/pkg/protocol"
)

// ControlHandler receives decoded control messages on the host's turn.
type ControlHandler interface {
	HandleControl(c protocol.Control)
}

// ControlHandlerFunc adapts a function to ControlHandler.
type ControlHandlerFunc func(c protocol.Control)

// HandleControl calls f(c).
func (f ControlHandlerFunc) HandleControl(c protocol.Control) { f(c) }

// Dispatcher schedules work on the host's execution context.
// mainloop.Queue satisfies it.
type Dispatcher interface {
	Post(fn func()) bool
}

// Server fans state and frames out to every connected viewer and feeds
// inbound control messages back to the host.
//
// Connection opens, closes and inbound messages are queued as actions and
// applied in arrival order by a single worker. Outbound writes go through a
// per-viewer outbox, so one slow or broken viewer never holds up the others.
type Server struct {
	config   *Config
	upgrader websocket.Upgrader

	queue *actionQueue
	peers *registry

	handler    ControlHandler
	dispatcher Dispatcher
	observer   Observer

	nextHandle atomic.Uint64
	startOnce  sync.Once
	started    atomic.Bool
	stopped    atomic.Bool
	workerDone chan struct{}

	// onApply is called by the worker after each action. Tests only.
	onApply func(a action)

	logger *slog.Logger
}

// New creates a Server. Control messages are posted through dispatcher and
// delivered to handler. A nil dispatcher runs the handler on the worker
// goroutine, which is only correct for goroutine-safe handlers.
func New(config *Config, handler ControlHandler, dispatcher Dispatcher) *Server {
	if config == nil {
		config = DefaultConfig()
	} else {
		config = config.Clone()
		config.fillDefaults()
	}

	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		queue:      newActionQueue(),
		peers:      newRegistry(),
		handler:    handler,
		dispatcher: dispatcher,
		observer:   nopObserver{},
		workerDone: make(chan struct{}),
		logger:     slog.Default().With("component", "server"),
	}
}

// SetObserver installs o. Call before Start.
func (s *Server) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

// SetLogger sets the server logger. Call before Start.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger.With("component", "server")
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Start launches the action worker. It is safe to call more than once.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.run()
	})
}

// Open registers conn as a new viewer. The connection joins the broadcast
// set once the worker applies the queued subscribe.
func (s *Server) Open(conn Conn) (Handle, error) {
	if conn == nil {
		return 0, ErrNoConnection
	}
	if s.stopped.Load() {
		return 0, ErrServerClosed
	}
	h := Handle(s.nextHandle.Add(1))
	p := newPeer(s, h, uuid.NewString(), conn)
	if !s.queue.push(action{kind: actionSubscribe, handle: h, peer: p}) {
		return 0, ErrServerClosed
	}
	return h, nil
}

// Close queues removal of h. Closing an unknown or already removed handle is
// a no-op once applied.
func (s *Server) Close(h Handle) {
	s.queue.push(action{kind: actionUnsubscribe, handle: h})
}

// Receive queues an inbound message from h.
func (s *Server) Receive(h Handle, payload []byte) {
	s.queue.push(action{kind: actionMessage, handle: h, payload: payload})
}

// Send queues text for every connected viewer and returns how many accepted it.
// Text is delivered in order and is never discarded for a frame backlog.
func (s *Server) Send(text []byte) int {
	return s.broadcast(outbound{messageType: websocket.TextMessage, data: text})
}

// SendLatest queues a state snapshot under key. A snapshot with the same key
// still waiting for a viewer is replaced, so a slow viewer receives the
// newest one in place of the stale one.
func (s *Server) SendLatest(key string, text []byte) int {
	return s.broadcast(outbound{messageType: websocket.TextMessage, data: text, key: key})
}

// SendBinary offers data to every connected viewer and returns how many
// accepted it. Each viewer holds only the latest frame; an unwritten older
// one is discarded. data must not be modified afterwards.
func (s *Server) SendBinary(data []byte) int {
	return s.broadcast(outbound{messageType: websocket.BinaryMessage, data: data})
}

func (s *Server) broadcast(o outbound) int {
	sent := 0
	for _, p := range s.peers.snapshot() {
		switch p.enqueue(o) {
		case enqueued:
			sent++
		case superseded:
			sent++
			s.observer.MessageDropped(o.binary())
		case overflowed:
			s.logger.Warn("viewer text backlog full",
				"viewer_id", p.viewerID,
				"handle", p.handle,
				"limit", s.config.SendQueueSize)
			p.fail("enqueue", ErrQueueFull)
		}
	}
	return sent
}

// ConnectionCount returns the number of viewers in the broadcast set.
func (s *Server) ConnectionCount() int {
	return s.peers.len()
}

// Stopped reports whether Shutdown has been called.
func (s *Server) Stopped() bool {
	return s.stopped.Load()
}

// run is the action worker.
func (s *Server) run() {
	defer close(s.workerDone)
	for {
		a, ok := s.queue.pop()
		if !ok {
			return
		}
		s.apply(a)
		if s.onApply != nil {
			s.onApply(a)
		}
	}
}

func (s *Server) apply(a action) {
	switch a.kind {
	case actionSubscribe:
		if s.stopped.Load() {
			a.peer.close()
			return
		}
		s.peers.add(a.peer)
		go a.peer.writeLoop()
		s.observer.ConnectionOpened()
		s.logger.Info("viewer connected",
			"viewer_id", a.peer.viewerID,
			"handle", a.handle,
			"connections", s.peers.len())

	case actionUnsubscribe:
		p := s.peers.remove(a.handle)
		if p == nil {
			return
		}
		p.close()
		s.observer.ConnectionClosed()
		s.logger.Info("viewer disconnected",
			"viewer_id", p.viewerID,
			"handle", a.handle,
			"connections", s.peers.len())

	case actionMessage:
		s.applyMessage(a)
	}
}

func (s *Server) applyMessage(a action) {
	if _, ok := s.peers.get(a.handle); !ok {
		s.observer.ControlDiscarded(DiscardStaleHandle)
		return
	}

	c, err := protocol.DecodeControl(a.payload)
	if err != nil {
		reason := DiscardMalformed
		if isUnknownType(err) {
			reason = DiscardUnknownType
		}
		s.observer.ControlDiscarded(reason)
		s.logger.Debug("control discarded", "handle", a.handle, "error", err)
		return
	}

	if s.handler == nil {
		s.observer.ControlDiscarded(DiscardNoHandler)
		return
	}

	s.observer.ControlDispatched(c.Type)
	if s.dispatcher == nil {
		s.safeHandle(c)
		return
	}
	if !s.dispatcher.Post(func() { s.safeHandle(c) }) {
		s.logger.Debug("dispatcher closed, control dropped", "type", c.Type)
	}
}

// safeHandle runs the handler with panic recovery.
func (s *Server) safeHandle(c protocol.Control) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("control handler panic",
				"panic", r,
				"type", c.Type,
				"stack", string(debug.Stack()))
		}
	}()
	s.handler.HandleControl(c)
}

// Shutdown stops accepting viewers, discards queued actions, waits for the
// worker to exit and closes every remaining connection.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	pending := s.queue.close()
	for _, a := range pending {
		if a.kind == actionSubscribe {
			a.peer.close()
		}
	}
	if len(pending) > 0 {
		s.logger.Debug("discarded pending actions", "count", len(pending))
	}

	var err error
	if s.started.Load() {
		select {
		case <-s.workerDone:
		case <-ctx.Done():
			err = ctx.Err()
			s.logger.Error("shutdown error", "error", err)
		}
	}

	for _, p := range s.peers.drain() {
		p.close()
		s.observer.ConnectionClosed()
	}

	s.logger.Info("server shutdown complete")
	return err
}
