package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/spc-dev/spc/pkg/protocol"
)

// ServeHTTP implements http.Handler by upgrading the request to a viewer
// connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.HandleWebSocket(w, r)
}

// HandleWebSocket upgrades the request, registers the connection and reads
// control messages until the viewer goes away.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.stopped.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(s.config.MaxMessageSize)

	h, err := s.Open(conn)
	if err != nil {
		conn.Close()
		return
	}
	defer s.Close(h)

	s.readLoop(h, conn)
}

// readLoop feeds text frames into the action queue. Binary frames from
// viewers carry no meaning and are ignored.
func (s *Server) readLoop(h Handle, conn *websocket.Conn) {
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Warn("read error", "handle", h, "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		s.Receive(h, msg)
	}
}

func isUnknownType(err error) bool {
	return errors.Is(err, protocol.ErrUnknownType)
}
