package server

import (
	"errors"
	"fmt"
)

var (
	// ErrServerClosed is returned when a connection is opened after Shutdown.
	ErrServerClosed = errors.New("server: closed")

	// ErrNoConnection is returned when a nil connection is opened.
	ErrNoConnection = errors.New("server: no connection")

	// ErrQueueFull is reported to the observer when a viewer's text backlog
	// reaches SendQueueSize. The viewer is dropped.
	ErrQueueFull = errors.New("server: send queue full")
)

// ConnError wraps a transport error with the viewer it happened on.
type ConnError struct {
	Handle   Handle
	ViewerID string
	Op       string // Operation that failed
	Err      error  // Underlying error
}

// Error returns the error message with connection context.
func (e *ConnError) Error() string {
	return fmt.Sprintf("server: viewer %s (handle %d): %s: %v", e.ViewerID, e.Handle, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConnError) Unwrap() error {
	return e.Err
}
