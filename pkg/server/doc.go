// Package server is the viewer-facing broadcast server.
//
// Viewers connect over WebSocket. Every connection is owned by one registry
// and identified by a Handle; handles are never reused.
//
// # Action Queue
//
// Transport callbacks never touch the registry directly. They queue actions:
//
//   - Subscribe: a connection opened
//   - Unsubscribe: a connection closed
//   - Message: a text frame arrived
//
// A single worker pops actions in arrival order and applies them. The queue
// lock is released before an action is applied and the registry has its own
// lock, so the two are never held together. A Message whose handle has
// already been removed is discarded.
//
// # Control Dispatch
//
// Message payloads are decoded with protocol.DecodeControl. Malformed
// messages and unknown types are dropped silently. Decoded controls are
// posted to a Dispatcher so the ControlHandler runs on the host's own turn,
// never on the worker.
//
// # Fan-out
//
// Send, SendLatest and SendBinary hand the payload to each viewer's outbox
// without blocking. Text is written in order ahead of frames and is never
// discarded; SendLatest replaces a pending snapshot with the same key. Frames
// occupy a single slot per viewer, so a slow viewer skips to the newest
// frame. Each viewer has a writer goroutine; a write error, or a text backlog
// past SendQueueSize, closes that viewer only.
//
// # Example Usage
//
//	loop := mainloop.New(nil)
//	srv := server.New(nil, replayer, loop)
//	srv.Start()
//	http.Handle("/ws", srv)
//
//	// on the host's turn
//	loop.Drain()
//	srv.Send(stateJSON)
//
// # Thread Safety
//
// Open, Close, Receive, Send, SendBinary and ConnectionCount are safe for
// concurrent use. SetObserver and SetLogger must be called before Start.
package server
