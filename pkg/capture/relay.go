package capture

import (
	"context"
	"log/slog"
)

// Sink receives frames from the relay. server.Server satisfies it.
type Sink interface {
	SendBinary(data []byte) int
}

// Relay is a single-slot handoff between the capturer and a background
// sender. Submit blocks while a frame is still unread, so capture never runs
// ahead of sending and at most one frame is buffered.
type Relay struct {
	slot chan Frame
	sink Sink

	logger *slog.Logger
}

// NewRelay creates a Relay delivering to sink.
func NewRelay(sink Sink) *Relay {
	return &Relay{
		slot:   make(chan Frame, 1),
		sink:   sink,
		logger: slog.Default().With("component", "relay"),
	}
}

// SetLogger sets the relay logger.
func (r *Relay) SetLogger(logger *slog.Logger) {
	r.logger = logger.With("component", "relay")
}

// Submit places f in the slot, blocking until the previous frame has been
// taken or ctx ends.
func (r *Relay) Submit(ctx context.Context, f Frame) error {
	select {
	case r.slot <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next takes the pending frame, blocking until one is submitted or ctx ends.
func (r *Relay) Next(ctx context.Context) (Frame, error) {
	select {
	case f := <-r.slot:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Run takes frames and sends them until ctx ends. The slot is free again
// before the send starts, so a slow send never holds up the next Submit
// for longer than one frame.
func (r *Relay) Run(ctx context.Context) error {
	for {
		f, err := r.Next(ctx)
		if err != nil {
			return nil
		}
		r.send(f)
	}
}

func (r *Relay) send(f Frame) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("frame send panic", "panic", rec)
		}
	}()
	n := r.sink.SendBinary(f.Pix)
	r.logger.Debug("frame sent", "bytes", len(f.Pix), "viewers", n)
}
