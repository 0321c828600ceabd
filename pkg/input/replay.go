// Package input replays viewer control messages as synthetic host input.
package input

import (
	"log/slog"

	"github.com/spc-dev/spc/pkg/protocol"
)

// Phase is the stage of a synthetic touch.
type Phase int

const (
	PhaseBegan Phase = iota
	PhaseMoved
	PhaseEnded
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseBegan:
		return "began"
	case PhaseMoved:
		return "moved"
	case PhaseEnded:
		return "ended"
	case PhaseCancelled:
		return "cancelled"
	}
	return "unknown"
}

// SceneID identifies the scene running on the host. Zero means no scene.
type SceneID uint64

// Host receives synthetic input. Every method is called on the host's turn.
type Host interface {
	RunningScene() SceneID
	ViewportSize() (width, height float64)
	DispatchTouch(phase Phase, id int, x, y float64)
	DispatchKey(code int, down bool)
}

// State is the pointer session state.
type State int

const (
	Idle State = iota
	Pressed
)

func (s State) String() string {
	if s == Pressed {
		return "pressed"
	}
	return "idle"
}

// touchID is the id of the single synthetic touch.
const touchID = 0

// Replayer maps control messages to host input, keeping at most one pointer
// session alive. The session is bound to the scene that was running when it
// started; once that scene is replaced, further pointer messages release the
// session without reaching the host.
//
// A Replayer is not safe for concurrent use. Call HandleControl on the
// host's turn.
type Replayer struct {
	host Host

	state State
	scene SceneID

	// last touch position in host coordinates, reused by cancel
	lastX, lastY float64

	logger *slog.Logger
}

// NewReplayer creates a Replayer targeting host.
func NewReplayer(host Host) *Replayer {
	return &Replayer{
		host:   host,
		logger: slog.Default().With("component", "input"),
	}
}

// SetLogger sets the replayer logger.
func (r *Replayer) SetLogger(logger *slog.Logger) {
	r.logger = logger.With("component", "input")
}

// State returns the current pointer session state.
func (r *Replayer) State() State { return r.state }

// HandleControl applies one control message.
func (r *Replayer) HandleControl(c protocol.Control) {
	switch c.Type {
	case protocol.ControlMouseDown:
		r.down(c.X, c.Y)
	case protocol.ControlMouseMove:
		r.move(c.X, c.Y)
	case protocol.ControlMouseUp:
		r.up(c.X, c.Y)
	case protocol.ControlMouseCancel:
		r.cancel()
	case protocol.ControlKeyDown:
		r.host.DispatchKey(c.Key, true)
	case protocol.ControlKeyUp:
		r.host.DispatchKey(c.Key, false)
	}
}

// down starts a session, or restarts the live one without rebinding it.
func (r *Replayer) down(nx, ny float64) {
	if r.state == Idle {
		r.state = Pressed
		r.scene = r.host.RunningScene()
	}
	r.dispatch(PhaseBegan, nx, ny)
}

func (r *Replayer) move(nx, ny float64) {
	if !r.live() {
		return
	}
	r.dispatch(PhaseMoved, nx, ny)
}

func (r *Replayer) up(nx, ny float64) {
	if !r.live() {
		return
	}
	r.dispatch(PhaseEnded, nx, ny)
	r.release()
}

func (r *Replayer) cancel() {
	if !r.live() {
		return
	}
	r.host.DispatchTouch(PhaseCancelled, touchID, r.lastX, r.lastY)
	r.release()
}

// live reports whether a session exists and is still bound to the running
// scene. A stale session is released.
func (r *Replayer) live() bool {
	if r.state != Pressed {
		return false
	}
	if r.host.RunningScene() != r.scene {
		r.logger.Debug("scene changed, dropping touch", "bound_scene", r.scene)
		r.release()
		return false
	}
	return true
}

func (r *Replayer) release() {
	r.state = Idle
	r.scene = 0
}

// dispatch scales normalized coordinates by the viewport size at the moment
// of dispatch.
func (r *Replayer) dispatch(phase Phase, nx, ny float64) {
	w, h := r.host.ViewportSize()
	r.lastX, r.lastY = nx*w, ny*h
	r.host.DispatchTouch(phase, touchID, r.lastX, r.lastY)
}
