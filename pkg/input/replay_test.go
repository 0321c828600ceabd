package input

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spc-dev/spc/pkg/protocol"
)

type touch struct {
	Phase Phase
	X, Y  float64
}

type key struct {
	Code int
	Down bool
}

type fakeHost struct {
	scene   SceneID
	w, h    float64
	touches []touch
	keys    []key
}

func (h *fakeHost) RunningScene() SceneID { return h.scene }
func (h *fakeHost) ViewportSize() (float64, float64) { return h.w, h.h }
func (h *fakeHost) DispatchKey(code int, down bool) { h.keys = append(h.keys, key{code, down}) }

func (h *fakeHost) DispatchTouch(p Phase, id int, x, y float64) {
	h.touches = append(h.touches, touch{p, x, y})
}

func newHost() *fakeHost {
	return &fakeHost{scene: 1, w: 440, h: 240}
}

func ctl(t protocol.ControlType, x, y float64) protocol.Control {
	return protocol.Control{Type: t, X: x, Y: y}
}

func TestPressMoveRelease(t *testing.T) {
	h := newHost()
	r := NewReplayer(h)

	r.HandleControl(ctl(protocol.ControlMouseDown, 0.5, 0.5))
	if r.State() != Pressed {
		t.Fatalf("state = %v, want pressed", r.State())
	}
	r.HandleControl(ctl(protocol.ControlMouseMove, 0.25, 1))
	r.HandleControl(ctl(protocol.ControlMouseUp, 1, 0))

	want := []touch{
		{PhaseBegan, 220, 120},
		{PhaseMoved, 110, 240},
		{PhaseEnded, 440, 0},
	}
	if diff := cmp.Diff(want, h.touches); diff != "" {
		t.Fatalf("touches mismatch (-want +got):\n%s", diff)
	}
	if r.State() != Idle {
		t.Fatalf("state = %v, want idle", r.State())
	}
}

func TestStaleSceneReleasesWithoutDispatch(t *testing.T) {
	h := newHost()
	r := NewReplayer(h)

	r.HandleControl(ctl(protocol.ControlMouseDown, 0.5, 0.5))
	h.scene = 2
	r.HandleControl(ctl(protocol.ControlMouseUp, 0.5, 0.5))

	if len(h.touches) != 1 || h.touches[0].Phase != PhaseBegan {
		t.Fatalf("touches = %+v, want only began", h.touches)
	}
	if r.State() != Idle {
		t.Fatalf("state = %v, want idle", r.State())
	}
}

func TestStaleSceneOnMoveAndCancel(t *testing.T) {
	for _, typ := range []protocol.ControlType{protocol.ControlMouseMove, protocol.ControlMouseCancel} {
		h := newHost()
		r := NewReplayer(h)
		r.HandleControl(ctl(protocol.ControlMouseDown, 0, 0))
		h.scene = 3
		r.HandleControl(ctl(typ, 0.1, 0.1))
		if len(h.touches) != 1 {
			t.Fatalf("%s: touches = %+v, want only began", typ, h.touches)
		}
		if r.State() != Idle {
			t.Fatalf("%s: state = %v, want idle", typ, r.State())
		}
	}
}

func TestCancelUsesLastPosition(t *testing.T) {
	h := newHost()
	r := NewReplayer(h)
	r.HandleControl(ctl(protocol.ControlMouseDown, 0.5, 0.5))
	r.HandleControl(ctl(protocol.ControlMouseCancel, 0, 0))

	want := []touch{{PhaseBegan, 220, 120}, {PhaseCancelled, 220, 120}}
	if diff := cmp.Diff(want, h.touches); diff != "" {
		t.Fatalf("touches mismatch (-want +got):\n%s", diff)
	}
	if r.State() != Idle {
		t.Fatalf("state = %v, want idle", r.State())
	}
}

func TestPointerMessagesIgnoredWhileIdle(t *testing.T) {
	h := newHost()
	r := NewReplayer(h)
	r.HandleControl(ctl(protocol.ControlMouseMove, 0.5, 0.5))
	r.HandleControl(ctl(protocol.ControlMouseUp, 0.5, 0.5))
	r.HandleControl(ctl(protocol.ControlMouseCancel, 0, 0))
	if len(h.touches) != 0 {
		t.Fatalf("touches = %+v, want none", h.touches)
	}
}

func TestRepeatedDownKeepsSceneBinding(t *testing.T) {
	h := newHost()
	r := NewReplayer(h)
	r.HandleControl(ctl(protocol.ControlMouseDown, 0, 0))
	h.scene = 2
	r.HandleControl(ctl(protocol.ControlMouseDown, 0, 0))
	if len(h.touches) != 2 {
		t.Fatalf("touches = %d, want 2", len(h.touches))
	}
	// still bound to scene 1
	r.HandleControl(ctl(protocol.ControlMouseUp, 0, 0))
	if len(h.touches) != 2 || r.State() != Idle {
		t.Fatalf("up on rebound scene dispatched: %+v", h.touches)
	}
}

func TestViewportScaledAtDispatch(t *testing.T) {
	h := newHost()
	r := NewReplayer(h)
	r.HandleControl(ctl(protocol.ControlMouseDown, 0.5, 0.5))
	h.w, h.h = 880, 480
	r.HandleControl(ctl(protocol.ControlMouseMove, 0.5, 0.5))
	if got := h.touches[1]; got.X != 440 || got.Y != 240 {
		t.Fatalf("move at %v,%v, want 440,240", got.X, got.Y)
	}
}

func TestKeysAreStateless(t *testing.T) {
	h := newHost()
	r := NewReplayer(h)
	r.HandleControl(protocol.Control{Type: protocol.ControlKeyDown, Key: 32})
	r.HandleControl(ctl(protocol.ControlMouseDown, 0, 0))
	r.HandleControl(protocol.Control{Type: protocol.ControlKeyUp, Key: 32})

	want := []key{{32, true}, {32, false}}
	if diff := cmp.Diff(want, h.keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if r.State() != Pressed {
		t.Fatal("key message changed pointer state")
	}
}
