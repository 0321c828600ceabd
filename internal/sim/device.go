package sim

import (
	"errors"

	"github.com/spc-dev/spc/pkg/capture"
	"github.com/spc-dev/spc/pkg/state"
)

// ErrBadTarget is returned for non-positive target sizes.
var ErrBadTarget = errors.New("sim: invalid target size")

type target struct {
	w, h int
	pix  []byte
}

// device is a software framebuffer implementing capture.Device. Target zero
// is the window and is never read back.
type device struct {
	world   *World
	targets map[capture.TargetID]*target
	next    capture.TargetID
	bound   capture.TargetID

	// blank makes RenderScene report no scene.
	blank bool
}

func newDevice(w *World) *device {
	return &device{world: w, targets: map[capture.TargetID]*target{}, next: 1}
}

// SetBlank simulates a frame with no scene attached.
func (d *device) SetBlank(blank bool) { d.blank = blank }

func (d *device) CreateTarget(width, height int) (capture.TargetID, error) {
	if width <= 0 || height <= 0 {
		return 0, ErrBadTarget
	}
	id := d.next
	d.next++
	d.targets[id] = &target{w: width, h: height, pix: make([]byte, capture.Size(width, height))}
	return id, nil
}

func (d *device) DeleteTarget(id capture.TargetID) {
	delete(d.targets, id)
	if d.bound == id {
		d.bound = 0
	}
}

func (d *device) BoundTarget() capture.TargetID { return d.bound }

func (d *device) BindTarget(id capture.TargetID) { d.bound = id }

func (d *device) Clear() {
	if t := d.targets[d.bound]; t != nil {
		clear(t.pix)
	}
}

func (d *device) ReadPixels(dst []byte, width, height int) {
	if t := d.targets[d.bound]; t != nil && t.w == width && t.h == height {
		copy(dst, t.pix)
	}
}

// RenderScene draws the sky, the ground band, objects and the player into
// the bound target. The camera follows the player horizontally.
func (d *device) RenderScene() bool {
	if d.blank {
		return false
	}
	t := d.targets[d.bound]
	if t == nil {
		return true
	}
	w := d.world

	sky := state.ColorRGB{R: 20, G: 20, B: 40}
	ground := state.ColorRGB{R: 10, G: 40, B: 120}
	if l, ok := w.activeLayer(); ok {
		if c, ok := l.ColorChannel(state.ChannelBackground); ok {
			sky = c
		}
		if c, ok := l.ColorChannel(state.ChannelGround); ok {
			ground = c
		}
	}

	scale := float64(t.w) / w.viewW
	groundRow := t.h - int(groundY*float64(t.h)/w.viewH)
	for y := 0; y < t.h; y++ {
		c := sky
		if y >= groundRow {
			c = ground
		}
		fillRow(t, y, 0, t.w, c)
	}
	if w.screen == ScreenMenu {
		return true
	}

	camX := w.player.X - w.viewW/4
	toPixel := func(x, y float64) (int, int) {
		return int((x - camX) * scale), t.h - int(y*float64(t.h)/w.viewH)
	}
	for _, o := range w.objects {
		if o.Anticheat || !o.Visible {
			continue
		}
		px, py := toPixel(o.X, o.Y)
		fillRect(t, px-3, py-3, 6, 6, state.ColorRGB{R: 230, G: 230, B: 230})
	}
	if w.screen == ScreenPlaying {
		px, py := toPixel(w.player.X, w.player.Y)
		fillRect(t, px-5, py-10, 10, 10, state.ColorRGB{R: 255, G: 220, B: 0})
	}
	return true
}

func (w *World) activeLayer() (state.Layer, bool) {
	if pl, ok := w.PlayLayer(); ok {
		return pl, true
	}
	return w.EditorLayer()
}

func fillRect(t *target, x, y, width, height int, c state.ColorRGB) {
	for row := y; row < y+height; row++ {
		fillRow(t, row, x, x+width, c)
	}
}

func fillRow(t *target, y, x0, x1 int, c state.ColorRGB) {
	if y < 0 || y >= t.h {
		return
	}
	x0, x1 = max(x0, 0), min(x1, t.w)
	for x := x0; x < x1; x++ {
		i := (y*t.w + x) * 4
		t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3] = c.R, c.G, c.B, 255
	}
}
