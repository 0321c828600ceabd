// Package sim is a small software-rendered stand-in for the host
// application. It drives the mirror end to end in `spc serve` and in tests.
package sim

import (
	_ "embed"
	"fmt"
	"math"

	"github.com/spc-dev/spc/pkg/input"
	"github.com/spc-dev/spc/pkg/level"
	"github.com/spc-dev/spc/pkg/state"
)

//go:embed demo_level.json
var demoLevel []byte

// Key codes understood by the world.
const (
	KeyEscape = 27
	KeySpace  = 32
	KeyUp     = 38
	KeyE      = 69
	KeyP      = 80
)

const (
	speed        = 311.58 // units per second
	gravity      = -2400.0
	jumpVelocity = 700.0
	groundY      = 105.0
	levelLength  = 1800.0
	levelID      = 128
)

// Screen is what the world currently shows.
type Screen int

const (
	ScreenMenu Screen = iota
	ScreenPlaying
	ScreenEditor
)

func (s Screen) String() string {
	switch s {
	case ScreenMenu:
		return "menu"
	case ScreenPlaying:
		return "playing"
	case ScreenEditor:
		return "editor"
	}
	return fmt.Sprintf("Screen(%d)", int(s))
}

// World is the simulated host. It is single-threaded: every method must be
// called from the goroutine that drives Step.
type World struct {
	screen Screen
	paused bool
	scene  input.SceneID

	viewW, viewH float64

	// guideline is the level's free-form field; it outlives sessions like a
	// saved level would.
	guideline string
	objects   []state.ObjectInfo
	nextObj   uint64

	player  state.PlayerInfo
	holding bool

	notify func(state.HostEvent)

	*device
}

// New creates a world on the main menu, viewed through a viewW×viewH
// window, with the demo level payload already embedded.
func New(viewW, viewH float64) (*World, error) {
	w := &World{
		screen: ScreenMenu,
		scene:  1,
		viewW:  viewW,
		viewH:  viewH,
		notify: func(state.HostEvent) {},
	}
	w.device = newDevice(w)

	d, err := level.Unmarshal(demoLevel)
	if err != nil {
		return nil, fmt.Errorf("sim: demo level: %w", err)
	}
	field, err := level.Encode(d, "0~0.8~30~0.9")
	if err != nil {
		return nil, fmt.Errorf("sim: demo level: %w", err)
	}
	w.guideline = field
	w.objects = demoObjects()
	w.nextObj = uint64(len(w.objects)) + 1
	return w, nil
}

func demoObjects() []state.ObjectInfo {
	objs := []state.ObjectInfo{
		{X: -100, Y: -100, ObjectID: 8, Anticheat: true, NativeID: 1},
	}
	for i := 0; i < 12; i++ {
		id := 1
		if i%3 == 2 {
			id = 8
		}
		objs = append(objs, state.ObjectInfo{
			X:        300 + float64(i)*120,
			Y:        groundY + 15,
			ScaleX:   1,
			ScaleY:   1,
			Opacity:  255,
			Visible:  true,
			ObjectID: id,
			NativeID: uint64(i + 2),
		})
	}
	return objs
}

// SetNotifier registers the hook receiving edit and session events.
func (w *World) SetNotifier(fn func(state.HostEvent)) {
	if fn == nil {
		fn = func(state.HostEvent) {}
	}
	w.notify = fn
}

// Screen returns the current screen.
func (w *World) Screen() Screen { return w.screen }

// Paused reports whether play is paused.
func (w *World) Paused() bool { return w.paused }

// Player returns player 1.
func (w *World) Player() state.PlayerInfo { return w.player }

// StartLevel enters play mode from the menu.
func (w *World) StartLevel() {
	if w.screen != ScreenMenu {
		return
	}
	w.screen = ScreenPlaying
	w.paused = false
	w.scene++
	w.resetPlayer()
	w.notify(state.LevelReset)
}

// StartEditor opens the editor from the menu.
func (w *World) StartEditor() {
	if w.screen != ScreenMenu {
		return
	}
	w.screen = ScreenEditor
	w.scene++
	w.notify(state.EditorStart)
}

// Exit returns to the menu.
func (w *World) Exit() {
	switch w.screen {
	case ScreenPlaying:
		w.screen = ScreenMenu
		w.paused = false
		w.scene++
		w.notify(state.LevelExit)
	case ScreenEditor:
		w.screen = ScreenMenu
		w.scene++
		w.notify(state.EditorExit)
	}
}

// TogglePause pauses or resumes play.
func (w *World) TogglePause() {
	if w.screen == ScreenPlaying {
		w.paused = !w.paused
	}
}

// AddObject places a block in the editor.
func (w *World) AddObject(x, y float64) {
	if w.screen != ScreenEditor {
		return
	}
	w.objects = append(w.objects, state.ObjectInfo{
		X: x, Y: y, ScaleX: 1, ScaleY: 1, Opacity: 255, Visible: true,
		ObjectID: 1, NativeID: w.nextObj,
	})
	w.nextObj++
	w.notify(state.ObjectAdded)
}

func (w *World) resetPlayer() {
	w.player = state.PlayerInfo{X: 0, Y: groundY}
}

// Step advances the simulation by dt seconds.
func (w *World) Step(dt float64) {
	if w.screen != ScreenPlaying || w.paused {
		return
	}
	p := &w.player
	p.X += speed * dt
	if p.X >= levelLength {
		w.resetPlayer()
		w.notify(state.LevelReset)
		return
	}

	p.Flags = flagsAt(p.X)
	switch {
	case p.Flags.Ship:
		if w.holding {
			p.YVelocity += 1200 * dt
		} else {
			p.YVelocity += gravity / 2 * dt
		}
	default:
		onGround := p.Y <= groundY
		if onGround && w.holding {
			p.YVelocity = jumpVelocity
		}
		p.YVelocity += gravity * dt
	}
	p.Y += p.YVelocity * dt
	if p.Y <= groundY {
		p.Y = groundY
		p.YVelocity = 0
		p.Rotation = math.Round(p.Rotation/90) * 90
	} else {
		p.Rotation = math.Mod(p.Rotation+400*dt, 360)
	}
	if ceiling := groundY + 300; p.Y > ceiling {
		p.Y = ceiling
		p.YVelocity = 0
	}
}

// flagsAt switches the movement mode by section of the level.
func flagsAt(x float64) state.MovementFlags {
	switch int(x / (levelLength / 4)) {
	case 1:
		return state.MovementFlags{Ship: true}
	case 2:
		return state.MovementFlags{Ball: true}
	case 3:
		return state.MovementFlags{Dart: true}
	}
	return state.MovementFlags{}
}

// PlayLayer implements state.Host.
func (w *World) PlayLayer() (state.PlayLayer, bool) {
	if w.screen != ScreenPlaying {
		return nil, false
	}
	return layer{w}, true
}

// EditorLayer implements state.Host.
func (w *World) EditorLayer() (state.Layer, bool) {
	if w.screen != ScreenEditor {
		return nil, false
	}
	return layer{w}, true
}

// RunningScene implements input.Host.
func (w *World) RunningScene() input.SceneID { return w.scene }

// ViewportSize implements input.Host.
func (w *World) ViewportSize() (float64, float64) { return w.viewW, w.viewH }

// SetViewportSize resizes the window.
func (w *World) SetViewportSize(width, height float64) {
	w.viewW, w.viewH = width, height
}

// DispatchTouch implements input.Host. On the menu the left half starts the
// level and the right half opens the editor; in play a touch holds jump; in
// the editor a tap places a block.
func (w *World) DispatchTouch(phase input.Phase, _ int, x, y float64) {
	switch phase {
	case input.PhaseBegan:
		switch w.screen {
		case ScreenMenu:
			if x < w.viewW/2 {
				w.StartLevel()
			} else {
				w.StartEditor()
			}
		case ScreenPlaying:
			w.holding = true
		case ScreenEditor:
			w.AddObject(x, w.viewH-y)
		}
	case input.PhaseEnded, input.PhaseCancelled:
		w.holding = false
	}
}

// DispatchKey implements input.Host.
func (w *World) DispatchKey(code int, down bool) {
	switch code {
	case KeySpace, KeyUp:
		w.holding = down
		return
	}
	if !down {
		return
	}
	switch code {
	case KeyEscape:
		w.Exit()
	case KeyP:
		w.TogglePause()
	case KeyE:
		if w.screen == ScreenMenu {
			w.StartEditor()
		}
	}
}

// layer exposes the loaded level. Play and editor share one level.
type layer struct {
	w *World
}

func (l layer) Player(n int) (state.PlayerInfo, bool) {
	if n != 1 {
		return state.PlayerInfo{}, false
	}
	return l.w.player, true
}

func (l layer) ColorChannel(id int) (state.ColorRGB, bool) {
	hue := l.w.player.X / levelLength
	switch id {
	case state.ChannelBackground:
		return hsv(hue, 0.6, 0.7), true
	case state.ChannelGround:
		return hsv(hue+0.5, 0.7, 0.5), true
	case state.ChannelLine:
		return state.ColorRGB{R: 255, G: 255, B: 255}, true
	case state.ChannelGround2:
		return hsv(hue+0.5, 0.7, 0.35), true
	}
	return state.ColorRGB{}, false
}

func (l layer) LevelID() uint32        { return levelID }
func (l layer) LevelLength() float64   { return levelLength }
func (l layer) GuidelineField() string { return l.w.guideline }

func (l layer) SetGuidelineField(field string) { l.w.guideline = field }

func (l layer) Objects() []state.ObjectInfo {
	return append([]state.ObjectInfo(nil), l.w.objects...)
}

func (l layer) IsPaused() bool { return l.w.paused }

func hsv(h, s, v float64) state.ColorRGB {
	h = h - math.Floor(h)
	i := math.Floor(h * 6)
	f := h*6 - i
	p, q, t := v*(1-s), v*(1-f*s), v*(1-(1-f)*s)
	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return state.ColorRGB{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255)}
}
