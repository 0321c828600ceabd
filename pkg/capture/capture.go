// Package capture grabs fixed-size RGBA frames of the host's output and
// relays them to viewers.
package capture

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoTarget is returned when the off-screen target could not be
	// created or has been released.
	ErrNoTarget = errors.New("capture: no render target")

	// ErrNoScene is returned when the host has nothing to render.
	ErrNoScene = errors.New("capture: no active scene")

	// ErrInvalidSize is returned for non-positive frame dimensions.
	ErrInvalidSize = errors.New("capture: invalid frame size")
)

// Frame is one RGBA image. len(Pix) == Width*Height*4.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// Size returns the byte length a frame of w×h must have.
func Size(w, h int) int { return w * h * 4 }

// TargetID names an off-screen render target owned by the Device.
type TargetID uint32

// Device is the host's rendering surface. All methods are called on the
// host's render thread.
type Device interface {
	CreateTarget(width, height int) (TargetID, error)
	DeleteTarget(id TargetID)

	// BoundTarget returns the target currently receiving draws; zero is the
	// default framebuffer.
	BoundTarget() TargetID
	BindTarget(id TargetID)

	Clear()

	// RenderScene draws the active scene into the bound target. It reports
	// false when there is no scene to draw.
	RenderScene() bool

	// ReadPixels copies the bound target into dst, which has room for
	// width*height*4 bytes.
	ReadPixels(dst []byte, width, height int)
}

// Capturer owns one off-screen target of a fixed size.
type Capturer struct {
	mu     sync.Mutex
	device Device
	target TargetID
	valid  bool
	width  int
	height int
}

// NewCapturer allocates a width×height target on device.
func NewCapturer(device Device, width, height int) (*Capturer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	id, err := device.CreateTarget(width, height)
	if err != nil {
		return nil, fmt.Errorf("capture: create target: %w", err)
	}
	return &Capturer{
		device: device,
		target: id,
		valid:  true,
		width:  width,
		height: height,
	}, nil
}

// Dimensions returns the frame size.
func (c *Capturer) Dimensions() (width, height int) {
	return c.width, c.height
}

// Capture renders the current scene into the off-screen target and returns
// its pixels in a freshly allocated frame. The previously bound target is
// always restored. On ErrNoTarget or ErrNoScene no frame is produced and the
// caller skips this tick.
func (c *Capturer) Capture() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid {
		return Frame{}, ErrNoTarget
	}

	prev := c.device.BoundTarget()
	defer c.device.BindTarget(prev)

	c.device.BindTarget(c.target)
	c.device.Clear()
	if !c.device.RenderScene() {
		return Frame{}, ErrNoScene
	}

	f := Frame{Width: c.width, Height: c.height, Pix: make([]byte, Size(c.width, c.height))}
	c.device.ReadPixels(f.Pix, c.width, c.height)
	return f, nil
}

// Release frees the off-screen target. Later captures return ErrNoTarget.
func (c *Capturer) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return
	}
	c.device.DeleteTarget(c.target)
	c.valid = false
}
