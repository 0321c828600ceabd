package protocol

import (
	"encoding/json"
	"fmt"
)

// ControlType identifies an inbound control message.
type ControlType string

const (
	ControlMouseDown   ControlType = "mouse_down"
	ControlMouseMove   ControlType = "mouse_move"
	ControlMouseUp     ControlType = "mouse_up"
	ControlMouseCancel ControlType = "mouse_cancel"
	ControlKeyDown     ControlType = "key_down"
	ControlKeyUp       ControlType = "key_up"
)

// IsPointer reports whether t is one of the mouse_* types.
func (t ControlType) IsPointer() bool {
	switch t {
	case ControlMouseDown, ControlMouseMove, ControlMouseUp, ControlMouseCancel:
		return true
	}
	return false
}

// IsKey reports whether t is key_down or key_up.
func (t ControlType) IsKey() bool {
	return t == ControlKeyDown || t == ControlKeyUp
}

// Known reports whether t is a recognized control type.
func (t ControlType) Known() bool {
	return t.IsPointer() || t.IsKey()
}

// Control is a decoded inbound control message.
// X and Y are normalized viewport coordinates (pointer types only);
// Key is the host keycode (key types only).
type Control struct {
	Type ControlType
	X    float64
	Y    float64
	Key  int
}

type wireControl struct {
	Type *string  `json:"type"`
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
	Key  *int     `json:"key"`
}

// DecodeControl parses one inbound text frame.
//
// It returns ErrMalformed for invalid JSON, a missing "type", or a missing
// field required by the type (x/y for pointer messages except mouse_cancel,
// key for key messages). It returns ErrUnknownType for any other type.
func DecodeControl(b []byte) (Control, error) {
	var w wireControl
	if err := json.Unmarshal(b, &w); err != nil {
		return Control{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Type == nil {
		return Control{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	c := Control{Type: ControlType(*w.Type)}
	switch {
	case c.Type == ControlMouseCancel:
		if w.X != nil {
			c.X = *w.X
		}
		if w.Y != nil {
			c.Y = *w.Y
		}
	case c.Type.IsPointer():
		if w.X == nil || w.Y == nil {
			return Control{}, fmt.Errorf("%w: %s without coordinates", ErrMalformed, c.Type)
		}
		c.X, c.Y = *w.X, *w.Y
	case c.Type.IsKey():
		if w.Key == nil {
			return Control{}, fmt.Errorf("%w: %s without key", ErrMalformed, c.Type)
		}
		c.Key = *w.Key
	default:
		return Control{}, fmt.Errorf("%w: %q", ErrUnknownType, c.Type)
	}
	return c, nil
}

// EncodeControl renders c in the inbound wire shape. Viewers and tests use it.
func EncodeControl(c Control) ([]byte, error) {
	switch {
	case c.Type.IsPointer():
		return json.Marshal(struct {
			Type ControlType `json:"type"`
			X    float64     `json:"x"`
			Y    float64     `json:"y"`
		}{c.Type, c.X, c.Y})
	case c.Type.IsKey():
		return json.Marshal(struct {
			Type ControlType `json:"type"`
			Key  int         `json:"key"`
		}{c.Type, c.Key})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, c.Type)
}
