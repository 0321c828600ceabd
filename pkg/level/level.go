// Package level models the auxiliary level payload stored inside the host's
// guideline field: a cubic spline plus per-object model overrides.
package level

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoPayload is returned by Decode when the field holds no embedded payload.
var ErrNoPayload = errors.New("level: no embedded payload")

// ErrInvalid is returned when a payload is present but is not valid level data.
var ErrInvalid = errors.New("level: invalid level data")

// Vec3 is a point or tangent in level space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Curve is one cubic segment: endpoints P1/P2 and control points M1/M2.
// The normal angles orient the track at each endpoint.
type Curve struct {
	P1            Vec3    `json:"p1"`
	M1            Vec3    `json:"m1"`
	M2            Vec3    `json:"m2"`
	P2            Vec3    `json:"p2"`
	P1NormalAngle float64 `json:"p1NormalAngle"`
	P2NormalAngle float64 `json:"p2NormalAngle"`
}

// Spline is an ordered list of segments.
type Spline struct {
	Segments []Curve `json:"segments"`
}

// MarshalJSON always emits a segments array, never null.
func (s Spline) MarshalJSON() ([]byte, error) {
	segs := s.Segments
	if segs == nil {
		segs = []Curve{}
	}
	return json.Marshal(struct {
		Segments []Curve `json:"segments"`
	}{segs})
}

// Length returns the number of segments.
func (s Spline) Length() int { return len(s.Segments) }

// ObjectModel overrides how one level object is drawn by viewers.
type ObjectModel struct {
	ScaleX        float64  `json:"scaleX"`
	ScaleY        float64  `json:"scaleY"`
	ModelTextures []string `json:"modelTextures"`
	ShouldSpin    bool     `json:"shouldSpin"`
}

// Data is the full auxiliary payload for a level.
type Data struct {
	Spline Spline `json:"spline"`

	// ObjectModels is keyed by the decimal object ID.
	ObjectModels map[string]ObjectModel `json:"objectModels,omitempty"`
}

// IsEmpty reports whether d carries neither segments nor overrides.
func (d *Data) IsEmpty() bool {
	return d == nil || (len(d.Spline.Segments) == 0 && len(d.ObjectModels) == 0)
}

// Marshal serializes d. Map keys are emitted in sorted order, so equal values
// always produce identical bytes.
func Marshal(d *Data) ([]byte, error) {
	if d == nil {
		d = &Data{}
	}
	return json.Marshal(d)
}

// Unmarshal parses a level payload. A document without a "spline" member is
// rejected with ErrInvalid.
func Unmarshal(b []byte) (*Data, error) {
	var head struct {
		Spline json.RawMessage `json:"spline"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(head.Spline) == 0 || string(head.Spline) == "null" {
		return nil, fmt.Errorf("%w: missing spline", ErrInvalid)
	}

	var d Data
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &d, nil
}
