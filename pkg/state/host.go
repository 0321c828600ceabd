package state

// Host exposes the parts of the running application the mirror reads.
// Every method is called on the host's own turn.
type Host interface {
	// PlayLayer returns the active play session, if any.
	PlayLayer() (PlayLayer, bool)

	// EditorLayer returns the active level editor, if any. The editor takes
	// precedence over a play session.
	EditorLayer() (Layer, bool)
}

// Layer is a loaded level, either played or edited.
type Layer interface {
	// Player returns player 1 or 2.
	Player(n int) (PlayerInfo, bool)

	// ColorChannel looks up a palette channel by its numeric ID.
	ColorChannel(id int) (ColorRGB, bool)

	LevelID() uint32
	LevelLength() float64

	// Objects returns the level's objects in draw order.
	Objects() []ObjectInfo

	// GuidelineField returns the free-form guideline string the auxiliary
	// level payload is embedded in.
	GuidelineField() string
	SetGuidelineField(field string)
}

// PlayLayer is a Layer being played.
type PlayLayer interface {
	Layer
	IsPaused() bool
}

// PlayerInfo is a player as the host reports it.
type PlayerInfo struct {
	X         float64
	Y         float64
	Rotation  float64
	YVelocity float64
	Flags     MovementFlags
}

// ObjectInfo is a level object as the host reports it.
type ObjectInfo struct {
	X        float64
	Y        float64
	Rotation float64
	ScaleX   float64
	ScaleY   float64
	Opacity  uint8 // 0..255
	Visible  bool
	ObjectID int
	NativeID uint64

	// Anticheat marks the host's sentinel object, which is never mirrored.
	Anticheat bool
}

func snapshotObject(o ObjectInfo) GameObject {
	return GameObject{
		X:        o.X,
		Y:        o.Y,
		Rotation: o.Rotation,
		ScaleX:   o.ScaleX,
		ScaleY:   o.ScaleY,
		Opacity:  float64(o.Opacity) / 255,
		Visible:  o.Visible,
		ObjectID: o.ObjectID,
		NativeID: o.NativeID,
	}
}
