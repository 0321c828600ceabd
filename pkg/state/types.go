package state

// Mode is the coarse application mode.
type Mode int

const (
	ModeIdle    Mode = 0
	ModePlaying Mode = 1
	ModePaused  Mode = 2
	ModeEditor  Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModePlaying:
		return "playing"
	case ModePaused:
		return "paused"
	case ModeEditor:
		return "editor"
	}
	return "unknown"
}

// MovementMode is the locomotion state of a player.
type MovementMode int

const (
	MovementCube   MovementMode = 0
	MovementShip   MovementMode = 1
	MovementBall   MovementMode = 2
	MovementUFO    MovementMode = 3
	MovementWave   MovementMode = 4
	MovementRobot  MovementMode = 5
	MovementSpider MovementMode = 6
	MovementSwing  MovementMode = 7
)

func (m MovementMode) String() string {
	switch m {
	case MovementCube:
		return "cube"
	case MovementShip:
		return "ship"
	case MovementBall:
		return "ball"
	case MovementUFO:
		return "ufo"
	case MovementWave:
		return "wave"
	case MovementRobot:
		return "robot"
	case MovementSpider:
		return "spider"
	case MovementSwing:
		return "swing"
	}
	return "unknown"
}

// MovementFlags mirrors the host's per-mode booleans. More than one may be
// set at once; ResolveMovementMode picks the winner.
type MovementFlags struct {
	Ship   bool
	Ball   bool
	Bird   bool
	Dart   bool
	Robot  bool
	Spider bool
	Swing  bool
}

// ResolveMovementMode maps flags to one mode. Priority, highest first:
// ship, ball, UFO (bird), wave (dart), robot, spider, swing. Cube when none
// is set.
func ResolveMovementMode(f MovementFlags) MovementMode {
	switch {
	case f.Ship:
		return MovementShip
	case f.Ball:
		return MovementBall
	case f.Bird:
		return MovementUFO
	case f.Dart:
		return MovementWave
	case f.Robot:
		return MovementRobot
	case f.Spider:
		return MovementSpider
	case f.Swing:
		return MovementSwing
	}
	return MovementCube
}

// PlayerState is the per-tick pose of one player.
type PlayerState struct {
	X         float64      `json:"m_x"`
	Y         float64      `json:"m_y"`
	Rotation  float64      `json:"m_rotation"`
	YVelocity float64      `json:"m_yVelocity"`
	Mode      MovementMode `json:"m_mode"`
}

// ColorRGB is one palette color.
type ColorRGB struct {
	R uint8 `json:"m_r"`
	G uint8 `json:"m_g"`
	B uint8 `json:"m_b"`
}

// GameObject is a snapshot of one level object.
type GameObject struct {
	X        float64 `json:"m_x"`
	Y        float64 `json:"m_y"`
	Rotation float64 `json:"m_rotation"`
	ScaleX   float64 `json:"m_scaleX"`
	ScaleY   float64 `json:"m_scaleY"`
	Opacity  float64 `json:"m_opacity"`
	Visible  bool    `json:"m_visible"`
	ObjectID int     `json:"m_objectId"`

	// NativeID is an opaque identity for diffing. It is never dereferenced.
	NativeID uint64 `json:"m_nativePtr"`
}

// GameState is pushed as "game_state".
type GameState struct {
	Mode Mode `json:"m_mode"`
}

// LiveLevelData is pushed as "live_level_data" every tick.
type LiveLevelData struct {
	Player1   PlayerState `json:"m_player1"`
	Player2   PlayerState `json:"m_player2"`
	BgColor   ColorRGB    `json:"m_bgColor"`
	LineColor ColorRGB    `json:"m_lineColor"`
	GColor    ColorRGB    `json:"m_gColor"`
	G2Color   ColorRGB    `json:"m_g2Color"`
	MGColor   ColorRGB    `json:"m_mgColor"`
	MG2Color  ColorRGB    `json:"m_mg2Color"`
}

// Palette channel IDs on the host's color subsystem.
const (
	ChannelBackground = 1000
	ChannelGround     = 1001
	ChannelLine       = 1002
	ChannelGround2    = 1009
	ChannelMiddle     = 1013
	ChannelMiddle2    = 1014
)

// paletteSlot returns the LiveLevelData field a channel feeds, by channel ID.
func (l *LiveLevelData) paletteSlot(channel int) *ColorRGB {
	switch channel {
	case ChannelBackground:
		return &l.BgColor
	case ChannelGround:
		return &l.GColor
	case ChannelLine:
		return &l.LineColor
	case ChannelGround2:
		return &l.G2Color
	case ChannelMiddle:
		return &l.MGColor
	case ChannelMiddle2:
		return &l.MG2Color
	}
	return nil
}

var paletteChannels = [...]int{
	ChannelBackground,
	ChannelGround,
	ChannelLine,
	ChannelGround2,
	ChannelMiddle,
	ChannelMiddle2,
}
