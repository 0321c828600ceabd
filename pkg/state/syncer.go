// Package state mirrors the host's application state to viewers.
//
// A Syncer is driven from the host's own turn. Each Tick recomputes the
// mode, player poses and palette and pushes them; the heavier level data is
// pushed only after a host event marks it dirty.
package state

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spc-dev/spc/pkg/level"
	"github.com/spc-dev/spc/pkg/protocol"
)

// ErrNoLevel is returned when no level is loaded.
var ErrNoLevel = errors.New("state: no level loaded")

// Sink receives encoded text messages. server.Server satisfies it.
//
// Send delivers every message. SendLatest may replace an undelivered message
// sent under the same key.
type Sink interface {
	Send(text []byte) int
	SendLatest(key string, text []byte) int
}

// Dispatcher defers work to the host's next turn. mainloop.Queue satisfies it.
type Dispatcher interface {
	Post(fn func()) bool
}

// Syncer owns the mirrored state. It is not safe for concurrent use; every
// method must be called on the host's turn.
type Syncer struct {
	host Host
	sink Sink

	// dispatcher, when set, defers dirty-flag updates from Notify to the
	// host's next turn.
	dispatcher Dispatcher

	game  GameState
	live  LiveLevelData
	level LevelState

	// update requests a level push; reset makes that push a hard reset.
	// reset is only honoured while update is set.
	update bool
	reset  bool

	logger *slog.Logger
}

// NewSyncer creates a Syncer reading from host and pushing to sink.
func NewSyncer(host Host, sink Sink) *Syncer {
	return &Syncer{
		host:   host,
		sink:   sink,
		logger: slog.Default().With("component", "state"),
	}
}

// SetDispatcher makes Notify defer flag updates through d.
func (s *Syncer) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// SetLogger sets the syncer logger.
func (s *Syncer) SetLogger(logger *slog.Logger) {
	s.logger = logger.With("component", "state")
}

// GameState returns the last computed game state.
func (s *Syncer) GameState() GameState { return s.game }

// LiveLevelData returns the last computed live data.
func (s *Syncer) LiveLevelData() LiveLevelData { return s.live }

// LevelState returns the last pushed level state.
func (s *Syncer) LevelState() LevelState { return s.level }

// Dirty reports the pending update and reset flags.
func (s *Syncer) Dirty() (update, reset bool) { return s.update, s.reset }

// MarkUpdate requests a level push on the next Tick.
func (s *Syncer) MarkUpdate() {
	s.update = true
}

// MarkReset requests that the next level push be a hard reset.
func (s *Syncer) MarkReset() {
	s.reset = true
	s.update = true
}

// Notify reports a host event. The event is pushed to viewers immediately
// and the level is marked dirty.
func (s *Syncer) Notify(ev HostEvent) {
	info, ok := hostEvents[ev]
	if !ok {
		s.logger.Warn("unknown host event", "event", int(ev))
		return
	}

	mark := func() {
		if info.reset {
			s.MarkReset()
		} else {
			s.MarkUpdate()
		}
	}
	if s.dispatcher == nil || !s.dispatcher.Post(mark) {
		mark()
	}

	s.pushEvent(info.name)
}

// Refresh recomputes the game state and, while a level is being played or
// edited, the live data.
func (s *Syncer) Refresh() {
	s.game.Mode = ModeIdle
	var active Layer
	if pl, ok := s.host.PlayLayer(); ok {
		s.game.Mode = ModePlaying
		active = pl
		if pl.IsPaused() {
			s.game.Mode = ModePaused
		}
	}
	if el, ok := s.host.EditorLayer(); ok {
		s.game.Mode = ModeEditor
		active = el
	}

	if s.game.Mode == ModePlaying || s.game.Mode == ModeEditor {
		s.refreshLive(active)
	}
}

func (s *Syncer) refreshLive(layer Layer) {
	if p, ok := layer.Player(1); ok {
		s.live.Player1 = playerState(p)
	}
	if p, ok := layer.Player(2); ok {
		s.live.Player2 = playerState(p)
	}
	for _, ch := range paletteChannels {
		if c, ok := layer.ColorChannel(ch); ok {
			*s.live.paletteSlot(ch) = c
		}
	}
}

func playerState(p PlayerInfo) PlayerState {
	return PlayerState{
		X:         p.X,
		Y:         p.Y,
		Rotation:  p.Rotation,
		YVelocity: p.YVelocity,
		Mode:      ResolveMovementMode(p.Flags),
	}
}

// Tick refreshes the mirrored state, pushes game_state and live_level_data,
// then pushes level data if it is dirty.
func (s *Syncer) Tick() {
	s.Refresh()
	s.pushState(protocol.StateGame, s.game)
	s.pushState(protocol.StateLiveLevelData, s.live)
	s.PushLevelUpdate()
}

// PushLevelUpdate sends level data when the update flag is set. With the
// reset flag also set, a level_data_reset event precedes an empty level
// state. Both flags are cleared afterwards.
func (s *Syncer) PushLevelUpdate() {
	if !s.update {
		return
	}

	if layer, ok := s.activeLayer(); ok {
		s.loadLevel(layer)
	} else {
		s.level.Reset()
	}

	if s.reset {
		s.level.Reset()
		s.pushEvent(protocol.EventLevelDataReset)
		s.reset = false
	}

	s.pushState(protocol.StateLevelData, s.level)
	s.pushEvent(protocol.EventLevelDataUpdate)
	s.update = false
}

// loadLevel rebuilds the level state. Objects and metadata are only
// collected when the level carries an embedded payload.
func (s *Syncer) loadLevel(layer Layer) {
	s.level.Reset()

	field := layer.GuidelineField()
	if !level.Has(field) {
		return
	}
	d, err := level.Decode(field)
	if err != nil {
		s.logger.Warn("embedded level data unreadable", "error", err)
		return
	}

	s.level.HasLevelData = true
	s.level.LevelData = *d
	s.level.LevelID = layer.LevelID()
	s.level.LevelLength = layer.LevelLength()

	objects := layer.Objects()
	s.level.GameObjects = make([]GameObject, 0, len(objects))
	for _, o := range objects {
		if o.Anticheat {
			continue
		}
		s.level.GameObjects = append(s.level.GameObjects, snapshotObject(o))
	}
}

// activeLayer returns the play session, falling back to the editor.
func (s *Syncer) activeLayer() (Layer, bool) {
	if pl, ok := s.host.PlayLayer(); ok {
		return pl, true
	}
	return s.host.EditorLayer()
}

// LevelLoaded reports whether a level is being played or edited.
func (s *Syncer) LevelLoaded() bool {
	_, ok := s.activeLayer()
	return ok
}

// ReadLevelData decodes the payload of the active level. It returns
// ErrNoLevel without a level and level.ErrNoPayload when none is embedded.
func (s *Syncer) ReadLevelData() (*level.Data, error) {
	layer, ok := s.activeLayer()
	if !ok {
		return nil, ErrNoLevel
	}
	return level.Decode(layer.GuidelineField())
}

// WriteLevelData embeds d into the active level and marks the level dirty.
func (s *Syncer) WriteLevelData(d *level.Data) error {
	layer, ok := s.activeLayer()
	if !ok {
		return ErrNoLevel
	}
	field, err := level.Encode(d, layer.GuidelineField())
	if err != nil {
		return fmt.Errorf("state: encode level data: %w", err)
	}
	layer.SetGuidelineField(field)
	s.MarkUpdate()
	return nil
}

// pushState sends a state snapshot. Per-tick snapshots may be coalesced for a
// slow viewer; level_data is always delivered.
func (s *Syncer) pushState(name string, data any) {
	b, err := protocol.EncodeState(name, data)
	if err != nil {
		s.logger.Error("encode state failed", "name", name, "error", err)
		return
	}
	if name == protocol.StateLevelData {
		s.sink.Send(b)
		return
	}
	s.sink.SendLatest(name, b)
}

func (s *Syncer) pushEvent(name string) {
	b, err := protocol.EncodeEvent(name, nil)
	if err != nil {
		s.logger.Error("encode event failed", "name", name, "error", err)
		return
	}
	s.sink.Send(b)
}
