package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType is the "type" discriminator of an outbound envelope.
type MessageType string

const (
	TypeState MessageType = "state"
	TypeEvent MessageType = "event"
)

// State names.
const (
	StateGame          = "game_state"
	StateLevelData     = "level_data"
	StateLiveLevelData = "live_level_data"
)

// Event names.
const (
	EventLevelReset         = "level_reset"
	EventLevelExit          = "level_exit"
	EventLevelDataReset     = "level_data_reset"
	EventLevelDataUpdate    = "level_data_update"
	EventEditorStart        = "editor_start"
	EventEditorExit         = "editor_exit"
	EventEditorAddObject    = "editor_add_object"
	EventEditorRemoveObject = "editor_remove_object"
	EventEditorMoveObject   = "editor_move_object"
	EventEditorCopyObject   = "editor_copy_object"
	EventEditorPasteObject  = "editor_paste_object"
	EventEditorDoPaste      = "editor_do_paste_object"
)

var stateNames = map[string]struct{}{
	StateGame:          {},
	StateLevelData:     {},
	StateLiveLevelData: {},
}

var eventNames = map[string]struct{}{
	EventLevelReset:         {},
	EventLevelExit:          {},
	EventLevelDataReset:     {},
	EventLevelDataUpdate:    {},
	EventEditorStart:        {},
	EventEditorExit:         {},
	EventEditorAddObject:    {},
	EventEditorRemoveObject: {},
	EventEditorMoveObject:   {},
	EventEditorCopyObject:   {},
	EventEditorPasteObject:  {},
	EventEditorDoPaste:      {},
}

// IsStateName reports whether name belongs to the state vocabulary.
func IsStateName(name string) bool {
	_, ok := stateNames[name]
	return ok
}

// IsEventName reports whether name belongs to the event vocabulary.
func IsEventName(name string) bool {
	_, ok := eventNames[name]
	return ok
}

// Envelope is the outer shape of every outbound text frame.
// Data holds the already-encoded JSON projection of the payload; a nil
// payload is encoded as JSON null.
type Envelope struct {
	Type MessageType     `json:"type"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// EncodeState renders a state push for one of the State* names.
func EncodeState(name string, data any) ([]byte, error) {
	if !IsStateName(name) {
		return nil, fmt.Errorf("%w: state %q", ErrUnknownName, name)
	}
	return encodeEnvelope(TypeState, name, data)
}

// EncodeEvent renders a point event for one of the Event* names.
func EncodeEvent(name string, data any) ([]byte, error) {
	if !IsEventName(name) {
		return nil, fmt.Errorf("%w: event %q", ErrUnknownName, name)
	}
	return encodeEnvelope(TypeEvent, name, data)
}

func encodeEnvelope(t MessageType, name string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s %q: %w", t, name, err)
	}
	return json.Marshal(Envelope{Type: t, Name: name, Data: raw})
}

// DecodeEnvelope parses an outbound frame. Viewers and tests use it; the
// server never decodes its own output.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch env.Type {
	case TypeState:
		if !IsStateName(env.Name) {
			return nil, fmt.Errorf("%w: state %q", ErrUnknownName, env.Name)
		}
	case TypeEvent:
		if !IsEventName(env.Name) {
			return nil, fmt.Errorf("%w: event %q", ErrUnknownName, env.Name)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return &env, nil
}
