package state

import "github.com/spc-dev/spc/pkg/protocol"

// HostEvent is a structural change reported by the host.
type HostEvent int

const (
	LevelReset HostEvent = iota + 1
	LevelExit
	EditorStart
	EditorExit
	ObjectAdded
	ObjectRemoved
	ObjectMoved
	ObjectCopied
	ObjectPasted
	ObjectDoPasted
)

type hostEventInfo struct {
	name  string
	reset bool // the next level push is a hard reset
}

var hostEvents = map[HostEvent]hostEventInfo{
	LevelReset:     {name: protocol.EventLevelReset},
	LevelExit:      {name: protocol.EventLevelExit, reset: true},
	EditorStart:    {name: protocol.EventEditorStart},
	EditorExit:     {name: protocol.EventEditorExit, reset: true},
	ObjectAdded:    {name: protocol.EventEditorAddObject},
	ObjectRemoved:  {name: protocol.EventEditorRemoveObject},
	ObjectMoved:    {name: protocol.EventEditorMoveObject},
	ObjectCopied:   {name: protocol.EventEditorCopyObject},
	ObjectPasted:   {name: protocol.EventEditorPasteObject},
	ObjectDoPasted: {name: protocol.EventEditorDoPaste},
}

// WireName returns the event name sent to viewers, or "" if e is unknown.
func (e HostEvent) WireName() string {
	return hostEvents[e].name
}

// Resets reports whether e forces the next level push to be a hard reset.
func (e HostEvent) Resets() bool {
	return hostEvents[e].reset
}

func (e HostEvent) String() string {
	if n := e.WireName(); n != "" {
		return n
	}
	return "unknown"
}
