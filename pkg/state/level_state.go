package state

import (
	"encoding/json"

	"github.com/spc-dev/spc/pkg/level"
)

// LevelState is pushed as "level_data" after structural changes.
type LevelState struct {
	LevelID      uint32       `json:"m_levelID"`
	LevelLength  float64      `json:"m_levelLength"`
	GameObjects  []GameObject `json:"m_gameObjects"`
	LevelData    level.Data   `json:"m_levelData"`
	HasLevelData bool         `json:"m_hasLevelData"`
}

// MarshalJSON emits an empty object list rather than null.
func (s LevelState) MarshalJSON() ([]byte, error) {
	type plain LevelState
	if s.GameObjects == nil {
		s.GameObjects = []GameObject{}
	}
	return json.Marshal(plain(s))
}

// Reset clears s to the empty state.
func (s *LevelState) Reset() {
	*s = LevelState{}
}
