package costguard

import (
	"encoding/json"
	"os"

	"github.com/oxicrab/oxicrab/internal/persist"
)

// LoadLedgerFile reads a persisted LedgerState from path, returning a zero
// state if the file does not exist yet.
func LoadLedgerFile(path string) (LedgerState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return LedgerState{}, nil
	}
	if err != nil {
		return LedgerState{}, err
	}
	var state LedgerState
	if err := json.Unmarshal(data, &state); err != nil {
		return LedgerState{}, err
	}
	return state, nil
}

// SaveLedgerFile atomically persists state to path.
func SaveLedgerFile(path string, state LedgerState) error {
	return persist.WriteFileAtomic(path, state)
}
