// Package runtime persists the in-progress session's transient selection
// state in a single slot, so a client can resume after an unexpected
// restart. The slot is ephemeral: a malformed value reads as absent.
package runtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
)

const slotKey = "runtime_state"

// Patch is a partial update to the runtime state. Nil fields are left
// untouched.
type Patch struct {
	SessionID          *model.SessionID    `json:"session_id,omitempty"`
	SessionType        *model.SessionType  `json:"session_type,omitempty"`
	PendingChallengeID *model.ChallengeID  `json:"pending_challenge_id,omitempty"`
	Bundle             []model.ChallengeID `json:"bundle,omitempty"`
	BundleIndex        *int                `json:"bundle_index,omitempty"`
	ChallengeStartedAt *time.Time          `json:"challenge_started_at,omitempty"`
	PhotoCount         *int                `json:"photo_count,omitempty"`
}

// StateStore holds at most one session's runtime state.
type StateStore struct {
	flags *store.FlagStore
	now   func() time.Time
}

func NewStateStore(fs *store.FlagStore) *StateStore {
	return &StateStore{flags: fs, now: time.Now}
}

// Read returns the current state, or nil when the slot is empty or holds
// something unparseable.
func (s *StateStore) Read() (*model.RuntimeState, error) {
	value, _, ok, err := s.flags.Get(slotKey)
	if err != nil {
		return nil, fmt.Errorf("read runtime state: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var state model.RuntimeState
	if err := json.Unmarshal([]byte(value), &state); err != nil {
		// Corrupt slot reads as absent.
		return nil, nil
	}
	return &state, nil
}

// Write overwrites the slot. A nil state clears it; otherwise UpdatedAt is
// refreshed to the write time.
func (s *StateStore) Write(state *model.RuntimeState) error {
	if state == nil {
		if err := s.flags.Delete(slotKey); err != nil {
			return fmt.Errorf("clear runtime state: %w", err)
		}
		return nil
	}

	state.UpdatedAt = s.now()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode runtime state: %w", err)
	}
	if err := s.flags.Set(slotKey, string(data)); err != nil {
		return fmt.Errorf("write runtime state: %w", err)
	}
	return nil
}

// Update merges the patch over the existing state. With no prior state, a
// patch carrying a session id synthesizes a fresh state with defaults; a
// patch without one clears the slot.
func (s *StateStore) Update(patch Patch) (*model.RuntimeState, error) {
	prior, err := s.Read()
	if err != nil {
		return nil, err
	}

	if prior == nil {
		if patch.SessionID == nil {
			if err := s.Write(nil); err != nil {
				return nil, err
			}
			return nil, nil
		}
		state := &model.RuntimeState{
			SessionID:          *patch.SessionID,
			PendingChallengeID: patch.PendingChallengeID,
			Bundle:             patch.Bundle,
			ChallengeStartedAt: patch.ChallengeStartedAt,
		}
		if patch.SessionType != nil {
			state.SessionType = *patch.SessionType
		}
		if len(patch.Bundle) > 0 {
			idx := 0
			if patch.BundleIndex != nil {
				idx = *patch.BundleIndex
			}
			state.BundleIndex = &idx
		}
		if patch.PhotoCount != nil {
			state.PhotoCount = *patch.PhotoCount
		}
		if err := s.Write(state); err != nil {
			return nil, err
		}
		return state, nil
	}

	if patch.SessionID != nil {
		prior.SessionID = *patch.SessionID
	}
	if patch.SessionType != nil {
		prior.SessionType = *patch.SessionType
	}
	if patch.PendingChallengeID != nil {
		prior.PendingChallengeID = patch.PendingChallengeID
	}
	if patch.Bundle != nil {
		prior.Bundle = patch.Bundle
	}
	if patch.BundleIndex != nil {
		prior.BundleIndex = patch.BundleIndex
	}
	if patch.ChallengeStartedAt != nil {
		prior.ChallengeStartedAt = patch.ChallengeStartedAt
	}
	if patch.PhotoCount != nil {
		prior.PhotoCount = *patch.PhotoCount
	}

	if err := s.Write(prior); err != nil {
		return nil, err
	}
	return prior, nil
}

// ResumeFor returns the stored state only if it belongs to the given
// session; stale state from an earlier session reads as absent.
func (s *StateStore) ResumeFor(sessionID model.SessionID) (*model.RuntimeState, error) {
	state, err := s.Read()
	if err != nil {
		return nil, err
	}
	if state == nil || state.SessionID != sessionID {
		return nil, nil
	}
	return state, nil
}
