package model

import "time"

// RuntimeState is the transient selection state of the in-progress session,
// persisted so the client can resume after an unexpected restart. One slot
// per process; reconstructible from nothing.
type RuntimeState struct {
	SessionID          SessionID     `json:"session_id"`
	SessionType        SessionType   `json:"session_type"`
	PendingChallengeID *ChallengeID  `json:"pending_challenge_id,omitempty"`
	Bundle             []ChallengeID `json:"bundle,omitempty"`
	BundleIndex        *int          `json:"bundle_index,omitempty"`
	ChallengeStartedAt *time.Time    `json:"challenge_started_at,omitempty"`
	PhotoCount         int           `json:"photo_count"`
	UpdatedAt          time.Time     `json:"updated_at"`
}
