package model

import "time"

// SessionMedia references a media file captured during a session. The file
// reference and metadata are opaque to this service.
type SessionMedia struct {
	ID             int64             `json:"id"`
	SessionID      SessionID         `json:"session_id"`
	HouseholdID    HouseholdID       `json:"household_id"`
	ParticipantIDs []ParticipantID   `json:"participant_ids"`
	FileRef        string            `json:"file_ref"`
	Kind           string            `json:"kind"`
	TakenAt        time.Time         `json:"taken_at"`
	Metadata       map[string]string `json:"metadata"`
}
