package model

import "time"

// SessionType selects how challenges are presented during a session.
type SessionType string

const (
	SessionRandom SessionType = "random"
	SessionBundle SessionType = "bundle"
)

// Session is a bounded period during which participants attempt challenges.
// EndedAt == nil means the session is still active; at most one active
// session exists per household.
type Session struct {
	ID                 SessionID       `json:"id"`
	HouseholdID        HouseholdID     `json:"household_id"`
	ParticipantIDs     []ParticipantID `json:"participant_ids"`
	Type               SessionType     `json:"type"`
	Location           string          `json:"location"`
	Category           string          `json:"category"`
	PlannedDurationMin *int            `json:"planned_duration_min"`
	StartedAt          time.Time       `json:"started_at"`
	EndedAt            *time.Time      `json:"ended_at"`
	DefisCompleted     int             `json:"defis_completed"`
	CoinsAwarded       int             `json:"coins_awarded"`
	Synced             bool            `json:"synced"`
	CreatedBy          string          `json:"created_by"`
}

// Active reports whether the session has not been ended yet.
func (s Session) Active() bool { return s.EndedAt == nil }

// SessionSummary is the frozen view of an ended session.
type SessionSummary struct {
	SessionID      SessionID       `json:"session_id"`
	ParticipantIDs []ParticipantID `json:"participant_ids"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        time.Time       `json:"ended_at"`
	DefisCompleted int             `json:"defis_completed"`
	CoinsAwarded   int             `json:"coins_awarded"`
}
