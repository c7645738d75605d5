package model

import "time"

// ActivityEvent is a structured log record written by core operations.
// Writes are best-effort and never influence control flow.
type ActivityEvent struct {
	ID             int64           `json:"id"`
	HouseholdID    *HouseholdID    `json:"household_id"`
	ParticipantIDs []ParticipantID `json:"participant_ids"`
	Type           string          `json:"type"`
	Level          string          `json:"level"`
	Context        string          `json:"context"`
	Details        string          `json:"details"`
	RefID          string          `json:"ref_id"`
	CreatedAt      time.Time       `json:"created_at"`
}
