package model

import "time"

// Reward is a catalog entry redeemable for coins, either household-custom or
// shared/default (HouseholdID == DefaultScope).
type Reward struct {
	ID          string      `json:"id"`
	HouseholdID HouseholdID `json:"household_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Cost        int         `json:"cost"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"created_at"`
}

// RewardHistoryEntry records one redeemed reward.
type RewardHistoryEntry struct {
	ID             int64           `json:"id"`
	RewardID       string          `json:"reward_id"`
	HouseholdID    HouseholdID     `json:"household_id"`
	ParticipantIDs []ParticipantID `json:"participant_ids"`
	SessionID      *SessionID      `json:"session_id"`
	ReceivedAt     time.Time       `json:"received_at"`
	ReceivedBy     string          `json:"received_by"`
}
