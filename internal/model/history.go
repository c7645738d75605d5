package model

import "time"

// DefiHistoryEntry records one completed challenge. Append-only except for
// explicit reactivation, which purges matching rows.
type DefiHistoryEntry struct {
	ID             int64           `json:"id"`
	ChallengeID    ChallengeID     `json:"challenge_id"`
	HouseholdID    HouseholdID     `json:"household_id"`
	ParticipantIDs []ParticipantID `json:"participant_ids"`
	SessionID      *SessionID      `json:"session_id"`
	CompletedAt    time.Time       `json:"completed_at"`
	CompletedBy    string          `json:"completed_by"`
}

// CoinLedgerEntry is a signed coin movement: credit positive, debit negative.
// Append-only.
type CoinLedgerEntry struct {
	ID            int64         `json:"id"`
	HouseholdID   HouseholdID   `json:"household_id"`
	ParticipantID ParticipantID `json:"participant_id"`
	SessionID     *SessionID    `json:"session_id"`
	ChallengeID   *ChallengeID  `json:"challenge_id"`
	Amount        int           `json:"amount"`
	Reason        string        `json:"reason"`
	CreatedAt     time.Time     `json:"created_at"`
	CreatedBy     string        `json:"created_by"`
}
