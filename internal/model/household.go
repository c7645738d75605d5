package model

import "time"

type Household struct {
	ID           HouseholdID `json:"id"`
	Name         string      `json:"name"`
	ReferentName string      `json:"referent_name"`
	CreatedAt    time.Time   `json:"created_at"`
}

type Participant struct {
	ID          ParticipantID `json:"id"`
	HouseholdID HouseholdID   `json:"household_id"`
	Name        string        `json:"name"`
	Birthdate   time.Time     `json:"birthdate"`
	AvatarRef   string        `json:"avatar_ref"`
	CoinBalance int           `json:"coin_balance"`
	CreatedAt   time.Time     `json:"created_at"`
}
