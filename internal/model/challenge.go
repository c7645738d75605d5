package model

import "time"

// Challenge is an activity definition, either household-custom or
// shared/default (HouseholdID == DefaultScope).
type Challenge struct {
	ID            ChallengeID `json:"id"`
	HouseholdID   HouseholdID `json:"household_id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	Location      string      `json:"location"`
	DurationMin   *int        `json:"duration_min"`
	DefaultPoints int         `json:"default_points"`
	PhotoRequired bool        `json:"photo_required"`
	AgeMin        *int        `json:"age_min"`
	AgeMax        *int        `json:"age_max"`
	CreatedAt     time.Time   `json:"created_at"`
}

// IsCustom reports whether the challenge belongs to a household rather than
// the shared catalog.
func (c Challenge) IsCustom() bool { return c.HouseholdID != DefaultScope }
