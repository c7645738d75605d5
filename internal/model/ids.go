package model

import "strconv"

// Canonical id types. Keeping these distinct avoids the silent int/string
// coercion that plagued earlier iterations of the schema.
type (
	HouseholdID   int64
	ParticipantID int64
	SessionID     int64

	// ChallengeID is a string so a household's custom challenge can shadow
	// a shared/default challenge by reusing its id.
	ChallengeID string
)

// DefaultScope is the household id under which shared/default catalog
// entries are stored.
const DefaultScope HouseholdID = 0

func (id HouseholdID) String() string   { return strconv.FormatInt(int64(id), 10) }
func (id ParticipantID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id SessionID) String() string     { return strconv.FormatInt(int64(id), 10) }
func (id ChallengeID) String() string   { return string(id) }
