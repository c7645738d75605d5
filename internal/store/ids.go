package store

import (
	"encoding/json"

	"github.com/mrolland/defily/internal/model"
)

// Participant-id lists live in TEXT columns as JSON arrays. All encoding and
// decoding goes through this adapter; malformed stored values decode to an
// empty set rather than an error.

func encodeIDs(ids []model.ParticipantID) string {
	if len(ids) == 0 {
		return "[]"
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeIDs(raw string) []model.ParticipantID {
	var ids []model.ParticipantID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return []model.ParticipantID{}
	}
	if ids == nil {
		return []model.ParticipantID{}
	}
	return ids
}
