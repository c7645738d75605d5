// Package history records challenge completions and handles reactivation.
package history

import (
	"fmt"
	"time"

	"github.com/mrolland/defily/internal/activity"
	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
)

// Recorder appends completion records and maintains the running session
// counter.
type Recorder struct {
	history  *store.HistoryStore
	sessions *store.SessionStore
	events   *activity.Logger
	now      func() time.Time
}

func NewRecorder(hs *store.HistoryStore, ss *store.SessionStore, events *activity.Logger) *Recorder {
	return &Recorder{history: hs, sessions: ss, events: events, now: time.Now}
}

// Record appends one completion and bumps the owning session's running
// counter. The counter is incremental and can drift from the authoritative
// recount done at session closure when history rows are later purged by
// Reactivate; closure always recounts, so the drift never reaches the
// frozen aggregates.
func (r *Recorder) Record(sessionID *model.SessionID, householdID model.HouseholdID, challengeID model.ChallengeID, participantIDs []model.ParticipantID, completedBy string) (int64, error) {
	if challengeID == "" {
		return 0, fmt.Errorf("record completion: missing challenge id")
	}

	id, err := r.history.Create(model.DefiHistoryEntry{
		ChallengeID:    challengeID,
		HouseholdID:    householdID,
		ParticipantIDs: participantIDs,
		SessionID:      sessionID,
		CompletedAt:    r.now(),
		CompletedBy:    completedBy,
	})
	if err != nil {
		return 0, fmt.Errorf("record completion: %w", err)
	}

	if sessionID != nil {
		if err := r.sessions.IncrementDefisCompleted(*sessionID); err != nil {
			return 0, fmt.Errorf("record completion: %w", err)
		}
	}

	r.events.Info(householdID, "defi_completed", string(challengeID), participantIDs, fmt.Sprintf("%d", id))
	return id, nil
}

// Reactivate purges the household's completion rows for the given
// challenges, making them eligible for selection again. An empty id list is
// a no-op: no writes, no events.
func (r *Recorder) Reactivate(householdID model.HouseholdID, challengeIDs []model.ChallengeID) error {
	if len(challengeIDs) == 0 {
		return nil
	}

	n, err := r.history.DeleteByChallengeIDs(householdID, challengeIDs)
	if err != nil {
		return fmt.Errorf("reactivate challenges: %w", err)
	}

	r.events.Log(model.ActivityEvent{
		HouseholdID: &householdID,
		Type:        "defis_reactivated",
		Level:       activity.LevelInfo,
		Context:     fmt.Sprintf("%d challenges", len(challengeIDs)),
		Details:     fmt.Sprintf("purged=%d", n),
	})
	return nil
}
