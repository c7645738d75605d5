// Package activity is the write-only event sink for core operations. Every
// write is best-effort: failures are logged and swallowed, and never reach
// the caller.
package activity

import (
	"log/slog"

	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
	"github.com/mrolland/defily/internal/websocket"
)

// Event levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Logger persists activity events and fans them out to connected clients.
type Logger struct {
	store  *store.ActivityStore
	hub    *websocket.Hub
	logger *slog.Logger
}

// New creates a Logger. The hub may be nil when realtime fan-out is not
// wanted (tests, CLI tools).
func New(as *store.ActivityStore, hub *websocket.Hub, logger *slog.Logger) *Logger {
	return &Logger{store: as, hub: hub, logger: logger}
}

// Log records one event. It never returns an error and never panics; a
// failed insert is reported on the process log only.
func (l *Logger) Log(e model.ActivityEvent) {
	if e.Level == "" {
		e.Level = LevelInfo
	}

	if l.store != nil {
		if _, err := l.store.Create(e); err != nil {
			l.logger.Warn("activity event dropped", "type", e.Type, "error", err)
		}
	}

	if l.hub != nil && e.HouseholdID != nil {
		l.hub.Broadcast(websocket.NewMessage("activity", e.Type, *e.HouseholdID, e.RefID, nil))
	}
}

// Info logs an info-level event for a household.
func (l *Logger) Info(householdID model.HouseholdID, eventType, context string, participantIDs []model.ParticipantID, refID string) {
	l.Log(model.ActivityEvent{
		HouseholdID:    &householdID,
		ParticipantIDs: participantIDs,
		Type:           eventType,
		Level:          LevelInfo,
		Context:        context,
		RefID:          refID,
	})
}

// Error logs an error-level event for a household.
func (l *Logger) Error(householdID model.HouseholdID, eventType, context, details string) {
	l.Log(model.ActivityEvent{
		HouseholdID: &householdID,
		Type:        eventType,
		Level:       LevelError,
		Context:     context,
		Details:     details,
	})
}
