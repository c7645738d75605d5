// Package session owns the session state machine: at most one active
// session per household, idempotent closure, and authoritative aggregate
// recomputation from the history and ledger tables.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mrolland/defily/internal/activity"
	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
)

var (
	// ErrActiveSessionExists is returned by Start when the household
	// already has an unended session.
	ErrActiveSessionExists = errors.New("household already has an active session")

	// ErrSessionNotFound is returned when no session has the given id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPostInsertInconsistency means an inserted session row could not be
	// read back. Fatal, never retried.
	ErrPostInsertInconsistency = errors.New("session row missing after insert")

	// ErrPostUpdateInconsistency means an updated session row could not be
	// read back. Fatal, never retried.
	ErrPostUpdateInconsistency = errors.New("session row missing after update")
)

// StartConfig describes a session to start.
type StartConfig struct {
	HouseholdID        model.HouseholdID
	ParticipantIDs     []model.ParticipantID
	Type               model.SessionType
	Location           string
	Category           string
	PlannedDurationMin *int
	CreatedBy          string
}

// Manager orchestrates session start and end transitions.
type Manager struct {
	db       *sql.DB
	sessions *store.SessionStore
	history  *store.HistoryStore
	ledger   *store.LedgerStore
	events   *activity.Logger
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(db *sql.DB, ss *store.SessionStore, hs *store.HistoryStore, ls *store.LedgerStore, events *activity.Logger, logger *slog.Logger) *Manager {
	return &Manager{
		db:       db,
		sessions: ss,
		history:  hs,
		ledger:   ls,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Start opens a new session for the household. Fails with
// ErrActiveSessionExists if one is already running.
func (m *Manager) Start(cfg StartConfig) (*model.Session, error) {
	if cfg.HouseholdID <= 0 {
		return nil, fmt.Errorf("start session: missing household id")
	}
	if cfg.Type != model.SessionRandom && cfg.Type != model.SessionBundle {
		return nil, fmt.Errorf("start session: unknown type %q", cfg.Type)
	}

	active, err := m.sessions.GetActive(cfg.HouseholdID)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if active != nil {
		return nil, ErrActiveSessionExists
	}

	id, err := m.sessions.Create(model.Session{
		HouseholdID:        cfg.HouseholdID,
		ParticipantIDs:     cfg.ParticipantIDs,
		Type:               cfg.Type,
		Location:           cfg.Location,
		Category:           cfg.Category,
		PlannedDurationMin: cfg.PlannedDurationMin,
		StartedAt:          m.now(),
		CreatedBy:          cfg.CreatedBy,
	})
	if err != nil {
		// The partial unique index on (household_id) WHERE ended_at IS NULL
		// backstops the read-then-insert check under concurrent starts.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrActiveSessionExists
		}
		return nil, fmt.Errorf("start session: %w", err)
	}

	created, err := m.sessions.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if created == nil {
		m.logger.Error("session insert not visible on re-read", "session_id", id, "household_id", cfg.HouseholdID)
		return nil, ErrPostInsertInconsistency
	}

	m.events.Info(cfg.HouseholdID, "session_started", string(cfg.Type), cfg.ParticipantIDs, id.String())
	return created, nil
}

// End closes a session, recomputing its aggregates from the history and
// ledger tables. Ending an already-ended session is a no-op that returns
// the row unchanged.
func (m *Manager) End(id model.SessionID) (*model.Session, error) {
	sess, err := m.sessions.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.EndedAt != nil {
		// Terminal state is idempotent: no writes.
		return sess, nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("end session: begin tx: %w", err)
	}
	defer tx.Rollback()

	sessions := m.sessions.WithTx(tx)

	defisCompleted, err := m.history.WithTx(tx).CountBySession(id)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	coinsAwarded, err := m.ledger.WithTx(tx).SumBySession(id)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}

	endedAt := m.now()
	if err := sessions.Close(id, endedAt, defisCompleted, coinsAwarded); err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}

	updated, err := sessions.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	if updated == nil {
		m.logger.Error("session update not visible on re-read", "session_id", id)
		return nil, ErrPostUpdateInconsistency
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("end session: commit: %w", err)
	}

	m.events.Info(sess.HouseholdID, "session_ended", string(sess.Type), sess.ParticipantIDs, id.String())
	return updated, nil
}

// GetActive returns the household's unended session, or nil if none.
func (m *Manager) GetActive(householdID model.HouseholdID) (*model.Session, error) {
	return m.sessions.GetActive(householdID)
}

// GetByID returns a session by id, or nil if absent.
func (m *Manager) GetByID(id model.SessionID) (*model.Session, error) {
	return m.sessions.GetByID(id)
}

// History returns the household's sessions, most recent first.
func (m *Manager) History(householdID model.HouseholdID, limit int) ([]model.Session, error) {
	return m.sessions.History(householdID, limit)
}

// Summarize returns the frozen view of an ended session, recomputing the
// aggregates the same way End does. It returns nil for a session that does
// not exist or has not ended yet.
func (m *Manager) Summarize(id model.SessionID) (*model.SessionSummary, error) {
	sess, err := m.sessions.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("summarize session: %w", err)
	}
	if sess == nil || sess.EndedAt == nil {
		return nil, nil
	}

	defisCompleted, err := m.history.CountBySession(id)
	if err != nil {
		return nil, fmt.Errorf("summarize session: %w", err)
	}
	coinsAwarded, err := m.ledger.SumBySession(id)
	if err != nil {
		return nil, fmt.Errorf("summarize session: %w", err)
	}

	return &model.SessionSummary{
		SessionID:      sess.ID,
		ParticipantIDs: sess.ParticipantIDs,
		StartedAt:      sess.StartedAt,
		EndedAt:        *sess.EndedAt,
		DefisCompleted: defisCompleted,
		CoinsAwarded:   coinsAwarded,
	}, nil
}
