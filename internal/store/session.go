package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mrolland/defily/internal/model"
)

type SessionStore struct {
	q Querier
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{q: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *SessionStore) WithTx(tx *sql.Tx) *SessionStore {
	return &SessionStore{q: tx}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var sess model.Session
	var participantIDs string
	var plannedDuration sql.NullInt64
	var endedAt sql.NullTime
	var synced int

	err := scanner.Scan(
		&sess.ID, &sess.HouseholdID, &participantIDs, &sess.Type,
		&sess.Location, &sess.Category, &plannedDuration,
		&sess.StartedAt, &endedAt, &sess.DefisCompleted,
		&sess.CoinsAwarded, &synced, &sess.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	sess.ParticipantIDs = decodeIDs(participantIDs)
	sess.Synced = synced != 0
	if plannedDuration.Valid {
		v := int(plannedDuration.Int64)
		sess.PlannedDurationMin = &v
	}
	if endedAt.Valid {
		t := endedAt.Time
		sess.EndedAt = &t
	}
	return &sess, nil
}

const sessionCols = `id, household_id, participant_ids, type, location, category, planned_duration_min, started_at, ended_at, defis_completed, coins_awarded, synced, created_by`

func (s *SessionStore) Create(sess model.Session) (model.SessionID, error) {
	result, err := s.q.Exec(
		`INSERT INTO sessions (household_id, participant_ids, type, location, category, planned_duration_min, started_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.HouseholdID, encodeIDs(sess.ParticipantIDs), sess.Type,
		sess.Location, sess.Category, nullableInt(sess.PlannedDurationMin),
		sess.StartedAt.UTC(), sess.CreatedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return model.SessionID(id), nil
}

func (s *SessionStore) GetByID(id model.SessionID) (*model.Session, error) {
	row := s.q.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// GetActive returns the household's unended session, or nil if none.
func (s *SessionStore) GetActive(householdID model.HouseholdID) (*model.Session, error) {
	row := s.q.QueryRow(
		`SELECT `+sessionCols+` FROM sessions WHERE household_id = ? AND ended_at IS NULL`,
		householdID,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return sess, nil
}

// History returns the household's sessions, most recent first.
func (s *SessionStore) History(householdID model.HouseholdID, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.Query(
		`SELECT `+sessionCols+` FROM sessions WHERE household_id = ? ORDER BY started_at DESC LIMIT ?`,
		householdID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list session history: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// Close writes the terminal state of a session: end time, the recomputed
// aggregates, and the unsynced marker, in a single statement.
func (s *SessionStore) Close(id model.SessionID, endedAt time.Time, defisCompleted, coinsAwarded int) error {
	_, err := s.q.Exec(
		`UPDATE sessions SET ended_at = ?, defis_completed = ?, coins_awarded = ?, synced = 0 WHERE id = ?`,
		endedAt.UTC(), defisCompleted, coinsAwarded, id,
	)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// IncrementDefisCompleted bumps the running completion counter by one. The
// counter is advisory; session closure recomputes the authoritative value
// from defi_history.
func (s *SessionStore) IncrementDefisCompleted(id model.SessionID) error {
	_, err := s.q.Exec(
		`UPDATE sessions SET defis_completed = defis_completed + 1 WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("increment defis completed: %w", err)
	}
	return nil
}

// MarkSynced flags sessions as pushed to the remote provider.
func (s *SessionStore) MarkSynced(ids []model.SessionID) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.q.Exec(
		`UPDATE sessions SET synced = 1 WHERE id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}
