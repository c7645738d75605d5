package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mrolland/defily/internal/model"
)

type HistoryStore struct {
	q Querier
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{q: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *HistoryStore) WithTx(tx *sql.Tx) *HistoryStore {
	return &HistoryStore{q: tx}
}

func scanHistoryEntry(scanner interface{ Scan(...any) error }) (*model.DefiHistoryEntry, error) {
	var e model.DefiHistoryEntry
	var participantIDs string
	var sessionID sql.NullInt64

	err := scanner.Scan(
		&e.ID, &e.ChallengeID, &e.HouseholdID, &participantIDs,
		&sessionID, &e.CompletedAt, &e.CompletedBy,
	)
	if err != nil {
		return nil, err
	}

	e.ParticipantIDs = decodeIDs(participantIDs)
	if sessionID.Valid {
		id := model.SessionID(sessionID.Int64)
		e.SessionID = &id
	}
	return &e, nil
}

const historyCols = `id, challenge_id, household_id, participant_ids, session_id, completed_at, completed_by`

func (s *HistoryStore) Create(e model.DefiHistoryEntry) (int64, error) {
	var sessionID sql.NullInt64
	if e.SessionID != nil {
		sessionID = sql.NullInt64{Int64: int64(*e.SessionID), Valid: true}
	}
	if e.CompletedAt.IsZero() {
		e.CompletedAt = time.Now()
	}

	result, err := s.q.Exec(
		`INSERT INTO defi_history (challenge_id, household_id, participant_ids, session_id, completed_at, completed_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ChallengeID, e.HouseholdID, encodeIDs(e.ParticipantIDs),
		sessionID, e.CompletedAt.UTC(), e.CompletedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("insert history entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *HistoryStore) GetByID(id int64) (*model.DefiHistoryEntry, error) {
	row := s.q.QueryRow(`SELECT `+historyCols+` FROM defi_history WHERE id = ?`, id)
	e, err := scanHistoryEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	return e, nil
}

// CountBySession returns the number of completions recorded against a
// session. This is the authoritative count used at session closure.
func (s *HistoryStore) CountBySession(sessionID model.SessionID) (int, error) {
	var count int
	err := s.q.QueryRow(
		`SELECT COUNT(*) FROM defi_history WHERE session_id = ?`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return count, nil
}

// RecentChallengeIDs returns the distinct challenge ids the household
// completed at or after the given time.
func (s *HistoryStore) RecentChallengeIDs(householdID model.HouseholdID, since time.Time) (map[model.ChallengeID]bool, error) {
	rows, err := s.q.Query(
		`SELECT DISTINCT challenge_id FROM defi_history WHERE household_id = ? AND completed_at >= ?`,
		householdID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list recent challenge ids: %w", err)
	}
	defer rows.Close()

	recent := make(map[model.ChallengeID]bool)
	for rows.Next() {
		var id model.ChallengeID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan challenge id: %w", err)
		}
		recent[id] = true
	}
	return recent, rows.Err()
}

// ListByHousehold returns the household's completions, most recent first.
func (s *HistoryStore) ListByHousehold(householdID model.HouseholdID, limit int) ([]model.DefiHistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(
		`SELECT `+historyCols+` FROM defi_history WHERE household_id = ? ORDER BY completed_at DESC LIMIT ?`,
		householdID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []model.DefiHistoryEntry
	for rows.Next() {
		e, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteByChallengeIDs purges the household's history rows for the given
// challenges, making them eligible for selection again.
func (s *HistoryStore) DeleteByChallengeIDs(householdID model.HouseholdID, ids []model.ChallengeID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, householdID)
	for _, id := range ids {
		args = append(args, id)
	}
	result, err := s.q.Exec(
		`DELETE FROM defi_history WHERE household_id = ? AND challenge_id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete history entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
