package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mrolland/defily/internal/model"
)

type LedgerStore struct {
	q Querier
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{q: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *LedgerStore) WithTx(tx *sql.Tx) *LedgerStore {
	return &LedgerStore{q: tx}
}

func scanLedgerEntry(scanner interface{ Scan(...any) error }) (*model.CoinLedgerEntry, error) {
	var e model.CoinLedgerEntry
	var sessionID sql.NullInt64
	var challengeID sql.NullString

	err := scanner.Scan(
		&e.ID, &e.HouseholdID, &e.ParticipantID, &sessionID,
		&challengeID, &e.Amount, &e.Reason, &e.CreatedAt, &e.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	if sessionID.Valid {
		id := model.SessionID(sessionID.Int64)
		e.SessionID = &id
	}
	if challengeID.Valid {
		id := model.ChallengeID(challengeID.String)
		e.ChallengeID = &id
	}
	return &e, nil
}

const ledgerCols = `id, household_id, participant_id, session_id, challenge_id, amount, reason, created_at, created_by`

func (s *LedgerStore) Create(e model.CoinLedgerEntry) (int64, error) {
	var sessionID sql.NullInt64
	if e.SessionID != nil {
		sessionID = sql.NullInt64{Int64: int64(*e.SessionID), Valid: true}
	}
	var challengeID sql.NullString
	if e.ChallengeID != nil {
		challengeID = sql.NullString{String: string(*e.ChallengeID), Valid: true}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := s.q.Exec(
		`INSERT INTO coin_ledger (household_id, participant_id, session_id, challenge_id, amount, reason, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.HouseholdID, e.ParticipantID, sessionID, challengeID,
		e.Amount, e.Reason, e.CreatedAt.UTC(), e.CreatedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// SumBySession returns the signed total of all ledger movements attributed
// to a session. This is the authoritative value used at session closure.
func (s *LedgerStore) SumBySession(sessionID model.SessionID) (int, error) {
	var sum sql.NullInt64
	err := s.q.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM coin_ledger WHERE session_id = ?`,
		sessionID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return int(sum.Int64), nil
}

// ListByParticipant returns a participant's ledger movements, most recent
// first.
func (s *LedgerStore) ListByParticipant(participantID model.ParticipantID, limit int) ([]model.CoinLedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(
		`SELECT `+ledgerCols+` FROM coin_ledger WHERE participant_id = ? ORDER BY created_at DESC LIMIT ?`,
		participantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []model.CoinLedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// CountBySession returns how many ledger rows reference a session. Used by
// tests asserting that failed grants leave no trace.
func (s *LedgerStore) CountBySession(sessionID model.SessionID) (int, error) {
	var count int
	err := s.q.QueryRow(
		`SELECT COUNT(*) FROM coin_ledger WHERE session_id = ?`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return count, nil
}
