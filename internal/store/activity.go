package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mrolland/defily/internal/model"
)

type ActivityStore struct {
	q Querier
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{q: db}
}

func (s *ActivityStore) Create(e model.ActivityEvent) (int64, error) {
	var householdID sql.NullInt64
	if e.HouseholdID != nil {
		householdID = sql.NullInt64{Int64: int64(*e.HouseholdID), Valid: true}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := s.q.Exec(
		`INSERT INTO activity_log (household_id, participant_ids, type, level, context, details, ref_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		householdID, encodeIDs(e.ParticipantIDs), e.Type, e.Level,
		e.Context, e.Details, e.RefID, e.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert activity event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func scanActivityEvent(scanner interface{ Scan(...any) error }) (*model.ActivityEvent, error) {
	var e model.ActivityEvent
	var householdID sql.NullInt64
	var participantIDs string

	err := scanner.Scan(
		&e.ID, &householdID, &participantIDs, &e.Type, &e.Level,
		&e.Context, &e.Details, &e.RefID, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.ParticipantIDs = decodeIDs(participantIDs)
	if householdID.Valid {
		id := model.HouseholdID(householdID.Int64)
		e.HouseholdID = &id
	}
	return &e, nil
}

const activityCols = `id, household_id, participant_ids, type, level, context, details, ref_id, created_at`

// ListByHousehold returns a household's events, most recent first.
func (s *ActivityStore) ListByHousehold(householdID model.HouseholdID, limit int) ([]model.ActivityEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(
		`SELECT `+activityCols+` FROM activity_log WHERE household_id = ? ORDER BY created_at DESC LIMIT ?`,
		householdID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}
	defer rows.Close()

	var events []model.ActivityEvent
	for rows.Next() {
		e, err := scanActivityEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// CountByType returns the number of events of one type for a household.
func (s *ActivityStore) CountByType(householdID model.HouseholdID, eventType string) (int, error) {
	var count int
	err := s.q.QueryRow(
		`SELECT COUNT(*) FROM activity_log WHERE household_id = ? AND type = ?`,
		householdID, eventType,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count activity events: %w", err)
	}
	return count, nil
}
