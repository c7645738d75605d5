package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mrolland/defily/internal/model"
)

type RewardStore struct {
	q Querier
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{q: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *RewardStore) WithTx(tx *sql.Tx) *RewardStore {
	return &RewardStore{q: tx}
}

// --- Catalog methods ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var active int

	err := scanner.Scan(&r.ID, &r.HouseholdID, &r.Title, &r.Description, &r.Cost, &active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, household_id, title, description, cost, active, created_at`

func (s *RewardStore) Create(r model.Reward) (*model.Reward, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	var active int
	if r.Active {
		active = 1
	}

	_, err := s.q.Exec(
		`INSERT INTO reward_catalog (id, household_id, title, description, cost, active) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.HouseholdID, r.Title, r.Description, r.Cost, active,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return s.GetByID(r.ID, r.HouseholdID)
}

func (s *RewardStore) GetByID(id string, householdID model.HouseholdID) (*model.Reward, error) {
	row := s.q.QueryRow(
		`SELECT `+rewardCols+` FROM reward_catalog WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// List returns the household's rewards plus the shared defaults, active
// first, then by title.
func (s *RewardStore) List(householdID model.HouseholdID) ([]model.Reward, error) {
	rows, err := s.q.Query(
		`SELECT `+rewardCols+` FROM reward_catalog WHERE household_id IN (?, ?) ORDER BY active DESC, title ASC`,
		householdID, model.DefaultScope,
	)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(r model.Reward) (*model.Reward, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("update reward: missing id")
	}
	var active int
	if r.Active {
		active = 1
	}

	_, err := s.q.Exec(
		`UPDATE reward_catalog SET title = ?, description = ?, cost = ?, active = ? WHERE id = ? AND household_id = ?`,
		r.Title, r.Description, r.Cost, active, r.ID, r.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(r.ID, r.HouseholdID)
}

func (s *RewardStore) Delete(id string, householdID model.HouseholdID) error {
	_, err := s.q.Exec(`DELETE FROM reward_catalog WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}

// --- History methods ---

func scanRewardHistory(scanner interface{ Scan(...any) error }) (*model.RewardHistoryEntry, error) {
	var e model.RewardHistoryEntry
	var participantIDs string
	var sessionID sql.NullInt64

	err := scanner.Scan(
		&e.ID, &e.RewardID, &e.HouseholdID, &participantIDs,
		&sessionID, &e.ReceivedAt, &e.ReceivedBy,
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

const rewardHistoryCols = `id, reward_id, household_id, participant_ids, session_id, received_at, received_by`

func (s *RewardStore) CreateHistory(e model.RewardHistoryEntry) (int64, error) {
	var sessionID sql.NullInt64
	if e.SessionID != nil {
		sessionID = sql.NullInt64{Int64: int64(*e.SessionID), Valid: true}
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}

	result, err := s.q.Exec(
		`INSERT INTO reward_history (reward_id, household_id, participant_ids, session_id, received_at, received_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.RewardID, e.HouseholdID, encodeIDs(e.ParticipantIDs),
		sessionID, e.ReceivedAt.UTC(), e.ReceivedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reward history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// ListHistory returns the household's redemptions, most recent first.
func (s *RewardStore) ListHistory(householdID model.HouseholdID, limit int) ([]model.RewardHistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(
		`SELECT `+rewardHistoryCols+` FROM reward_history WHERE household_id = ? ORDER BY received_at DESC LIMIT ?`,
		householdID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reward history: %w", err)
	}
	defer rows.Close()

	var entries []model.RewardHistoryEntry
	for rows.Next() {
		e, err := scanRewardHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward history: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// CountHistory returns the number of redemption rows for a household. Used
// by tests asserting that failed grants leave no trace.
func (s *RewardStore) CountHistory(householdID model.HouseholdID) (int, error) {
	var count int
	err := s.q.QueryRow(
		`SELECT COUNT(*) FROM reward_history WHERE household_id = ?`,
		householdID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reward history: %w", err)
	}
	return count, nil
}
