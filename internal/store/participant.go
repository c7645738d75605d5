package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mrolland/defily/internal/model"
)

type ParticipantStore struct {
	q Querier
}

func NewParticipantStore(db *sql.DB) *ParticipantStore {
	return &ParticipantStore{q: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *ParticipantStore) WithTx(tx *sql.Tx) *ParticipantStore {
	return &ParticipantStore{q: tx}
}

func scanParticipant(scanner interface{ Scan(...any) error }) (*model.Participant, error) {
	var p model.Participant
	err := scanner.Scan(
		&p.ID, &p.HouseholdID, &p.Name, &p.Birthdate,
		&p.AvatarRef, &p.CoinBalance, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const participantCols = `id, household_id, name, birthdate, avatar_ref, coin_balance, created_at`

func (s *ParticipantStore) Create(householdID model.HouseholdID, name string, birthdate time.Time, avatarRef string) (*model.Participant, error) {
	result, err := s.q.Exec(
		`INSERT INTO participants (household_id, name, birthdate, avatar_ref) VALUES (?, ?, ?, ?)`,
		householdID, name, birthdate.UTC(), avatarRef,
	)
	if err != nil {
		return nil, fmt.Errorf("insert participant: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(model.ParticipantID(id))
}

func (s *ParticipantStore) GetByID(id model.ParticipantID) (*model.Participant, error) {
	row := s.q.QueryRow(`SELECT `+participantCols+` FROM participants WHERE id = ?`, id)
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (s *ParticipantStore) ListByHousehold(householdID model.HouseholdID) ([]model.Participant, error) {
	rows, err := s.q.Query(
		`SELECT `+participantCols+` FROM participants WHERE household_id = ? ORDER BY name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

// Birthdates returns the birthdates of the given participants in caller
// order, skipping ids that do not exist.
func (s *ParticipantStore) Birthdates(ids []model.ParticipantID) ([]time.Time, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.q.Query(
		`SELECT id, birthdate FROM participants WHERE id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get birthdates: %w", err)
	}
	defer rows.Close()

	byID := make(map[model.ParticipantID]time.Time, len(ids))
	for rows.Next() {
		var id model.ParticipantID
		var bd time.Time
		if err := rows.Scan(&id, &bd); err != nil {
			return nil, fmt.Errorf("scan birthdate: %w", err)
		}
		byID[id] = bd
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get birthdates: %w", err)
	}

	var dates []time.Time
	for _, id := range ids {
		if bd, ok := byID[id]; ok {
			dates = append(dates, bd)
		}
	}
	return dates, nil
}

// Balance returns the current coin balance of one participant.
func (s *ParticipantStore) Balance(id model.ParticipantID) (int, error) {
	var balance int
	err := s.q.QueryRow(`SELECT coin_balance FROM participants WHERE id = ?`, id).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("participant %d not found", id)
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Balances returns the balances of the given participants keyed by id. Every
// requested id must exist.
func (s *ParticipantStore) Balances(ids []model.ParticipantID) (map[model.ParticipantID]int, error) {
	balances := make(map[model.ParticipantID]int, len(ids))
	if len(ids) == 0 {
		return balances, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.q.Query(
		`SELECT id, coin_balance FROM participants WHERE id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id model.ParticipantID
		var b int
		if err := rows.Scan(&id, &b); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances[id] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}

	for _, id := range ids {
		if _, ok := balances[id]; !ok {
			return nil, fmt.Errorf("participant %d not found", id)
		}
	}
	return balances, nil
}

// AddToBalance applies a signed delta to a participant's coin balance.
func (s *ParticipantStore) AddToBalance(id model.ParticipantID, delta int) error {
	_, err := s.q.Exec(
		`UPDATE participants SET coin_balance = coin_balance + ? WHERE id = ?`,
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

func (s *ParticipantStore) Update(id model.ParticipantID, name string, birthdate time.Time, avatarRef string) (*model.Participant, error) {
	_, err := s.q.Exec(
		`UPDATE participants SET name = ?, birthdate = ?, avatar_ref = ? WHERE id = ?`,
		name, birthdate.UTC(), avatarRef, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update participant: %w", err)
	}
	return s.GetByID(id)
}

func (s *ParticipantStore) Delete(id model.ParticipantID) error {
	_, err := s.q.Exec(`DELETE FROM participants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}
