package store

import (
	"database/sql"
	"fmt"

	"github.com/mrolland/defily/internal/model"
)

type HouseholdStore struct {
	q Querier
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{q: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	err := scanner.Scan(&h.ID, &h.Name, &h.ReferentName, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

const householdCols = `id, name, referent_name, created_at`

func (s *HouseholdStore) Create(name, referentName string) (*model.Household, error) {
	result, err := s.q.Exec(
		`INSERT INTO households (name, referent_name) VALUES (?, ?)`,
		name, referentName,
	)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(model.HouseholdID(id))
}

func (s *HouseholdStore) GetByID(id model.HouseholdID) (*model.Household, error) {
	row := s.q.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) List() ([]model.Household, error) {
	rows, err := s.q.Query(`SELECT ` + householdCols + ` FROM households ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list households: %w", err)
	}
	defer rows.Close()

	var households []model.Household
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		households = append(households, *h)
	}
	return households, rows.Err()
}

func (s *HouseholdStore) Update(id model.HouseholdID, name, referentName string) (*model.Household, error) {
	_, err := s.q.Exec(
		`UPDATE households SET name = ?, referent_name = ? WHERE id = ?`,
		name, referentName, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update household: %w", err)
	}
	return s.GetByID(id)
}

func (s *HouseholdStore) Delete(id model.HouseholdID) error {
	_, err := s.q.Exec(`DELETE FROM households WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	return nil
}
