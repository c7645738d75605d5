package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mrolland/defily/internal/model"
)

type ChallengeStore struct {
	q Querier
}

func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{q: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *ChallengeStore) WithTx(tx *sql.Tx) *ChallengeStore {
	return &ChallengeStore{q: tx}
}

func scanChallenge(scanner interface{ Scan(...any) error }) (*model.Challenge, error) {
	var c model.Challenge
	var durationMin, ageMin, ageMax sql.NullInt64
	var photoRequired int

	err := scanner.Scan(
		&c.ID, &c.HouseholdID, &c.Title, &c.Description, &c.Category,
		&c.Location, &durationMin, &c.DefaultPoints, &photoRequired,
		&ageMin, &ageMax, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.PhotoRequired = photoRequired != 0
	if durationMin.Valid {
		v := int(durationMin.Int64)
		c.DurationMin = &v
	}
	if ageMin.Valid {
		v := int(ageMin.Int64)
		c.AgeMin = &v
	}
	if ageMax.Valid {
		v := int(ageMax.Int64)
		c.AgeMax = &v
	}
	return &c, nil
}

const challengeCols = `id, household_id, title, description, category, location, duration_min, default_points, photo_required, age_min, age_max, created_at`

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// Create inserts a household-custom challenge. When id is empty a new uuid
// is assigned; passing a default challenge's id shadows that default for
// the household.
func (s *ChallengeStore) Create(c model.Challenge) (*model.Challenge, error) {
	if c.ID == "" {
		c.ID = model.ChallengeID(uuid.NewString())
	}
	var photo int
	if c.PhotoRequired {
		photo = 1
	}

	_, err := s.q.Exec(
		`INSERT INTO challenges (id, household_id, title, description, category, location, duration_min, default_points, photo_required, age_min, age_max)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.HouseholdID, c.Title, c.Description, c.Category, c.Location,
		nullableInt(c.DurationMin), c.DefaultPoints, photo,
		nullableInt(c.AgeMin), nullableInt(c.AgeMax),
	)
	if err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}
	return s.GetByID(c.ID, c.HouseholdID)
}

func (s *ChallengeStore) GetByID(id model.ChallengeID, householdID model.HouseholdID) (*model.Challenge, error) {
	row := s.q.QueryRow(
		`SELECT `+challengeCols+` FROM challenges WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

// ListDefaults returns the shared/default challenges.
func (s *ChallengeStore) ListDefaults() ([]model.Challenge, error) {
	return s.list(model.DefaultScope)
}

// ListByHousehold returns the household's custom challenges only.
func (s *ChallengeStore) ListByHousehold(householdID model.HouseholdID) ([]model.Challenge, error) {
	return s.list(householdID)
}

func (s *ChallengeStore) list(householdID model.HouseholdID) ([]model.Challenge, error) {
	rows, err := s.q.Query(
		`SELECT `+challengeCols+` FROM challenges WHERE household_id = ? ORDER BY title ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []model.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}

func (s *ChallengeStore) Update(c model.Challenge) (*model.Challenge, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("update challenge: missing id")
	}
	var photo int
	if c.PhotoRequired {
		photo = 1
	}

	_, err := s.q.Exec(
		`UPDATE challenges SET title = ?, description = ?, category = ?, location = ?, duration_min = ?, default_points = ?, photo_required = ?, age_min = ?, age_max = ?
		 WHERE id = ? AND household_id = ?`,
		c.Title, c.Description, c.Category, c.Location,
		nullableInt(c.DurationMin), c.DefaultPoints, photo,
		nullableInt(c.AgeMin), nullableInt(c.AgeMax),
		c.ID, c.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update challenge: %w", err)
	}
	return s.GetByID(c.ID, c.HouseholdID)
}

func (s *ChallengeStore) Delete(id model.ChallengeID, householdID model.HouseholdID) error {
	_, err := s.q.Exec(`DELETE FROM challenges WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
