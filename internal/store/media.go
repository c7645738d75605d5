package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mrolland/defily/internal/model"
)

type MediaStore struct {
	q Querier
}

func NewMediaStore(db *sql.DB) *MediaStore {
	return &MediaStore{q: db}
}

func scanMedia(scanner interface{ Scan(...any) error }) (*model.SessionMedia, error) {
	var m model.SessionMedia
	var participantIDs, metadata string

	err := scanner.Scan(
		&m.ID, &m.SessionID, &m.HouseholdID, &participantIDs,
		&m.FileRef, &m.Kind, &m.TakenAt, &metadata,
	)
	if err != nil {
		return nil, err
	}

	m.ParticipantIDs = decodeIDs(participantIDs)
	// The metadata blob is opaque; a malformed value degrades to empty.
	if err := json.Unmarshal([]byte(metadata), &m.Metadata); err != nil {
		m.Metadata = map[string]string{}
	}
	return &m, nil
}

const mediaCols = `id, session_id, household_id, participant_ids, file_ref, kind, taken_at, metadata`

func (s *MediaStore) Create(m model.SessionMedia) (*model.SessionMedia, error) {
	if m.FileRef == "" {
		return nil, fmt.Errorf("insert media: missing file ref")
	}
	metadata := "{}"
	if len(m.Metadata) > 0 {
		data, err := json.Marshal(m.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(data)
	}
	if m.TakenAt.IsZero() {
		m.TakenAt = time.Now()
	}

	result, err := s.q.Exec(
		`INSERT INTO session_media (session_id, household_id, participant_ids, file_ref, kind, taken_at, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.SessionID, m.HouseholdID, encodeIDs(m.ParticipantIDs),
		m.FileRef, m.Kind, m.TakenAt.UTC(), metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("insert media: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.q.QueryRow(`SELECT `+mediaCols+` FROM session_media WHERE id = ?`, id)
	return scanMedia(row)
}

// ListBySession returns a session's media rows in capture order.
func (s *MediaStore) ListBySession(sessionID model.SessionID) ([]model.SessionMedia, error) {
	rows, err := s.q.Query(
		`SELECT `+mediaCols+` FROM session_media WHERE session_id = ? ORDER BY taken_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var media []model.SessionMedia
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		media = append(media, *m)
	}
	return media, rows.Err()
}

func (s *MediaStore) Delete(id int64) error {
	_, err := s.q.Exec(`DELETE FROM session_media WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}
