package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mrolland/defily/internal/activity"
	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
)

// Importer copies provider rows into a household's custom challenge and
// reward sets in one transaction: all rows land or none do.
type Importer struct {
	db         *sql.DB
	client     *Client
	challenges *store.ChallengeStore
	rewards    *store.RewardStore
	events     *activity.Logger
}

func NewImporter(db *sql.DB, client *Client, cs *store.ChallengeStore, rs *store.RewardStore, events *activity.Logger) *Importer {
	return &Importer{db: db, client: client, challenges: cs, rewards: rs, events: events}
}

// Import fetches the catalog and inserts every row under the household's
// scope. Returns the number of rows imported.
func (i *Importer) Import(ctx context.Context, householdID model.HouseholdID) (int, error) {
	payload, err := i.client.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	return i.ImportPayload(householdID, payload)
}

// ImportPayload inserts an already-fetched payload. Split from Import so
// seed files can reuse the transactional path.
func (i *Importer) ImportPayload(householdID model.HouseholdID, payload *Payload) (int, error) {
	tx, err := i.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("import catalog: begin tx: %w", err)
	}
	defer tx.Rollback()

	challenges := i.challenges.WithTx(tx)
	rewards := i.rewards.WithTx(tx)

	count := 0
	for _, row := range payload.Challenges {
		_, err := challenges.Create(model.Challenge{
			ID:            model.ChallengeID(row.ID),
			HouseholdID:   householdID,
			Title:         row.Title,
			Description:   row.Description,
			Category:      row.Category,
			Location:      row.Location,
			DurationMin:   row.DurationMin,
			DefaultPoints: row.DefaultPoints,
			PhotoRequired: row.PhotoRequired,
			AgeMin:        row.AgeMin,
			AgeMax:        row.AgeMax,
		})
		if err != nil {
			return 0, fmt.Errorf("import catalog: %w", err)
		}
		count++
	}
	for _, row := range payload.Rewards {
		_, err := rewards.Create(model.Reward{
			ID:          row.ID,
			HouseholdID: householdID,
			Title:       row.Title,
			Description: row.Description,
			Cost:        row.Cost,
			Active:      true,
		})
		if err != nil {
			return 0, fmt.Errorf("import catalog: %w", err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import catalog: commit: %w", err)
	}

	i.events.Log(model.ActivityEvent{
		HouseholdID: &householdID,
		Type:        "catalog_imported",
		Level:       activity.LevelInfo,
		Context:     "bulk import",
		Details:     fmt.Sprintf("rows=%d", count),
	})
	return count, nil
}
