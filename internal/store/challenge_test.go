package store

import (
	"testing"

	"github.com/mrolland/defily/internal/database"
	"github.com/mrolland/defily/internal/model"
)

func setupChallengeTestDB(t *testing.T) *ChallengeStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewChallengeStore(db)
}

func TestChallengeCreateAssignsID(t *testing.T) {
	cs := setupChallengeTestDB(t)

	c, err := cs.Create(model.Challenge{HouseholdID: 1, Title: "Course en sac"})
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	if c.ID == "" {
		t.Error("expected generated id")
	}
	if c.HouseholdID != 1 {
		t.Errorf("household_id = %d, want 1", c.HouseholdID)
	}
}

func TestChallengeNullableFields(t *testing.T) {
	cs := setupChallengeTestDB(t)

	duration, ageMin := 20, 6
	c, err := cs.Create(model.Challenge{
		HouseholdID: 1,
		Title:       "Cache-cache",
		DurationMin: &duration,
		AgeMin:      &ageMin,
	})
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}

	got, err := cs.GetByID(c.ID, 1)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if got.DurationMin == nil || *got.DurationMin != 20 {
		t.Errorf("duration_min = %v, want 20", got.DurationMin)
	}
	if got.AgeMin == nil || *got.AgeMin != 6 {
		t.Errorf("age_min = %v, want 6", got.AgeMin)
	}
	if got.AgeMax != nil {
		t.Errorf("age_max = %v, want nil", got.AgeMax)
	}
}

func TestChallengeDefaultsAndCustomsAreSeparate(t *testing.T) {
	cs := setupChallengeTestDB(t)

	if _, err := cs.Create(model.Challenge{ID: "d1", HouseholdID: model.DefaultScope, Title: "Défaut"}); err != nil {
		t.Fatalf("create default: %v", err)
	}
	if _, err := cs.Create(model.Challenge{ID: "c1", HouseholdID: 7, Title: "Perso"}); err != nil {
		t.Fatalf("create custom: %v", err)
	}

	defaults, err := cs.ListDefaults()
	if err != nil {
		t.Fatalf("list defaults: %v", err)
	}
	if len(defaults) != 1 || defaults[0].ID != "d1" {
		t.Errorf("defaults = %v, want [d1]", defaults)
	}

	customs, err := cs.ListByHousehold(7)
	if err != nil {
		t.Fatalf("list customs: %v", err)
	}
	if len(customs) != 1 || customs[0].ID != "c1" {
		t.Errorf("customs = %v, want [c1]", customs)
	}
}

func TestChallengeCustomShadowsDefault(t *testing.T) {
	cs := setupChallengeTestDB(t)

	if _, err := cs.Create(model.Challenge{ID: "d1", HouseholdID: model.DefaultScope, Title: "Défaut"}); err != nil {
		t.Fatalf("create default: %v", err)
	}

	// A household may reuse a default's id: the composite key keeps both rows.
	if _, err := cs.Create(model.Challenge{ID: "d1", HouseholdID: 7, Title: "Version maison"}); err != nil {
		t.Fatalf("create shadow: %v", err)
	}

	shadow, err := cs.GetByID("d1", 7)
	if err != nil {
		t.Fatalf("get shadow: %v", err)
	}
	if shadow == nil || shadow.Title != "Version maison" {
		t.Errorf("shadow = %+v, want household copy", shadow)
	}

	original, err := cs.GetByID("d1", model.DefaultScope)
	if err != nil {
		t.Fatalf("get default: %v", err)
	}
	if original == nil || original.Title != "Défaut" {
		t.Errorf("default = %+v, want untouched original", original)
	}
}

func TestChallengeDuplicateDefaultRejected(t *testing.T) {
	cs := setupChallengeTestDB(t)

	if _, err := cs.Create(model.Challenge{ID: "d1", HouseholdID: model.DefaultScope, Title: "Défaut"}); err != nil {
		t.Fatalf("create default: %v", err)
	}
	if _, err := cs.Create(model.Challenge{ID: "d1", HouseholdID: model.DefaultScope, Title: "Doublon"}); err == nil {
		t.Error("expected duplicate default to be rejected")
	}
}

func TestChallengeUpdateAndDelete(t *testing.T) {
	cs := setupChallengeTestDB(t)

	c, err := cs.Create(model.Challenge{HouseholdID: 1, Title: "Avant"})
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}

	c.Title = "Après"
	updated, err := cs.Update(*c)
	if err != nil {
		t.Fatalf("update challenge: %v", err)
	}
	if updated.Title != "Après" {
		t.Errorf("title = %q, want %q", updated.Title, "Après")
	}

	if err := cs.Delete(c.ID, 1); err != nil {
		t.Fatalf("delete challenge: %v", err)
	}
	got, err := cs.GetByID(c.ID, 1)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}
