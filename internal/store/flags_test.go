package store

import (
	"testing"

	"github.com/mrolland/defily/internal/database"
)

func setupFlagTestDB(t *testing.T) *FlagStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFlagStore(db)
}

func TestFlagSetGetDelete(t *testing.T) {
	fs := setupFlagTestDB(t)

	_, _, ok, err := fs.Get("missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Error("missing key should report ok=false")
	}

	if err := fs.Set("slot", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, updatedAt, ok, err := fs.Get("slot")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || value != "v1" {
		t.Errorf("get = (%q, %v), want (v1, true)", value, ok)
	}
	if updatedAt.IsZero() {
		t.Error("updated_at should be set")
	}

	// Upsert replaces in place.
	if err := fs.Set("slot", "v2"); err != nil {
		t.Fatalf("set again: %v", err)
	}
	value, _, _, err = fs.Get("slot")
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if value != "v2" {
		t.Errorf("value = %q, want v2", value)
	}

	if err := fs.Delete("slot"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, _, ok, err = fs.Get("slot")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ok {
		t.Error("deleted key should report ok=false")
	}
}
