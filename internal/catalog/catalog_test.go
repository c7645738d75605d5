package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mrolland/defily/internal/activity"
	"github.com/mrolland/defily/internal/database"
	"github.com/mrolland/defily/internal/store"
)

const testPayload = `{
	"challenges": [
		{"id": "c1", "title": "Chasse au trésor", "category": "aventure", "duration_min": 30, "default_points": 10},
		{"id": "c2", "title": "Dessin libre", "category": "créativité", "default_points": 5}
	],
	"rewards": [
		{"id": "r1", "title": "Soirée cinéma", "cost": 50}
	]
}`

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/catalog" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, testPayload)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	payload, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(payload.Challenges) != 2 {
		t.Errorf("challenges = %d, want 2", len(payload.Challenges))
	}
	if len(payload.Rewards) != 1 {
		t.Errorf("rewards = %d, want 1", len(payload.Rewards))
	}
	if payload.Challenges[0].DurationMin == nil || *payload.Challenges[0].DurationMin != 30 {
		t.Errorf("duration = %v, want 30", payload.Challenges[0].DurationMin)
	}
}

func TestClientFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, testPayload)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	payload, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(payload.Challenges) != 2 {
		t.Errorf("challenges = %d, want 2", len(payload.Challenges))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestClientFetchClientErrorDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 403")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestClientUnconfigured(t *testing.T) {
	client := NewClient(Config{})
	if client.Configured() {
		t.Error("empty base URL should report unconfigured")
	}
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Error("expected fast failure when unconfigured")
	}
}

func TestImporterImportPayload(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := activity.New(store.NewActivityStore(db), nil, logger)
	challenges := store.NewChallengeStore(db)
	rewards := store.NewRewardStore(db)

	households := store.NewHouseholdStore(db)
	h, err := households.Create("Martin", "Claire")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	importer := NewImporter(db, nil, challenges, rewards, events)

	duration := 30
	count, err := importer.ImportPayload(h.ID, &Payload{
		Challenges: []ChallengeRow{
			{ID: "c1", Title: "Chasse au trésor", DurationMin: &duration},
			{ID: "c2", Title: "Dessin libre"},
		},
		Rewards: []RewardRow{
			{ID: "r1", Title: "Soirée cinéma", Cost: 50},
		},
	})
	if err != nil {
		t.Fatalf("import payload: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	imported, err := challenges.ListByHousehold(h.ID)
	if err != nil {
		t.Fatalf("list challenges: %v", err)
	}
	if len(imported) != 2 {
		t.Errorf("challenges = %d, want 2", len(imported))
	}

	rs, err := rewards.List(h.ID)
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}
	if len(rs) != 1 || !rs[0].Active {
		t.Errorf("rewards = %v, want one active", rs)
	}
}

func TestImporterImportPayloadAllOrNothing(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := activity.New(store.NewActivityStore(db), nil, logger)
	challenges := store.NewChallengeStore(db)
	rewards := store.NewRewardStore(db)

	households := store.NewHouseholdStore(db)
	h, err := households.Create("Martin", "Claire")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	importer := NewImporter(db, nil, challenges, rewards, events)

	// The duplicate id violates the primary key mid-import; the first row
	// must be rolled back with it.
	_, err = importer.ImportPayload(h.ID, &Payload{
		Challenges: []ChallengeRow{
			{ID: "c1", Title: "Première"},
			{ID: "c1", Title: "Doublon"},
		},
	})
	if err == nil {
		t.Fatal("expected import failure")
	}

	imported, err := challenges.ListByHousehold(h.ID)
	if err != nil {
		t.Fatalf("list challenges: %v", err)
	}
	if len(imported) != 0 {
		t.Errorf("challenges = %d, want 0 after rollback", len(imported))
	}
}
