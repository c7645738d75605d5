package session

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mrolland/defily/internal/activity"
	"github.com/mrolland/defily/internal/database"
	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
)

type managerFixture struct {
	manager      *Manager
	sessions     *store.SessionStore
	history      *store.HistoryStore
	ledger       *store.LedgerStore
	participants *store.ParticipantStore
	householdID  model.HouseholdID
}

func setupManager(t *testing.T) *managerFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := activity.New(store.NewActivityStore(db), nil, logger)

	households := store.NewHouseholdStore(db)
	h, err := households.Create("Martin", "Claire")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	sessions := store.NewSessionStore(db)
	history := store.NewHistoryStore(db)
	ledger := store.NewLedgerStore(db)

	return &managerFixture{
		manager:      NewManager(db, sessions, history, ledger, events, logger),
		sessions:     sessions,
		history:      history,
		ledger:       ledger,
		participants: store.NewParticipantStore(db),
		householdID:  h.ID,
	}
}

func TestStartSession(t *testing.T) {
	f := setupManager(t)

	sess, err := f.manager.Start(StartConfig{
		HouseholdID:    f.householdID,
		ParticipantIDs: []model.ParticipantID{1, 2},
		Type:           model.SessionRandom,
		Location:       "interieur",
		CreatedBy:      "claire",
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if !sess.Active() {
		t.Error("started session should be active")
	}
	if sess.Type != model.SessionRandom {
		t.Errorf("type = %q, want %q", sess.Type, model.SessionRandom)
	}
	if len(sess.ParticipantIDs) != 2 {
		t.Errorf("participant count = %d, want 2", len(sess.ParticipantIDs))
	}
}

func TestStartSessionRejectsSecondActive(t *testing.T) {
	f := setupManager(t)

	if _, err := f.manager.Start(StartConfig{HouseholdID: f.householdID, Type: model.SessionRandom}); err != nil {
		t.Fatalf("start first session: %v", err)
	}

	_, err := f.manager.Start(StartConfig{HouseholdID: f.householdID, Type: model.SessionBundle})
	if !errors.Is(err, ErrActiveSessionExists) {
		t.Errorf("error = %v, want ErrActiveSessionExists", err)
	}
}

func TestStartSessionValidation(t *testing.T) {
	f := setupManager(t)

	if _, err := f.manager.Start(StartConfig{Type: model.SessionRandom}); err == nil {
		t.Error("expected error for missing household id")
	}
	if _, err := f.manager.Start(StartConfig{HouseholdID: f.householdID, Type: "speedrun"}); err == nil {
		t.Error("expected error for unknown session type")
	}
}

func TestEndSessionRecomputesAggregates(t *testing.T) {
	f := setupManager(t)

	p, err := f.participants.Create(f.householdID, "Léo", time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC), "")
	if err != nil {
		t.Fatalf("create participant: %v", err)
	}

	sess, err := f.manager.Start(StartConfig{HouseholdID: f.householdID, Type: model.SessionRandom})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	// Three completions and 120 coins of ledger movement. The stored running
	// counter stays at zero on purpose: closure must recount from the tables.
	for _, cid := range []model.ChallengeID{"a", "b", "c"} {
		if _, err := f.history.Create(model.DefiHistoryEntry{
			ChallengeID: cid,
			HouseholdID: f.householdID,
			SessionID:   &sess.ID,
		}); err != nil {
			t.Fatalf("create history entry: %v", err)
		}
	}
	for _, amount := range []int{50, 50, 20} {
		if _, err := f.ledger.Create(model.CoinLedgerEntry{
			HouseholdID:   f.householdID,
			ParticipantID: p.ID,
			SessionID:     &sess.ID,
			Amount:        amount,
		}); err != nil {
			t.Fatalf("create ledger entry: %v", err)
		}
	}

	ended, err := f.manager.End(sess.ID)
	if err != nil {
		t.Fatalf("end session: %v", err)
	}
	if ended.EndedAt == nil {
		t.Fatal("ended session should have ended_at")
	}
	if ended.DefisCompleted != 3 {
		t.Errorf("defis_completed = %d, want 3", ended.DefisCompleted)
	}
	if ended.CoinsAwarded != 120 {
		t.Errorf("coins_awarded = %d, want 120", ended.CoinsAwarded)
	}
	if ended.Synced {
		t.Error("freshly ended session should be unsynced")
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	f := setupManager(t)

	sess, err := f.manager.Start(StartConfig{HouseholdID: f.householdID, Type: model.SessionRandom})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	first, err := f.manager.End(sess.ID)
	if err != nil {
		t.Fatalf("first end: %v", err)
	}

	// New history arriving after closure must not change the frozen row.
	if _, err := f.history.Create(model.DefiHistoryEntry{
		ChallengeID: "late",
		HouseholdID: f.householdID,
		SessionID:   &sess.ID,
	}); err != nil {
		t.Fatalf("create late entry: %v", err)
	}

	second, err := f.manager.End(sess.ID)
	if err != nil {
		t.Fatalf("second end: %v", err)
	}
	if !second.EndedAt.Equal(*first.EndedAt) {
		t.Errorf("ended_at changed on repeat end: %v != %v", second.EndedAt, first.EndedAt)
	}
	if second.DefisCompleted != first.DefisCompleted {
		t.Errorf("defis_completed changed on repeat end: %d != %d", second.DefisCompleted, first.DefisCompleted)
	}
}

func TestEndSessionNotFound(t *testing.T) {
	f := setupManager(t)

	_, err := f.manager.End(999)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestSummarize(t *testing.T) {
	f := setupManager(t)

	sess, err := f.manager.Start(StartConfig{
		HouseholdID:    f.householdID,
		ParticipantIDs: []model.ParticipantID{1},
		Type:           model.SessionBundle,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	// Active sessions have no summary yet.
	summary, err := f.manager.Summarize(sess.ID)
	if err != nil {
		t.Fatalf("summarize active: %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil summary for active session, got %+v", summary)
	}

	if _, err := f.manager.End(sess.ID); err != nil {
		t.Fatalf("end session: %v", err)
	}

	summary, err = f.manager.Summarize(sess.ID)
	if err != nil {
		t.Fatalf("summarize ended: %v", err)
	}
	if summary == nil {
		t.Fatal("expected summary for ended session")
	}
	if summary.SessionID != sess.ID {
		t.Errorf("session_id = %d, want %d", summary.SessionID, sess.ID)
	}

	// Missing session also yields nil.
	summary, err = f.manager.Summarize(999)
	if err != nil {
		t.Fatalf("summarize missing: %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil summary for missing session, got %+v", summary)
	}
}
