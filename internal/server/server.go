package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/mrolland/defily/internal/activity"
	"github.com/mrolland/defily/internal/backup"
	"github.com/mrolland/defily/internal/catalog"
	"github.com/mrolland/defily/internal/config"
	"github.com/mrolland/defily/internal/handler"
	"github.com/mrolland/defily/internal/history"
	"github.com/mrolland/defily/internal/ledger"
	"github.com/mrolland/defily/internal/middleware"
	"github.com/mrolland/defily/internal/runtime"
	"github.com/mrolland/defily/internal/selection"
	"github.com/mrolland/defily/internal/session"
	"github.com/mrolland/defily/internal/store"
	ws "github.com/mrolland/defily/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	householdH    *handler.HouseholdHandler
	challengeH    *handler.ChallengeHandler
	sessionH      *handler.SessionHandler
	rewardH       *handler.RewardHandler
	adminH        *handler.AdminHandler
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	householdStore := store.NewHouseholdStore(db)
	participantStore := store.NewParticipantStore(db)
	challengeStore := store.NewChallengeStore(db)
	sessionStore := store.NewSessionStore(db)
	historyStore := store.NewHistoryStore(db)
	ledgerStore := store.NewLedgerStore(db)
	rewardStore := store.NewRewardStore(db)
	mediaStore := store.NewMediaStore(db)
	activityStore := store.NewActivityStore(db)
	flagStore := store.NewFlagStore(db)

	events := activity.New(activityStore, hub, logger.With("component", "activity"))

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	engine := selection.New(challengeStore, historyStore, participantStore, events, rng)
	manager := session.NewManager(db, sessionStore, historyStore, ledgerStore, events, logger.With("component", "session"))
	recorder := history.NewRecorder(historyStore, sessionStore, events)
	coins := ledger.NewService(db, participantStore, ledgerStore, rewardStore, sessionStore, events)
	state := runtime.NewStateStore(flagStore)

	catalogClient := catalog.NewClient(catalog.Config{
		BaseURL: cfg.CatalogURL,
		Timeout: cfg.CatalogTimeout,
	})
	importer := catalog.NewImporter(db, catalogClient, challengeStore, rewardStore, events)

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.BackupEndpoint,
			Bucket:    cfg.BackupBucket,
			Region:    cfg.BackupRegion,
			AccessKey: cfg.BackupAccessKey,
			SecretKey: cfg.BackupSecretKey,
		},
		DBPath:   cfg.DBPath,
		Interval: cfg.BackupInterval,
	}, db, logger.With("component", "backup"))

	return &Server{
		db:            db,
		hub:           hub,
		householdH:    handler.NewHouseholdHandler(householdStore, participantStore, logger.With("component", "household")),
		challengeH:    handler.NewChallengeHandler(challengeStore, recorder, hub, logger.With("component", "challenge")),
		sessionH:      handler.NewSessionHandler(manager, engine, recorder, coins, mediaStore, state, hub, logger.With("component", "session_http"), cfg.LookbackDays),
		rewardH:       handler.NewRewardHandler(rewardStore, coins, hub, logger.With("component", "reward")),
		adminH:        handler.NewAdminHandler(importer, backupMgr, activityStore, logger.With("component", "admin")),
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		logger:        logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Households and participants
	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("GET /api/households", s.householdH.List)
	mux.HandleFunc("GET /api/households/{household_id}", s.householdH.Get)
	mux.HandleFunc("POST /api/households/{household_id}/participants", s.householdH.CreateParticipant)
	mux.HandleFunc("GET /api/households/{household_id}/participants", s.householdH.ListParticipants)

	// Challenges
	mux.HandleFunc("POST /api/households/{household_id}/challenges", s.challengeH.Create)
	mux.HandleFunc("GET /api/households/{household_id}/challenges", s.challengeH.List)
	mux.HandleFunc("PUT /api/households/{household_id}/challenges/{id}", s.challengeH.Update)
	mux.HandleFunc("DELETE /api/households/{household_id}/challenges/{id}", s.challengeH.Delete)
	mux.HandleFunc("POST /api/households/{household_id}/challenges/reactivate", s.challengeH.Reactivate)

	// Sessions
	mux.HandleFunc("POST /api/sessions", s.sessionH.Start)
	mux.HandleFunc("POST /api/sessions/{id}/end", s.sessionH.End)
	mux.HandleFunc("GET /api/sessions/{id}", s.sessionH.Get)
	mux.HandleFunc("GET /api/sessions/{id}/summary", s.sessionH.Summary)
	mux.HandleFunc("GET /api/households/{household_id}/sessions/active", s.sessionH.Active)
	mux.HandleFunc("GET /api/households/{household_id}/sessions", s.sessionH.History)

	// Selection
	mux.HandleFunc("POST /api/selection/random", s.sessionH.PickRandom)
	mux.HandleFunc("POST /api/selection/bundle", s.sessionH.BuildBundle)

	// Completions and awards
	mux.HandleFunc("POST /api/sessions/{id}/complete", s.sessionH.Complete)

	// Session media
	mux.HandleFunc("POST /api/sessions/{id}/media", s.sessionH.AttachMedia)
	mux.HandleFunc("GET /api/sessions/{id}/media", s.sessionH.ListMedia)

	// Resumable runtime state
	mux.HandleFunc("GET /api/sessions/{id}/runtime", s.sessionH.RuntimeState)
	mux.HandleFunc("PATCH /api/runtime", s.sessionH.PatchRuntimeState)

	// Rewards
	mux.HandleFunc("POST /api/households/{household_id}/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/households/{household_id}/rewards", s.rewardH.List)
	mux.HandleFunc("PUT /api/households/{household_id}/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/households/{household_id}/rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /api/rewards/grant", s.rewardLimitedHandler(s.rewardH.Grant))
	mux.HandleFunc("GET /api/households/{household_id}/rewards/history", s.rewardH.History)

	// Admin and operations
	mux.HandleFunc("POST /api/households/{household_id}/catalog/import", s.adminH.ImportCatalog)
	mux.HandleFunc("GET /api/backup/status", s.adminH.BackupStatus)
	mux.HandleFunc("POST /api/backup/run", s.adminH.RunBackup)
	mux.HandleFunc("GET /api/households/{household_id}/activity", s.adminH.ActivityFeed)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rewardLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 30, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
