package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mrolland/defily/internal/history"
	"github.com/mrolland/defily/internal/ledger"
	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/runtime"
	"github.com/mrolland/defily/internal/selection"
	"github.com/mrolland/defily/internal/session"
	"github.com/mrolland/defily/internal/store"
	"github.com/mrolland/defily/internal/websocket"
)

type SessionHandler struct {
	manager  *session.Manager
	engine   *selection.Engine
	recorder *history.Recorder
	coins    *ledger.Service
	media    *store.MediaStore
	state    *runtime.StateStore
	hub      *websocket.Hub
	logger   *slog.Logger

	lookbackDays int
}

func NewSessionHandler(m *session.Manager, e *selection.Engine, rec *history.Recorder, coins *ledger.Service, media *store.MediaStore, state *runtime.StateStore, hub *websocket.Hub, logger *slog.Logger, lookbackDays int) *SessionHandler {
	return &SessionHandler{
		manager:      m,
		engine:       e,
		recorder:     rec,
		coins:        coins,
		media:        media,
		state:        state,
		hub:          hub,
		logger:       logger,
		lookbackDays: lookbackDays,
	}
}

func (h *SessionHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type startSessionRequest struct {
	HouseholdID        model.HouseholdID     `json:"household_id"`
	ParticipantIDs     []model.ParticipantID `json:"participant_ids"`
	Type               model.SessionType     `json:"type"`
	Location           string                `json:"location"`
	Category           string                `json:"category"`
	PlannedDurationMin *int                  `json:"planned_duration_min"`
	CreatedBy          string                `json:"created_by"`
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sess, err := h.manager.Start(session.StartConfig{
		HouseholdID:        req.HouseholdID,
		ParticipantIDs:     req.ParticipantIDs,
		Type:               req.Type,
		Location:           req.Location,
		Category:           req.Category,
		PlannedDurationMin: req.PlannedDurationMin,
		CreatedBy:          req.CreatedBy,
	})
	if errors.Is(err, session.ErrActiveSessionExists) {
		writeError(w, http.StatusConflict, "household already has an active session")
		return
	}
	if err != nil {
		h.logger.Error("start session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	h.broadcast(websocket.NewMessage("session", "started", sess.HouseholdID, sess.ID.String(), nil))
	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	sess, err := h.manager.End(model.SessionID(id))
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("end session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to end session")
		return
	}

	h.broadcast(websocket.NewMessage("session", "ended", sess.HouseholdID, sess.ID.String(), nil))
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	sess, err := h.manager.GetActive(householdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get active session")
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	sess, err := h.manager.GetByID(model.SessionID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	sessions, err := h.manager.History(householdID, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	summary, err := h.manager.Summarize(model.SessionID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to summarize session")
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "session not found or still active")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type selectionRequest struct {
	HouseholdID        model.HouseholdID     `json:"household_id"`
	ParticipantIDs     []model.ParticipantID `json:"participant_ids"`
	Location           string                `json:"location"`
	Category           string                `json:"category"`
	PlannedDurationMin *int                  `json:"planned_duration_min"`
}

func (h *SessionHandler) PickRandom(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	challenge, err := h.engine.PickRandom(selection.Config{
		HouseholdID:        req.HouseholdID,
		ParticipantIDs:     req.ParticipantIDs,
		Location:           req.Location,
		Category:           req.Category,
		PlannedDurationMin: req.PlannedDurationMin,
		LookbackDays:       h.lookbackDays,
	})
	if err != nil {
		h.logger.Error("pick random challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to pick challenge")
		return
	}

	// No eligible challenge is a valid outcome, not an error.
	writeJSON(w, http.StatusOK, map[string]any{"challenge": challenge})
}

func (h *SessionHandler) BuildBundle(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	bundle, err := h.engine.BuildBundle(selection.Config{
		HouseholdID:        req.HouseholdID,
		ParticipantIDs:     req.ParticipantIDs,
		Location:           req.Location,
		Category:           req.Category,
		PlannedDurationMin: req.PlannedDurationMin,
		LookbackDays:       h.lookbackDays,
	})
	if err != nil {
		h.logger.Error("build bundle", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build bundle")
		return
	}
	if bundle == nil {
		bundle = []model.Challenge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bundle": bundle})
}

type completeRequest struct {
	HouseholdID    model.HouseholdID     `json:"household_id"`
	ChallengeID    model.ChallengeID     `json:"challenge_id"`
	ParticipantIDs []model.ParticipantID `json:"participant_ids"`
	CompletedBy    string                `json:"completed_by"`
	CoinsPerChild  int                   `json:"coins_per_child"`
}

// Complete records a challenge completion against the session and awards
// coins when a per-child amount is given.
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	sessionID := model.SessionID(id)

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ChallengeID == "" {
		writeError(w, http.StatusBadRequest, "challenge_id is required")
		return
	}

	historyID, err := h.recorder.Record(&sessionID, req.HouseholdID, req.ChallengeID, req.ParticipantIDs, req.CompletedBy)
	if err != nil {
		h.logger.Error("record completion", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record completion")
		return
	}

	if err := h.coins.AwardCoins(&sessionID, req.HouseholdID, req.ParticipantIDs, req.CoinsPerChild, "defi:"+string(req.ChallengeID), req.CompletedBy); err != nil {
		h.logger.Error("award coins", "error", err)
		writeError(w, http.StatusInternalServerError, "completion recorded but award failed")
		return
	}

	h.broadcast(websocket.NewMessage("challenge", "completed", req.HouseholdID, string(req.ChallengeID), nil))
	writeJSON(w, http.StatusCreated, map[string]int64{"history_id": historyID})
}

type mediaRequest struct {
	HouseholdID    model.HouseholdID     `json:"household_id"`
	ParticipantIDs []model.ParticipantID `json:"participant_ids"`
	FileRef        string                `json:"file_ref"`
	Kind           string                `json:"kind"`
	TakenAt        time.Time             `json:"taken_at"`
	Metadata       map[string]string     `json:"metadata"`
}

func (h *SessionHandler) AttachMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req mediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.FileRef == "" {
		writeError(w, http.StatusBadRequest, "file_ref is required")
		return
	}
	if req.Kind == "" {
		req.Kind = "photo"
	}

	media, err := h.media.Create(model.SessionMedia{
		SessionID:      model.SessionID(id),
		HouseholdID:    req.HouseholdID,
		ParticipantIDs: req.ParticipantIDs,
		FileRef:        req.FileRef,
		Kind:           req.Kind,
		TakenAt:        req.TakenAt,
		Metadata:       req.Metadata,
	})
	if err != nil {
		h.logger.Error("attach media", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to attach media")
		return
	}
	writeJSON(w, http.StatusCreated, media)
}

func (h *SessionHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	media, err := h.media.ListBySession(model.SessionID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list media")
		return
	}
	if media == nil {
		media = []model.SessionMedia{}
	}
	writeJSON(w, http.StatusOK, media)
}

// RuntimeState returns the resumable selection state for a session, if it
// still belongs to that session.
func (h *SessionHandler) RuntimeState(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	state, err := h.state.ResumeFor(model.SessionID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read runtime state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}

func (h *SessionHandler) PatchRuntimeState(w http.ResponseWriter, r *http.Request) {
	var patch runtime.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	state, err := h.state.Update(patch)
	if err != nil {
		h.logger.Error("update runtime state", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update runtime state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}
