package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mrolland/defily/internal/history"
	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
	"github.com/mrolland/defily/internal/websocket"
)

type ChallengeHandler struct {
	challenges *store.ChallengeStore
	recorder   *history.Recorder
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewChallengeHandler(cs *store.ChallengeStore, rec *history.Recorder, hub *websocket.Hub, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{challenges: cs, recorder: rec, hub: hub, logger: logger}
}

func (h *ChallengeHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type challengeRequest struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Location      string `json:"location"`
	DurationMin   *int   `json:"duration_min"`
	DefaultPoints int    `json:"default_points"`
	PhotoRequired bool   `json:"photo_required"`
	AgeMin        *int   `json:"age_min"`
	AgeMax        *int   `json:"age_max"`
}

func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	challenge, err := h.challenges.Create(model.Challenge{
		ID:            model.ChallengeID(req.ID),
		HouseholdID:   householdID,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Location:      req.Location,
		DurationMin:   req.DurationMin,
		DefaultPoints: req.DefaultPoints,
		PhotoRequired: req.PhotoRequired,
		AgeMin:        req.AgeMin,
		AgeMax:        req.AgeMax,
	})
	if err != nil {
		h.logger.Error("create challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create challenge")
		return
	}

	h.broadcast(websocket.NewMessage("challenge", "created", householdID, string(challenge.ID), nil))
	writeJSON(w, http.StatusCreated, challenge)
}

// List returns the household's custom challenges plus the shared defaults.
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	defaults, err := h.challenges.ListDefaults()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list challenges")
		return
	}
	customs, err := h.challenges.ListByHousehold(householdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list challenges")
		return
	}

	challenges := append(defaults, customs...)
	if challenges == nil {
		challenges = []model.Challenge{}
	}
	writeJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) Update(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}
	id := model.ChallengeID(r.PathValue("id"))

	existing, err := h.challenges.GetByID(id, householdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get challenge")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "challenge not found")
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	challenge, err := h.challenges.Update(model.Challenge{
		ID:            id,
		HouseholdID:   householdID,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Location:      req.Location,
		DurationMin:   req.DurationMin,
		DefaultPoints: req.DefaultPoints,
		PhotoRequired: req.PhotoRequired,
		AgeMin:        req.AgeMin,
		AgeMax:        req.AgeMax,
	})
	if err != nil {
		h.logger.Error("update challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update challenge")
		return
	}

	h.broadcast(websocket.NewMessage("challenge", "updated", householdID, string(id), nil))
	writeJSON(w, http.StatusOK, challenge)
}

func (h *ChallengeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}
	id := model.ChallengeID(r.PathValue("id"))

	if err := h.challenges.Delete(id, householdID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete challenge")
		return
	}

	h.broadcast(websocket.NewMessage("challenge", "deleted", householdID, string(id), nil))
	w.WriteHeader(http.StatusNoContent)
}

type reactivateRequest struct {
	ChallengeIDs []model.ChallengeID `json:"challenge_ids"`
}

// Reactivate purges the household's completion history for the given
// challenges so they become eligible again.
func (h *ChallengeHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	var req reactivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.recorder.Reactivate(householdID, req.ChallengeIDs); err != nil {
		h.logger.Error("reactivate challenges", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reactivate challenges")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
