package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mrolland/defily/internal/ledger"
	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
	"github.com/mrolland/defily/internal/websocket"
)

type RewardHandler struct {
	rewards *store.RewardStore
	grants  *ledger.Service
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, grants *ledger.Service, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rs, grants: grants, hub: hub, logger: logger}
}

func (h *RewardHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type rewardRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Cost        int    `json:"cost"`
	Active      bool   `json:"active"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Cost < 0 {
		writeError(w, http.StatusBadRequest, "cost must be >= 0")
		return
	}

	reward, err := h.rewards.Create(model.Reward{
		ID:          req.ID,
		HouseholdID: householdID,
		Title:       req.Title,
		Description: req.Description,
		Cost:        req.Cost,
		Active:      req.Active,
	})
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reward")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "created", householdID, reward.ID, nil))
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	rewards, err := h.rewards.List(householdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}
	id := r.PathValue("id")

	existing, err := h.rewards.GetByID(id, householdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Cost < 0 {
		writeError(w, http.StatusBadRequest, "cost must be >= 0")
		return
	}

	reward, err := h.rewards.Update(model.Reward{
		ID:          id,
		HouseholdID: householdID,
		Title:       req.Title,
		Description: req.Description,
		Cost:        req.Cost,
		Active:      req.Active,
	})
	if err != nil {
		h.logger.Error("update reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reward")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "updated", householdID, id, nil))
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}
	id := r.PathValue("id")

	if err := h.rewards.Delete(id, householdID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete reward")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "deleted", householdID, id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type grantRequest struct {
	HouseholdID    model.HouseholdID     `json:"household_id"`
	RewardID       string                `json:"reward_id"`
	Cost           int                   `json:"cost"`
	ParticipantIDs []model.ParticipantID `json:"participant_ids"`
	Actor          string                `json:"actor"`
	SessionID      *model.SessionID      `json:"session_id"`
}

// Grant redeems a reward, debiting its cost across the participants.
func (h *RewardHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.RewardID == "" {
		writeError(w, http.StatusBadRequest, "reward_id is required")
		return
	}
	if len(req.ParticipantIDs) == 0 {
		writeError(w, http.StatusBadRequest, "participant_ids is required")
		return
	}

	result, err := h.grants.Grant(req.HouseholdID, req.RewardID, req.Cost, req.ParticipantIDs, req.Actor, req.SessionID)
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		writeError(w, http.StatusConflict, "insufficient combined balance")
		return
	}
	if err != nil {
		h.logger.Error("grant reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to grant reward")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "granted", req.HouseholdID, req.RewardID, nil))
	writeJSON(w, http.StatusOK, result)
}

func (h *RewardHandler) History(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	entries, err := h.rewards.ListHistory(householdID, queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reward history")
		return
	}
	if entries == nil {
		entries = []model.RewardHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
