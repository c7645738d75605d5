package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
)

type HouseholdHandler struct {
	households   *store.HouseholdStore
	participants *store.ParticipantStore
	logger       *slog.Logger
}

func NewHouseholdHandler(hs *store.HouseholdStore, ps *store.ParticipantStore, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{households: hs, participants: ps, logger: logger}
}

type householdRequest struct {
	Name         string `json:"name"`
	ReferentName string `json:"referent_name"`
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	household, err := h.households.Create(req.Name, req.ReferentName)
	if err != nil {
		h.logger.Error("create household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}
	writeJSON(w, http.StatusCreated, household)
}

func (h *HouseholdHandler) List(w http.ResponseWriter, r *http.Request) {
	households, err := h.households.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list households")
		return
	}
	if households == nil {
		households = []model.Household{}
	}
	writeJSON(w, http.StatusOK, households)
}

func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	household, err := h.households.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get household")
		return
	}
	if household == nil {
		writeError(w, http.StatusNotFound, "household not found")
		return
	}
	writeJSON(w, http.StatusOK, household)
}

type participantRequest struct {
	Name      string    `json:"name"`
	Birthdate time.Time `json:"birthdate"`
	AvatarRef string    `json:"avatar_ref"`
}

func (h *HouseholdHandler) CreateParticipant(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Birthdate.IsZero() {
		writeError(w, http.StatusBadRequest, "birthdate is required")
		return
	}

	participant, err := h.participants.Create(householdID, req.Name, req.Birthdate, req.AvatarRef)
	if err != nil {
		h.logger.Error("create participant", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create participant")
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (h *HouseholdHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	participants, err := h.participants.ListByHousehold(householdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list participants")
		return
	}
	if participants == nil {
		participants = []model.Participant{}
	}
	writeJSON(w, http.StatusOK, participants)
}
