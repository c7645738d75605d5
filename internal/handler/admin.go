package handler

import (
	"log/slog"
	"net/http"

	"github.com/mrolland/defily/internal/backup"
	"github.com/mrolland/defily/internal/catalog"
	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
)

// AdminHandler exposes operational endpoints: catalog import, backup
// control, and the activity feed.
type AdminHandler struct {
	importer *catalog.Importer
	backups  *backup.Manager
	activity *store.ActivityStore
	logger   *slog.Logger
}

func NewAdminHandler(importer *catalog.Importer, backups *backup.Manager, as *store.ActivityStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{importer: importer, backups: backups, activity: as, logger: logger}
}

// ImportCatalog pulls the remote catalog into the household's custom sets.
func (h *AdminHandler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	count, err := h.importer.Import(r.Context(), householdID)
	if err != nil {
		h.logger.Error("import catalog", "error", err)
		writeError(w, http.StatusBadGateway, "catalog import failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": count})
}

func (h *AdminHandler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.backups.Status())
}

func (h *AdminHandler) RunBackup(w http.ResponseWriter, r *http.Request) {
	key, err := h.backups.RunNow(r.Context())
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func (h *AdminHandler) ActivityFeed(w http.ResponseWriter, r *http.Request) {
	householdID, err := householdParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid household id")
		return
	}

	events, err := h.activity.ListByHousehold(householdID, queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	if events == nil {
		events = []model.ActivityEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
