package handlers

import (
	"context"
	"net/http"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// SettingsService loads and saves the workshop settings.
type SettingsService interface {
	Current(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, actor models.Actor, next models.Settings) (models.Settings, error)
}

// SettingsHandler serves /api/settings.
type SettingsHandler struct {
	settings SettingsService
}

func NewSettingsHandler(settings SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var next models.Settings
	if err := decode(r, &next); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := h.settings.Save(r.Context(), a, next)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
