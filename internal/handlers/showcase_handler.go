package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
)

type snapshotter interface {
	Snapshot() models.ShowcaseSnapshot
}

// ShowcaseHandler serves the social-proof display state
type ShowcaseHandler struct {
	board  snapshotter
	logger *slog.Logger
}

// NewShowcaseHandler creates a new showcase handler
func NewShowcaseHandler(board snapshotter, logger *slog.Logger) *ShowcaseHandler {
	return &ShowcaseHandler{board: board, logger: logger}
}

// GetShowcase handles GET /api/showcase
func (h *ShowcaseHandler) GetShowcase(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, h.board.Snapshot(), h.logger)
}
