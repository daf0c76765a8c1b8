package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Lixing-Zhang/ebook-landing/internal/service"
	"github.com/go-chi/chi/v5"
)

// OfferHandler handles the offer and discount endpoints
type OfferHandler struct {
	service *service.OfferService
	logger  *slog.Logger
}

// NewOfferHandler creates a new offer handler
func NewOfferHandler(service *service.OfferService, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{
		service: service,
		logger:  logger,
	}
}

// GetOffer handles GET /api/offer
func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.service.GetOffer(r.Context()), h.logger)
}

// QuoteDiscount handles GET /api/discount/{code}
// - 200: code applied, quote carries the discounted price
// - 404: unknown code, quote carries the base price
func (h *OfferHandler) QuoteDiscount(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	quote := h.service.QuoteDiscount(r.Context(), code)
	if !quote.Applied {
		WriteJSON(w, http.StatusNotFound, quote, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, quote, h.logger)
}

// GetDiscountStats handles GET /api/discount/stats (for debugging/monitoring)
func (h *OfferHandler) GetDiscountStats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.service.DiscountStats(r.Context()), h.logger)
}
