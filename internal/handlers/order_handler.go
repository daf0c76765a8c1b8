package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
	"github.com/Lixing-Zhang/ebook-landing/internal/repository"
	"github.com/Lixing-Zhang/ebook-landing/internal/service"
	"github.com/go-chi/chi/v5"
)

// FormSessionHeader carries the form session a submission belongs to
const FormSessionHeader = "X-Form-Session"

// orderSubmitter runs the submission pipeline
type orderSubmitter interface {
	Submit(ctx context.Context, form service.Form, ui service.Presenter) error
}

// priceQuoter renders the price display for a discount input
type priceQuoter interface {
	QuoteDiscount(ctx context.Context, code string) models.PriceQuote
	BasePrice(ctx context.Context) string
}

// OrderHandler handles order form sessions and submissions
type OrderHandler struct {
	orders   orderSubmitter
	sessions repository.SessionRepository
	prices   priceQuoter
	maxFile  int64
	log      *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders orderSubmitter, sessions repository.SessionRepository, prices priceQuoter, maxFile int64, log *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		sessions: sessions,
		prices:   prices,
		maxFile:  maxFile,
		log:      log,
	}
}

// SessionResponse describes an order form session
type SessionResponse struct {
	models.FormSessionStatus
	PriceDisplay string `json:"priceDisplay"`
}

// SubmitResponse is the outcome of one submission attempt
type SubmitResponse struct {
	Status  string   `json:"status"`
	FormID  string   `json:"formId"`
	Events  []string `json:"events,omitempty"`
	Message string   `json:"message,omitempty"`
}

// OpenSession handles POST /api/order/session
// Opens a fresh order form with the price display reset to the base price. The form named
// in the X-Form-Session header, if any, is discarded.
func (h *OrderHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	if prev := r.Header.Get(FormSessionHeader); prev != "" {
		if err := h.sessions.Delete(r.Context(), prev); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
			h.log.Warn("failed to discard form session", "form_id", prev, "error", err)
		}
	}

	session, err := h.sessions.Create(r.Context())
	if err != nil {
		h.log.Error("failed to open form session", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.log)
		return
	}

	w.Header().Set(FormSessionHeader, session.ID)
	WriteJSON(w, http.StatusCreated, SessionResponse{
		FormSessionStatus: session.Status(),
		PriceDisplay:      h.prices.BasePrice(r.Context()),
	}, h.log)
}

// GetSession handles GET /api/order/session/{sessionId}
func (h *OrderHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			WriteError(w, http.StatusNotFound, "Form session not found", h.log)
			return
		}
		h.log.Error("failed to load form session", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.log)
		return
	}

	WriteJSON(w, http.StatusOK, session.Status(), h.log)
}

// Submit handles POST /api/order
// - 200: accepted, success shown after the optimistic delay
// - 409: the form already has a submission in flight or was closed, nothing was done
// - 422: the attachment could not be read, nothing was sent
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fields, file, err := readOrderForm(r, h.maxFile)
	if err != nil {
		h.log.Warn("failed to read order form", "error", err)
		WriteError(w, http.StatusBadRequest, "Invalid order form", h.log)
		return
	}

	session, err := h.sessionFor(ctx, r.Header.Get(FormSessionHeader))
	if err != nil {
		h.log.Error("failed to open form session", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.log)
		return
	}
	w.Header().Set(FormSessionHeader, session.ID)

	if !session.Open() {
		WriteJSON(w, http.StatusConflict, SubmitResponse{
			Status:  "ignored",
			FormID:  session.ID,
			Message: "Form is closed, open a new one",
		}, h.log)
		return
	}

	form := &orderForm{
		session: session,
		fields:  fields,
		file:    file,
		price:   h.prices.QuoteDiscount(ctx, fieldValue(fields, models.FieldDiscountCode)).Display,
	}
	ui := newResponsePresenter()

	err = h.orders.Submit(ctx, form, ui)
	switch {
	case errors.Is(err, service.ErrSubmissionInFlight):
		WriteJSON(w, http.StatusConflict, SubmitResponse{Status: "ignored", FormID: session.ID}, h.log)
		return
	case errors.Is(err, service.ErrAttachmentUnreadable):
		events, message := ui.snapshot()
		WriteJSON(w, http.StatusUnprocessableEntity, SubmitResponse{
			Status:  "error",
			FormID:  session.ID,
			Events:  events,
			Message: message,
		}, h.log)
		return
	case err != nil:
		h.log.Error("order submission failed", "form_id", session.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.log)
		return
	}

	select {
	case <-ui.Done():
	case <-ctx.Done():
		return
	}

	events, _ := ui.snapshot()
	WriteJSON(w, http.StatusOK, SubmitResponse{
		Status: "success",
		FormID: session.ID,
		Events: events,
	}, h.log)
}

// sessionFor returns the named session, or a fresh one when the id is empty or unknown
func (h *OrderHandler) sessionFor(ctx context.Context, id string) (*models.FormSession, error) {
	if id != "" {
		session, err := h.sessions.Get(ctx, id)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, repository.ErrSessionNotFound) {
			return nil, err
		}
	}
	return h.sessions.Create(ctx)
}
