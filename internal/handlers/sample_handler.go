package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SampleRequest is a free-sample lead
type SampleRequest struct {
	Name  string `json:"name"  validate:"omitempty,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
}

// Validate validates the sample request
func (r *SampleRequest) Validate(v *validator.Validate) error {
	return v.Struct(r)
}

// SampleResponse hands out the sample discount code
type SampleResponse struct {
	DiscountCode string `json:"discountCode"`
	Message      string `json:"message"`
}

// SampleHandler handles free-sample requests
type SampleHandler struct {
	code     string
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSampleHandler creates a handler that rewards leads with code
func NewSampleHandler(code string, logger *slog.Logger) *SampleHandler {
	return &SampleHandler{
		code:     code,
		validate: validator.New(),
		logger:   logger,
	}
}

// RequestSample handles POST /api/sample
func (h *SampleHandler) RequestSample(w http.ResponseWriter, r *http.Request) {
	var req SampleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := req.Validate(h.validate); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "validation failed",
			"details": validationDetails(err),
		}, h.logger)
		return
	}

	h.logger.Info("sample requested", "email_domain", emailDomain(req.Email))
	WriteJSON(w, http.StatusOK, SampleResponse{
		DiscountCode: h.code,
		Message:      "Your sample is on its way. Use the code at checkout.",
	}, h.logger)
}

func validationDetails(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	details := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := strings.ToLower(fieldError.Field())
		switch fieldError.Tag() {
		case "required":
			details = append(details, fmt.Sprintf("%s is required", field))
		default:
			details = append(details, fmt.Sprintf("%s is invalid", field))
		}
	}
	return details
}

func emailDomain(email string) string {
	_, domain, _ := strings.Cut(email, "@")
	return domain
}
