package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// prices and totals go over the wire as JSON numbers
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(ctx).Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	respondJSON(ctx, w, status, ErrorResponse{Error: message, Code: code})
}

// classifyCatalogError reports catalog failures other than a missing
// product as unavailable.
func classifyCatalogError(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
}

// handleServiceError converts cart error kinds to HTTP status codes.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		status int
		code   string
	)

	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	default:
		logger.FromContext(ctx).Error("unhandled error", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(ctx, w, status, code, err.Error())
}
