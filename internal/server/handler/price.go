package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/service"
)

// PriceQuerier answers latest-price lookups. *service.PriceService
// satisfies it.
type PriceQuerier interface {
	Latest(ctx context.Context, token string) (service.TokenQuotes, error)
}

// PriceHandler serves the latest cross-venue prices of a token.
type PriceHandler struct {
	prices PriceQuerier
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(prices PriceQuerier, logger *slog.Logger) *PriceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceHandler{prices: prices, logger: logger.With(slog.String("handler", "prices"))}
}

// Latest returns every venue's latest quote for a token.
// GET /api/prices/{token}
func (h *PriceHandler) Latest(w http.ResponseWriter, r *http.Request) {
	token := strings.ToUpper(strings.TrimSpace(r.PathValue("token")))
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	q, err := h.prices.Latest(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no recent prices for "+token)
			return
		}
		h.logger.ErrorContext(r.Context(), "latest prices failed",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load prices")
		return
	}
	writeJSON(w, http.StatusOK, q)
}
