package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// OpportunityLister is the read side of the opportunity store.
type OpportunityLister interface {
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error)
}

// OpportunityHandler serves stored opportunities.
type OpportunityHandler struct {
	store  OpportunityLister
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(store OpportunityLister, logger *slog.Logger) *OpportunityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpportunityHandler{store: store, logger: logger.With(slog.String("handler", "opportunities"))}
}

type listOpportunitiesResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

// ListRecent returns the most recently detected opportunities.
// GET /api/opportunities/recent?limit=50&offset=0&since=...&until=...
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	opps, err := h.store.ListRecent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{
		Opportunities: opps,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
	})
}
