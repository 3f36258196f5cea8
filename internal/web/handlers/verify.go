package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/workflow"
)

// VerifyHandler handles verification and nearest-identity ranking.
type VerifyHandler struct {
	svc    *workflow.Service
	logger *slog.Logger
}

// NewVerifyHandler creates a new verify handler.
func NewVerifyHandler(svc *workflow.Service, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{svc: svc, logger: logger}
}

// VerifyResponse is the decision for an uploaded face. Denied requests are
// still 200; only inconclusive results are errors.
type VerifyResponse struct {
	Admitted   bool              `json:"admitted"`
	Identity   *IdentityResponse `json:"identity,omitempty"`
	Score      *float64          `json:"score,omitempty"`
	Candidates int               `json:"candidates"`
}

// Verify checks an uploaded image against all enrolled identities.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	image, err := readImage(w, r)
	if err != nil {
		respondWorkflowError(w, h.logger, r, err)
		return
	}

	outcome, err := h.svc.Verify(r.Context(), workflow.VerifyRequest{Image: image})
	if err != nil {
		respondWorkflowError(w, h.logger, r, err)
		return
	}

	resp := VerifyResponse{Admitted: outcome.Admitted, Candidates: outcome.Candidates}
	if outcome.Identity != nil {
		identity := toIdentityResponse(*outcome.Identity)
		resp.Identity = &identity
	}
	if outcome.HasScore {
		score := outcome.Score
		resp.Score = &score
	}
	respondJSON(w, http.StatusOK, resp)
}

// NearestMatch is one ranked identity.
type NearestMatch struct {
	IdentityResponse
	Distance float64 `json:"distance"`
}

// Nearest ranks the identities closest to an uploaded face. The k query
// parameter defaults to 5.
func (h *VerifyHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	k := constants.DefaultNearestLimit
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > constants.MaxNearestLimit {
			respondWorkflowError(w, h.logger, r,
				fmt.Errorf("%w: k must be between 1 and %d", workflow.ErrInvalidRequest, constants.MaxNearestLimit))
			return
		}
		k = parsed
	}

	image, err := readImage(w, r)
	if err != nil {
		respondWorkflowError(w, h.logger, r, err)
		return
	}

	results, err := h.svc.Nearest(r.Context(), image, k)
	if err != nil {
		respondWorkflowError(w, h.logger, r, err)
		return
	}

	matches := make([]NearestMatch, 0, len(results))
	for _, res := range results {
		matches = append(matches, NearestMatch{
			IdentityResponse: toIdentityResponse(res.Identity),
			Distance:         res.Distance,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"matches": matches})
}
