package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/workflow"
)

// IdentitiesHandler handles enrollment and identity administration.
type IdentitiesHandler struct {
	svc    *workflow.Service
	logger *slog.Logger
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(svc *workflow.Service, logger *slog.Logger) *IdentitiesHandler {
	return &IdentitiesHandler{svc: svc, logger: logger}
}

// ListResponse is returned by GET /identities.
type ListResponse struct {
	Identities []IdentityResponse `json:"identities"`
	Count      int                `json:"count"`
}

// List returns all enrolled identities.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.svc.List(r.Context())
	if err != nil {
		respondWorkflowError(w, h.logger, r, err)
		return
	}

	resp := ListResponse{Identities: make([]IdentityResponse, 0, len(identities)), Count: len(identities)}
	for _, identity := range identities {
		resp.Identities = append(resp.Identities, toIdentityResponse(identity))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Create enrolls an identity from a multipart form with id, name and image.
func (h *IdentitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	image, err := readImage(w, r)
	if err != nil {
		respondWorkflowError(w, h.logger, r, err)
		return
	}

	id, err := parseID(r.FormValue("id"))
	if err != nil {
		respondWorkflowError(w, h.logger, r, err)
		return
	}

	identity, err := h.svc.Enroll(r.Context(), workflow.EnrollRequest{
		ID:    id,
		Name:  r.FormValue("name"),
		Image: image,
	})
	if err != nil {
		respondWorkflowError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toIdentityResponse(*identity))
}

// Delete removes an identity and its reference image.
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondWorkflowError(w, h.logger, r, err)
		return
	}

	identity, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		respondWorkflowError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": toIdentityResponse(*identity)})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", workflow.ErrInvalidRequest)
	}
	return id, nil
}
