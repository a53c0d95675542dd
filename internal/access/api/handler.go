package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"accessctl/internal/access/application"
	"accessctl/internal/access/domain"
	"accessctl/internal/common/logging"
	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
	tenancy "accessctl/internal/tenancy/domain"
)

func parseOccurredAt(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// Handler implements the HTTP handler for attempt intake.
type Handler struct {
	service *application.Service
}

// NewHandler creates a new Handler.
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the access API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /organizations/{orgId}/accesses/attempts", h.RegisterAttempt)
}

// registerAttemptRequest is the JSON request body for attempt intake.
type registerAttemptRequest struct {
	DeviceID       string  `json:"deviceId"`
	SubjectType    string  `json:"subjectType"`
	PassDirection  string  `json:"passDirection"`
	AuthMethod     string  `json:"authMethod"`
	SubjectID      *string `json:"subjectId"`
	IdempotencyKey string  `json:"idempotencyKey"`
	OccurredAtUTC  string  `json:"occurredAtUtc"`
}

// RegisterAttempt handles POST /organizations/{orgId}/accesses/attempts.
func (h *Handler) RegisterAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID := types.OrgID(r.PathValue("orgId"))
	if orgID.IsEmpty() {
		h.writeError(w, http.StatusBadRequest, "orgId is required")
		return
	}

	var req registerAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.DeviceID == "" {
		h.writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}
	if req.IdempotencyKey == "" {
		h.writeError(w, http.StatusBadRequest, "idempotencyKey is required")
		return
	}
	if len(req.IdempotencyKey) > 120 {
		h.writeError(w, http.StatusBadRequest, "idempotencyKey must be at most 120 characters")
		return
	}
	if req.SubjectType == "" || req.PassDirection == "" || req.AuthMethod == "" {
		h.writeError(w, http.StatusBadRequest, "subjectType, passDirection and authMethod are required")
		return
	}

	occurredAt, err := parseOccurredAt(req.OccurredAtUTC)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "occurredAtUtc must be RFC3339")
		return
	}

	var subjectID *types.SubjectID
	if req.SubjectID != nil {
		v := types.SubjectID(*req.SubjectID)
		subjectID = &v
	}

	resp, err := h.service.RegisterAttempt(ctx, application.RegisterAttemptRequest{
		OrgID:          orgID,
		DeviceID:       types.DeviceID(req.DeviceID),
		SubjectType:    directory.SubjectType(req.SubjectType),
		PassDirection:  directory.PassDirection(req.PassDirection),
		AuthMethod:     directory.AuthMethod(req.AuthMethod),
		SubjectID:      subjectID,
		IdempotencyKey: req.IdempotencyKey,
		OccurredAtUTC:  occurredAt,
	})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrDeviceNotFound):
		h.writeError(w, http.StatusNotFound, "device not found")
	case errors.Is(err, tenancy.ErrOrganizationNotFound):
		h.writeError(w, http.StatusNotFound, "organization not found")
	case errors.Is(err, domain.ErrAttemptNotFound):
		h.writeError(w, http.StatusNotFound, "attempt not found")
	case errors.Is(err, domain.ErrCorruptData), errors.Is(err, directory.ErrCorruptData), errors.Is(err, tenancy.ErrCorruptData):
		logging.Error("corrupt data detected", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		logging.Error("unhandled error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}
