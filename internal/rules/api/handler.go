// Package api implements the HTTP boundary for rule CRUD: path-value
// parsing, a handleDomainError switch mapping typed domain errors to status
// codes, and writeJSON/writeError helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"accessctl/internal/common/logging"
	"accessctl/internal/common/types"
	directory "accessctl/internal/directory/domain"
	"accessctl/internal/rules/domain"
	"accessctl/internal/rules/service"
)

// Handler implements the HTTP handlers for rule management.
type Handler struct {
	service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /organizations/{orgId}/rules", h.CreateRule)
	mux.HandleFunc("GET /organizations/{orgId}/rules", h.ListRules)
	mux.HandleFunc("GET /organizations/{orgId}/rules/{ruleId}", h.GetRule)
	mux.HandleFunc("PUT /organizations/{orgId}/rules/{ruleId}", h.UpdateRule)
	mux.HandleFunc("POST /organizations/{orgId}/rules/{ruleId}/activate", h.ActivateRule)
	mux.HandleFunc("POST /organizations/{orgId}/rules/{ruleId}/inactivate", h.InactivateRule)
}

type dailyWindowDTO struct {
	FromLocal string `json:"fromLocal"`
	ToLocal   string `json:"toLocal"`
}

type validityWindowDTO struct {
	ValidFromUTC string `json:"validFromUtc"`
	ValidToUTC   string `json:"validToUtc"`
}

type createRuleRequest struct {
	AreaID        string             `json:"areaId"`
	SubjectType   string             `json:"subjectType"`
	DeviceID      *string            `json:"deviceId"`
	PassDirection *string            `json:"passDirection"`
	AuthMethod    *string            `json:"authMethod"`
	Action        string             `json:"action"`
	Validity      *validityWindowDTO `json:"validity"`
	Daily         *dailyWindowDTO    `json:"daily"`
	Priority      int                `json:"priority"`
	Message       *string            `json:"message"`
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := types.OrgID(r.PathValue("orgId"))
	if orgID.IsEmpty() {
		h.writeError(w, http.StatusBadRequest, "orgId is required")
		return
	}

	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AreaID == "" || req.SubjectType == "" || req.Action == "" {
		h.writeError(w, http.StatusBadRequest, "areaId, subjectType and action are required")
		return
	}

	var deviceID *types.DeviceID
	if req.DeviceID != nil {
		v := types.DeviceID(*req.DeviceID)
		deviceID = &v
	}
	var passDirection *directory.PassDirection
	if req.PassDirection != nil {
		v := directory.PassDirection(*req.PassDirection)
		passDirection = &v
	}
	var authMethod *directory.AuthMethod
	if req.AuthMethod != nil {
		v := directory.AuthMethod(*req.AuthMethod)
		authMethod = &v
	}

	validity, err := parseValidityWindow(req.Validity)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validity.validFromUtc/validToUtc must be RFC3339")
		return
	}
	var daily *domain.DailyWindow
	if req.Daily != nil {
		daily = &domain.DailyWindow{FromLocal: req.Daily.FromLocal, ToLocal: req.Daily.ToLocal}
	}

	resp, err := h.service.CreateRule(ctx, service.CreateRuleRequest{
		OrgID:         orgID,
		AreaID:        types.AreaID(req.AreaID),
		SubjectType:   directory.SubjectType(req.SubjectType),
		DeviceID:      deviceID,
		PassDirection: passDirection,
		AuthMethod:    authMethod,
		Action:        domain.Action(req.Action),
		Validity:      validity,
		Daily:         daily,
		Priority:      req.Priority,
		Message:       req.Message,
	})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func parseValidityWindow(dto *validityWindowDTO) (*domain.ValidityWindow, error) {
	if dto == nil {
		return nil, nil
	}
	from, err := time.Parse(time.RFC3339, dto.ValidFromUTC)
	if err != nil {
		return nil, err
	}
	to, err := time.Parse(time.RFC3339, dto.ValidToUTC)
	if err != nil {
		return nil, err
	}
	return &domain.ValidityWindow{ValidFromUTC: from, ValidToUTC: to}, nil
}

type updateRuleRequest struct {
	SubjectType   string             `json:"subjectType"`
	DeviceID      *string            `json:"deviceId"`
	PassDirection *string            `json:"passDirection"`
	AuthMethod    *string            `json:"authMethod"`
	Action        string             `json:"action"`
	Validity      *validityWindowDTO `json:"validity"`
	Daily         *dailyWindowDTO    `json:"daily"`
	Priority      int                `json:"priority"`
	Message       *string            `json:"message"`
}

func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := types.OrgID(r.PathValue("orgId"))
	ruleID := types.RuleID(r.PathValue("ruleId"))

	var req updateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SubjectType == "" || req.Action == "" {
		h.writeError(w, http.StatusBadRequest, "subjectType and action are required")
		return
	}

	var deviceID *types.DeviceID
	if req.DeviceID != nil {
		v := types.DeviceID(*req.DeviceID)
		deviceID = &v
	}
	var passDirection *directory.PassDirection
	if req.PassDirection != nil {
		v := directory.PassDirection(*req.PassDirection)
		passDirection = &v
	}
	var authMethod *directory.AuthMethod
	if req.AuthMethod != nil {
		v := directory.AuthMethod(*req.AuthMethod)
		authMethod = &v
	}

	validity, err := parseValidityWindow(req.Validity)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validity.validFromUtc/validToUtc must be RFC3339")
		return
	}
	var daily *domain.DailyWindow
	if req.Daily != nil {
		daily = &domain.DailyWindow{FromLocal: req.Daily.FromLocal, ToLocal: req.Daily.ToLocal}
	}

	resp, err := h.service.UpdateRule(ctx, service.UpdateRuleRequest{
		OrgID:         orgID,
		RuleID:        ruleID,
		SubjectType:   directory.SubjectType(req.SubjectType),
		DeviceID:      deviceID,
		PassDirection: passDirection,
		AuthMethod:    authMethod,
		Action:        domain.Action(req.Action),
		Validity:      validity,
		Daily:         daily,
		Priority:      req.Priority,
		Message:       req.Message,
	})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := types.OrgID(r.PathValue("orgId"))
	ruleID := types.RuleID(r.PathValue("ruleId"))

	resp, err := h.service.GetRule(ctx, orgID, ruleID)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := types.OrgID(r.PathValue("orgId"))

	filter := domain.ListFilter{
		Limit:  parseIntOr(r.URL.Query().Get("limit"), 50),
		Offset: parseIntOr(r.URL.Query().Get("offset"), 0),
	}
	if v := r.URL.Query().Get("areaId"); v != "" {
		areaID := types.AreaID(v)
		filter.AreaID = &areaID
	}
	if v := r.URL.Query().Get("subjectType"); v != "" {
		st := directory.SubjectType(v)
		filter.SubjectType = &st
	}
	if v := r.URL.Query().Get("state"); v != "" {
		st := domain.State(v)
		filter.State = &st
	}

	rules, total, err := h.service.ListRules(ctx, service.ListRulesRequest{OrgID: orgID, Filter: filter})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listRulesResponse{Rules: rules, Total: total})
}

type listRulesResponse struct {
	Rules []*service.RuleResponse `json:"rules"`
	Total int                     `json:"total"`
}

func parseIntOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (h *Handler) ActivateRule(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ActivateRule)
}

func (h *Handler) InactivateRule(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.InactivateRule)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, service.SetRuleStateRequest) (*service.RuleResponse, error)) {
	ctx := r.Context()
	orgID := types.OrgID(r.PathValue("orgId"))
	ruleID := types.RuleID(r.PathValue("ruleId"))

	resp, err := op(ctx, service.SetRuleStateRequest{OrgID: orgID, RuleID: ruleID})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRuleNotFound):
		h.writeError(w, http.StatusNotFound, "rule not found")
	case errors.Is(err, directory.ErrDeviceNotFound):
		h.writeError(w, http.StatusNotFound, "device not found")
	case errors.Is(err, domain.ErrDuplicateRule):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrDeviceNotInArea), errors.Is(err, domain.ErrInvalidDailyWindow), errors.Is(err, domain.ErrInvalidWindow):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCorruptData), errors.Is(err, directory.ErrCorruptData):
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
