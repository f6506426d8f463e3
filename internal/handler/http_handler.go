// Package handler exposes the contract lifecycle engine over HTTP JSON.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/covenant-ai/be-contracts/internal/domain"
	"github.com/covenant-ai/be-contracts/internal/errors"
	"github.com/covenant-ai/be-contracts/internal/logger"
	"github.com/covenant-ai/be-contracts/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	service *service.ContractService
	log     *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(svc *service.ContractService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{service: svc, log: log}
}

// Routes mounts all contract endpoints on a chi router.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Route("/api/v1/contracts", func(r chi.Router) {
		r.Post("/", h.CreateContract)
		r.Get("/", h.SearchContracts)
		r.Get("/expiring", h.GetExpiring)
		r.Post("/sweep", h.RunExpirySweep)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetContract)
			r.Patch("/", h.UpdateContract)
			r.Delete("/", h.DeleteContract)
			r.Post("/send", h.SendContract)
			r.Post("/sign", h.SignContract)
			r.Post("/view", h.MarkViewed)
			r.Post("/remind", h.SendReminder)
			r.Post("/activate", h.ActivateContract)
			r.Post("/cancel", h.CancelContract)
			r.Post("/terminate", h.TerminateContract)
			r.Post("/renew", h.RenewContract)
			r.Post("/download", h.RecordDownload)
			r.Get("/signing-status", h.GetSigningStatus)
			r.Get("/audit", h.GetAuditTrail)
		})
	})

	r.Get("/api/v1/audit", h.QueryAuditLog)

	return r
}

// CreateContract handles contract creation.
func (h *HTTPHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req service.CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = actor(r)
	}
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	contract, err := h.service.CreateContract(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, contract)
}

// GetContract returns one contract by id.
func (h *HTTPHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	contract, err := h.service.GetContract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

// UpdateContract applies a partial patch.
func (h *HTTPHandler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	req.ID = chi.URLParam(r, "id")
	if req.UpdatedBy == "" {
		req.UpdatedBy = actor(r)
	}
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	contract, err := h.service.UpdateContract(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

// DeleteContract deletes a draft.
func (h *HTTPHandler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteContract(r.Context(), chi.URLParam(r, "id"), actor(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendContract routes the contract for signature.
func (h *HTTPHandler) SendContract(w http.ResponseWriter, r *http.Request) {
	var req service.SendContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	req.ID = chi.URLParam(r, "id")
	if req.SentBy == "" {
		req.SentBy = actor(r)
	}
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	contract, err := h.service.SendContract(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

// SignContract records one party's signature.
func (h *HTTPHandler) SignContract(w http.ResponseWriter, r *http.Request) {
	var req service.SignContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	req.ContractID = chi.URLParam(r, "id")
	if req.IPAddress == "" {
		req.IPAddress = clientIP(r)
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	result, err := h.service.SignContract(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// MarkViewed stamps a party's view of the contract.
func (h *HTTPHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PartyEmail string `json:"partyEmail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	contract, err := h.service.MarkViewed(r.Context(), chi.URLParam(r, "id"), req.PartyEmail, clientIP(r), r.UserAgent())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

// SendReminder nudges one unsigned party.
func (h *HTTPHandler) SendReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PartyEmail string `json:"partyEmail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	contract, err := h.service.SendReminder(r.Context(), chi.URLParam(r, "id"), req.PartyEmail, actor(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

func (h *HTTPHandler) ActivateContract(w http.ResponseWriter, r *http.Request) {
	contract, err := h.service.ActivateContract(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

func (h *HTTPHandler) CancelContract(w http.ResponseWriter, r *http.Request) {
	contract, err := h.service.CancelContract(r.Context(), chi.URLParam(r, "id"), actor(r), h.readReason(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

func (h *HTTPHandler) TerminateContract(w http.ResponseWriter, r *http.Request) {
	contract, err := h.service.TerminateContract(r.Context(), chi.URLParam(r, "id"), actor(r), h.readReason(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

func (h *HTTPHandler) RenewContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	contract, err := h.service.RenewContract(r.Context(), chi.URLParam(r, "id"), actor(r), req.ExpiresAt)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contract)
}

// RecordDownload writes the downloaded audit entry.
func (h *HTTPHandler) RecordDownload(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RecordDownload(r.Context(), chi.URLParam(r, "id"), actor(r), clientIP(r), r.UserAgent()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSigningStatus returns the per-party signing projection.
func (h *HTTPHandler) GetSigningStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetSigningStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// GetAuditTrail returns a contract's case history, oldest first.
func (h *HTTPHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.service.GetAuditTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, trail)
}

// SearchContracts filters contracts by query parameters.
func (h *HTTPHandler) SearchContracts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := service.SearchFilters{
		PartyEmail: q.Get("partyEmail"),
		PartyType:  domain.PartyType(q.Get("partyType")),
		PartyName:  q.Get("partyName"),
		DateField:  service.DateField(q.Get("dateField")),
		Text:       q.Get("text"),
		SortBy:     q.Get("sortBy"),
		SortDesc:   q.Get("sortDesc") == "true",
	}
	for _, s := range splitParam(q.Get("status")) {
		filters.Statuses = append(filters.Statuses, domain.ContractStatus(s))
	}
	filters.Tags = splitParam(q.Get("tags"))
	if v := q.Get("templateId"); v != "" {
		filters.TemplateID = &v
	}
	if t, ok := parseTimeParam(q.Get("dateFrom")); ok {
		filters.DateFrom = &t
	}
	if t, ok := parseTimeParam(q.Get("dateTo")); ok {
		filters.DateTo = &t
	}
	filters.Offset, _ = strconv.Atoi(q.Get("offset"))
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))

	result, err := h.service.SearchContracts(r.Context(), filters)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// GetExpiring lists contracts expiring within a window (default 30 days).
func (h *HTTPHandler) GetExpiring(w http.ResponseWriter, r *http.Request) {
	within := 30 * 24 * time.Hour
	if v := r.URL.Query().Get("within"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			h.writeError(w, errors.InvalidInput("within", "invalid duration"))
			return
		}
		within = d
	}

	contracts, err := h.service.GetExpiring(r.Context(), within)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, contracts)
}

// RunExpirySweep triggers the expiry sweep on demand.
func (h *HTTPHandler) RunExpirySweep(w http.ResponseWriter, r *http.Request) {
	expired, err := h.service.CheckExpiredContracts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"expired": expired})
}

// QueryAuditLog serves the actor/action/date-range audit queries.
func (h *HTTPHandler) QueryAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		entries []*domain.AuditEntry
		err     error
	)
	switch {
	case q.Get("actor") != "":
		entries, err = h.service.AuditByActor(r.Context(), q.Get("actor"))
	case q.Get("action") != "":
		entries, err = h.service.AuditByAction(r.Context(), domain.AuditAction(q.Get("action")))
	case q.Get("from") != "" && q.Get("to") != "":
		from, okFrom := parseTimeParam(q.Get("from"))
		to, okTo := parseTimeParam(q.Get("to"))
		if !okFrom || !okTo {
			h.writeError(w, errors.InvalidInput("from/to", "invalid RFC 3339 timestamp"))
			return
		}
		entries, err = h.service.AuditByDateRange(r.Context(), from, to)
	default:
		h.writeError(w, errors.InvalidInput("query", "one of actor, action or from+to is required"))
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (h *HTTPHandler) readReason(r *http.Request) string {
	var req struct {
		Reason string `json:"reason"`
	}
	// An empty body is fine; reason is optional.
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req.Reason
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":  string(errors.Code(err)),
		"error": err.Error(),
	})
}

// actor resolves the acting user from the X-Actor header. Authentication is
// out of scope; upstream gateways set this header.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "anonymous"
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseTimeParam(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
