// Package api exposes the rule authoring surface over HTTP.
//
// Routes are versioned under /api/v1. Rule collections are organization
// scoped; single-rule operations address the rule id directly. The catalog
// endpoints (triggers, actions) let authoring UIs render config forms from
// the registered definitions.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gastrack/relay/internal/engine"
	"github.com/gastrack/relay/internal/types"
)

// Handler serves the authoring API on top of the engine.
type Handler struct {
	engine *engine.Engine
	log    *slog.Logger
}

func NewHandler(eng *engine.Engine, log *slog.Logger) *Handler {
	return &Handler{engine: eng, log: log}
}

// Router builds the chi router with all authoring routes mounted.
func (h *Handler) Router(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", h.health)
	if reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/triggers", h.listTriggers)
		r.Get("/actions", h.listActions)

		r.Route("/organizations/{orgID}/rules", func(r chi.Router) {
			r.Get("/", h.listRules)
			r.Post("/", h.createRule)
		})

		r.Route("/rules/{ruleID}", func(r chi.Router) {
			r.Get("/", h.getRule)
			r.Put("/", h.updateRule)
			r.Delete("/", h.deleteRule)
			r.Post("/toggle", h.toggleRule)
			r.Get("/logs", h.listLogs)
			r.Post("/test", h.testRule)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listTriggers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Triggers())
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Actions())
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.engine.GetRules(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	// IsActive is a pointer here so an omitted field defaults to active
	// while an explicit false is preserved.
	var body struct {
		types.AutomationRule
		IsActive *bool `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid JSON body"))
		return
	}

	rule := body.AutomationRule
	rule.IsActive = body.IsActive == nil || *body.IsActive
	rule.OrganizationID = chi.URLParam(r, "orgID")
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := h.engine.CreateRule(r.Context(), &rule); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &rule)
}

// ruleIDParam parses and validates the ruleID path parameter. A malformed
// id cannot name an existing rule, so it maps to not-found.
func ruleIDParam(r *http.Request) (types.RuleID, error) {
	id, err := types.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		return "", types.ErrRuleNotFound
	}
	return id, nil
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rule, err := h.engine.GetRule(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	// Same pointer decode as createRule: an omitted isActive keeps the
	// rule's current state instead of deactivating it.
	var body struct {
		types.AutomationRule
		IsActive *bool `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid JSON body"))
		return
	}

	id, err := ruleIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	existing, err := h.engine.GetRule(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rule := body.AutomationRule
	rule.IsActive = existing.IsActive
	if body.IsActive != nil {
		rule.IsActive = *body.IsActive
	}
	rule.ID = id
	rule.OrganizationID = existing.OrganizationID
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()

	if err := h.engine.UpdateRule(r.Context(), &rule); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &rule)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.engine.DeleteRule(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggleRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	active, err := h.engine.ToggleRule(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isActive": active})
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errBody("invalid limit"))
			return
		}
		limit = n
	}

	id, err := ruleIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	logs, err := h.engine.GetRuleLogs(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) testRule(w http.ResponseWriter, r *http.Request) {
	var sample map[string]any
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid JSON body"))
		return
	}

	id, err := ruleIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	entry, err := h.engine.TestRule(r.Context(), id, sample)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// writeError maps domain errors to HTTP status codes. Unrecognized errors
// are logged and reported as a generic 500 so internals do not leak.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrRuleNotFound):
		writeJSON(w, http.StatusNotFound, errBody(err.Error()))
	case errors.Is(err, types.ErrInvalidRule):
		writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
	default:
		h.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errBody("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
