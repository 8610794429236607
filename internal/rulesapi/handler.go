package rulesapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vigil/internal/logger"
	"vigil/internal/metrics"
	"vigil/internal/models"
	"vigil/internal/store"
)

// Handler serves CRUD operations for anomaly detection rules.
type Handler struct {
	rules   store.RuleStore
	timeout time.Duration
}

// NewHandler creates a rule management handler over the given store.
func NewHandler(rules store.RuleStore) *Handler {
	return &Handler{
		rules:   rules,
		timeout: 5 * time.Second,
	}
}

// Register mounts the rule routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /rules", h.createRule)
	mux.HandleFunc("GET /rules", h.listRules)
	mux.HandleFunc("GET /rules/{id}", h.getRule)
	mux.HandleFunc("DELETE /rules/{id}", h.deleteRule)
}

// createRequest is the rule creation payload. The rule ID is assigned here,
// never supplied by the caller.
type createRequest struct {
	RuleName   string `json:"ruleName"`
	RuleType   string `json:"ruleType"`
	Metric     string `json:"metric"`
	Threshold  int    `json:"threshold"`
	TimeWindow int    `json:"timeWindow"`
	Target     string `json:"target"`
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("rulesapi")

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid JSON body"})
		metrics.RulesManagedTotal.WithLabelValues("create", "rejected").Inc()
		return
	}

	rule := models.Rule{
		ID:                uuid.New().String(),
		Name:              req.RuleName,
		Type:              models.RuleType(req.RuleType),
		Metric:            req.Metric,
		Threshold:         req.Threshold,
		TimeWindowMinutes: req.TimeWindow,
		Target:            req.Target,
	}

	if err := rule.Validate(); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		metrics.RulesManagedTotal.WithLabelValues("create", "rejected").Inc()
		return
	}

	ctx, cancel := h.opContext(r)
	defer cancel()

	if err := h.rules.CreateRule(ctx, rule); err != nil {
		log.Error().Err(err).Str("rule_id", rule.ID).Msg("failed to create rule")
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "internal server error"})
		metrics.RulesManagedTotal.WithLabelValues("create", "failed").Inc()
		return
	}

	log.Info().
		Str("rule_id", rule.ID).
		Str("metric", rule.Metric).
		Int("threshold", rule.Threshold).
		Int("time_window_minutes", rule.TimeWindowMinutes).
		Msg("rule created")
	metrics.RulesManagedTotal.WithLabelValues("create", "success").Inc()

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Rule created successfully",
		"ruleId":  rule.ID,
	})
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.opContext(r)
	defer cancel()

	rules, err := h.rules.ListRules(ctx)
	if err != nil {
		log := logger.WithComponent("rulesapi")
		log.Error().Err(err).Msg("failed to list rules")
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "internal server error"})
		metrics.RulesManagedTotal.WithLabelValues("list", "failed").Inc()
		return
	}

	metrics.RulesManagedTotal.WithLabelValues("list", "success").Inc()
	h.writeJSON(w, http.StatusOK, rules)
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.opContext(r)
	defer cancel()

	rule, err := h.rules.GetRule(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]any{"message": "Rule not found"})
			metrics.RulesManagedTotal.WithLabelValues("get", "not_found").Inc()
			return
		}
		log := logger.WithComponent("rulesapi")
		log.Error().Err(err).Msg("failed to get rule")
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "internal server error"})
		metrics.RulesManagedTotal.WithLabelValues("get", "failed").Inc()
		return
	}

	metrics.RulesManagedTotal.WithLabelValues("get", "success").Inc()
	h.writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("rulesapi")
	id := r.PathValue("id")

	ctx, cancel := h.opContext(r)
	defer cancel()

	if err := h.rules.DeleteRule(ctx, id); err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]any{"message": "Rule not found"})
			metrics.RulesManagedTotal.WithLabelValues("delete", "not_found").Inc()
			return
		}
		log.Error().Err(err).Str("rule_id", id).Msg("failed to delete rule")
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "internal server error"})
		metrics.RulesManagedTotal.WithLabelValues("delete", "failed").Inc()
		return
	}

	log.Info().Str("rule_id", id).Msg("rule deleted")
	metrics.RulesManagedTotal.WithLabelValues("delete", "success").Inc()
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "Rule deleted successfully"})
}

func (h *Handler) opContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
