// Package handlers provides HTTP request handlers for the coverage API
// endpoints: the coverage check, standalone web research, and the health
// check, with input validation and uniform response envelopes.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rxcheck/coverage-api/coverage"
	"github.com/rxcheck/coverage-api/interfaces"
	"github.com/rxcheck/coverage-api/research"
	"github.com/rxcheck/coverage-api/validation"
)

var serverStartTime = time.Now()

// CoverageChecker is the orchestrator contract the check handler depends on.
type CoverageChecker interface {
	CheckCoverage(ctx context.Context, req coverage.CheckRequest) coverage.Response
}

var _ CoverageChecker = (*coverage.Orchestrator)(nil)

// CheckCoverage handles POST /coverage/check.
func CheckCoverage(checker CoverageChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req coverage.CheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondWithError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
			return
		}

		if errs := validation.ValidateCheckRequest(&req); len(errs) > 0 {
			RespondWithError(w, http.StatusBadRequest, "request validation failed", errs)
			return
		}

		resp := checker.CheckCoverage(r.Context(), req)
		RespondWithJSON(w, http.StatusOK, resp)
	}
}

// researchRequest is the POST /coverage/research body.
type researchRequest struct {
	MedicationName string `json:"medicationName"`
	ResearchType   string `json:"researchType,omitempty"`
}

// Research handles POST /coverage/research.
func Research(researcher interfaces.Researcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req researchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondWithError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
			return
		}

		if errs := validation.ValidateResearchRequest(req.MedicationName, req.ResearchType); len(errs) > 0 {
			RespondWithError(w, http.StatusBadRequest, "request validation failed", errs)
			return
		}

		result := researcher.Run(r.Context(), research.ParseOperation(req.ResearchType), req.MedicationName)
		RespondWithJSON(w, http.StatusOK, result)
	}
}

// HealthCheck handles GET /health. The service reports degraded when the
// formulary index is empty: coverage checks then depend entirely on the
// remote agent.
func HealthCheck(store interfaces.FormularyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		httpStatus := http.StatusOK
		if store.PlanCount() == 0 {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}

		payload := map[string]any{
			"status":      status,
			"plan_count":  store.PlanCount(),
			"drug_count":  store.DrugCount(),
			"last_loaded": store.LastLoaded(),
			"uptime":      time.Since(serverStartTime).Round(time.Second).String(),
		}

		RespondWithJSON(w, httpStatus, payload)
	}
}
