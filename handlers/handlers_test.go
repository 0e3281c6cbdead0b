package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rxcheck/coverage-api/coverage"
	"github.com/rxcheck/coverage-api/formulary"
	"github.com/rxcheck/coverage-api/research"
)

// mockChecker returns a canned coverage response.
type mockChecker struct {
	resp  coverage.Response
	calls int
}

func (m *mockChecker) CheckCoverage(ctx context.Context, req coverage.CheckRequest) coverage.Response {
	m.calls++
	return m.resp
}

// mockResearcher records the dispatched operation.
type mockResearcher struct {
	lastOp research.Operation
}

func (m *mockResearcher) FindAlternatives(ctx context.Context, d string) research.Result {
	return m.run(research.OpAlternatives, d)
}
func (m *mockResearcher) FindPriceComparison(ctx context.Context, d string) research.Result {
	return m.run(research.OpPricing, d)
}
func (m *mockResearcher) ResearchPAStrategies(ctx context.Context, d string) research.Result {
	return m.run(research.OpPAStrategies, d)
}
func (m *mockResearcher) Run(ctx context.Context, op research.Operation, d string) research.Result {
	return m.run(op, d)
}
func (m *mockResearcher) run(op research.Operation, d string) research.Result {
	m.lastOp = op
	return research.Result{Query: d, Summary: "ok"}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCheckCoverageHandler(t *testing.T) {
	tier := 1
	checker := &mockChecker{resp: coverage.Response{
		IsCovered:  true,
		Tier:       &tier,
		Disclaimer: "test",
	}}

	rec := postJSON(t, CheckCoverage(checker),
		`{"medication":{"name":"tylenol"},"insurancePlan":{"id":"aetna-choice-pos"},"patientZipCode":"10001"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var env struct {
		Success bool              `json:"success"`
		Data    coverage.Response `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Response not JSON: %v", err)
	}
	if !env.Success || !env.Data.IsCovered {
		t.Errorf("Unexpected envelope: %s", rec.Body.String())
	}
	if checker.calls != 1 {
		t.Errorf("Expected 1 orchestrator call, got %d", checker.calls)
	}
}

func TestCheckCoverageValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"medication":`},
		{"missing medication", `{"insurancePlan":{"id":"x"},"patientZipCode":"10001"}`},
		{"missing plan", `{"medication":{"name":"tylenol"},"patientZipCode":"10001"}`},
		{"bad zip", `{"medication":{"name":"tylenol"},"insurancePlan":{"id":"x"},"patientZipCode":"123"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &mockChecker{}
			rec := postJSON(t, CheckCoverage(checker), tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
			if checker.calls != 0 {
				t.Error("Invalid request must not reach the orchestrator")
			}

			var env struct {
				Success bool `json:"success"`
				Error   struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("Error response not JSON: %v", err)
			}
			if env.Success || env.Error.Message == "" {
				t.Errorf("Malformed error envelope: %s", rec.Body.String())
			}
		})
	}
}

func TestResearchHandlerDispatch(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantOp research.Operation
	}{
		{"alternatives", `{"medicationName":"humira","researchType":"alternatives"}`, research.OpAlternatives},
		{"pa strategies", `{"medicationName":"humira","researchType":"pa-strategies"}`, research.OpPAStrategies},
		{"default pricing", `{"medicationName":"humira"}`, research.OpPricing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			researcher := &mockResearcher{}
			rec := postJSON(t, Research(researcher), tt.body)

			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			if researcher.lastOp != tt.wantOp {
				t.Errorf("Expected op %q, got %q", tt.wantOp, researcher.lastOp)
			}
		})
	}
}

func TestResearchHandlerRejectsUnknownType(t *testing.T) {
	rec := postJSON(t, Research(&mockResearcher{}),
		`{"medicationName":"humira","researchType":"coupons"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	t.Run("empty index is degraded", func(t *testing.T) {
		idx := formulary.NewIndex()
		rec := httptest.NewRecorder()
		HealthCheck(idx)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503 for empty index, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "degraded") {
			t.Errorf("Expected degraded status: %s", rec.Body.String())
		}
	})

	t.Run("loaded index is healthy", func(t *testing.T) {
		idx := formulary.NewIndex()
		if err := idx.Load("../formulary/testdata/plans"); err != nil {
			t.Fatalf("Failed to load plans: %v", err)
		}

		rec := httptest.NewRecorder()
		HealthCheck(idx)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})
}

func TestRespondEnvelopeTimestamps(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithJSON(rec, http.StatusOK, map[string]string{"ok": "yes"})

	var env struct {
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Envelope not JSON: %v", err)
	}
	if env.Timestamp.IsZero() {
		t.Error("Envelope must carry a timestamp")
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
}
