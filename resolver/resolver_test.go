package resolver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveParsesRawJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Expected bearer auth header, got %q", got)
		}

		var req agentRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("Request body not JSON: %v", err)
		}
		if req.MedicationName != "humira" || req.PlanID != "aetna-choice-pos" {
			t.Errorf("Unexpected request payload: %+v", req)
		}

		io.WriteString(w, `{"is_covered":true,"tier":4,"copay":100,"prior_auth_required":true,`+
			`"explanation":"Specialty tier","data_source":"plan_documents"}`)
	}))
	defer srv.Close()

	r := New(srv.URL, "test-key", 2*time.Second)
	cov := r.Resolve(context.Background(), "humira", "aetna-choice-pos", "10001", "")

	if cov.IsCovered == nil || !*cov.IsCovered {
		t.Fatal("Expected is_covered=true")
	}
	if cov.Tier == nil || *cov.Tier != 4 {
		t.Errorf("Expected tier 4, got %v", cov.Tier)
	}
	if !cov.PriorAuthRequired {
		t.Error("Expected prior auth required")
	}
	if !cov.Usable() {
		t.Error("A definitive answer should be usable for arbitration")
	}
}

func TestResolveParsesFencedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Here is the coverage information:\n```json\n"+
			`{"is_covered":false,"tier":null,"explanation":"Not on formulary"}`+"\n```")
	}))
	defer srv.Close()

	r := New(srv.URL, "k", 2*time.Second)
	cov := r.Resolve(context.Background(), "obscuredrug", "plan-x", "10001", "")

	if cov.IsCovered == nil || *cov.IsCovered {
		t.Error("Expected a definitive is_covered=false")
	}
	if cov.Tier != nil {
		t.Error("Expected nil tier")
	}
	if cov.Usable() {
		t.Error("Nil tier means not definitive; must not be usable")
	}
}

func TestResolveTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		io.WriteString(w, `{"is_covered":true,"tier":1}`)
	}))
	defer srv.Close()

	r := New(srv.URL, "k", 50*time.Millisecond)

	start := time.Now()
	cov := r.Resolve(context.Background(), "humira", "plan-x", "10001", "")
	elapsed := time.Since(start)

	if elapsed > 250*time.Millisecond {
		t.Errorf("Resolve blocked past its budget: %v", elapsed)
	}
	if cov.DataSource != DataSourceTimeout {
		t.Errorf("Expected data source %q, got %q", DataSourceTimeout, cov.DataSource)
	}
	if cov.IsCovered == nil || *cov.IsCovered {
		t.Error("Synthetic timeout result must report is_covered=false")
	}
	if cov.Usable() {
		t.Error("Timeout result must not be usable for arbitration")
	}
	if cov.Explanation == "" {
		t.Error("Timeout result must explain the elapsed time")
	}
}

func TestResolveTransportError(t *testing.T) {
	// Port connects to nothing.
	r := New("http://127.0.0.1:1", "k", time.Second)
	cov := r.Resolve(context.Background(), "humira", "plan-x", "10001", "")

	if cov.DataSource != DataSourceError {
		t.Errorf("Expected data source %q, got %q", DataSourceError, cov.DataSource)
	}
	if cov.Usable() {
		t.Error("Error result must not be usable")
	}
}

func TestResolveUnparseableReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "The drug appears to be covered under most plans.")
	}))
	defer srv.Close()

	r := New(srv.URL, "k", 2*time.Second)
	cov := r.Resolve(context.Background(), "humira", "plan-x", "10001", "")

	if cov.DataSource != DataSourceError {
		t.Errorf("Prose-only reply should surface as %q, got %q", DataSourceError, cov.DataSource)
	}
}

func TestResolveErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := New(srv.URL, "k", 2*time.Second)
	cov := r.Resolve(context.Background(), "humira", "plan-x", "10001", "")

	if cov.DataSource != DataSourceError {
		t.Errorf("Expected data source %q, got %q", DataSourceError, cov.DataSource)
	}
}

// Two sequential calls with identical upstream replies produce semantically
// identical coverage fields.
func TestResolveIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"is_covered":true,"tier":2,"copay":25,"data_source":"plan_documents"}`)
	}))
	defer srv.Close()

	r := New(srv.URL, "k", 2*time.Second)
	first := r.Resolve(context.Background(), "omeprazole", "plan-x", "10001", "")
	second := r.Resolve(context.Background(), "omeprazole", "plan-x", "10001", "")

	if *first.IsCovered != *second.IsCovered || *first.Tier != *second.Tier ||
		*first.Copay != *second.Copay || first.DataSource != second.DataSource {
		t.Errorf("Sequential resolves differ: %+v vs %+v", first, second)
	}
}
