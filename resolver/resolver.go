// Package resolver queries the remote knowledge-retrieval agent for
// plan-specific drug coverage. Calls are bounded by a hard timeout that is
// deliberately shorter than the normalizer budget; this path is allowed to
// fail fast and fall back to local formulary data.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rxcheck/coverage-api/llm"
	"github.com/rxcheck/coverage-api/logging"
	"github.com/rxcheck/coverage-api/metrics"
)

// Data source markers. DataSourceTimeout and DataSourceError flag synthetic
// results that must never be trusted as a genuine "not covered" during
// arbitration.
const (
	DataSourceTimeout = "toolhouse_timeout"
	DataSourceError   = "toolhouse_error"
)

// Alternative is one drug suggested by the remote agent.
type Alternative struct {
	Name      string   `json:"name"`
	Tier      *int     `json:"tier"`
	Copay     *float64 `json:"copay"`
	PriorAuth bool     `json:"prior_auth"`
	Reason    string   `json:"reason"`
}

// Coverage is the remote agent's answer. IsCovered and Tier are pointers:
// nil signals the agent found nothing definitive, which is distinct from a
// real negative.
type Coverage struct {
	IsCovered               *bool         `json:"is_covered"`
	Tier                    *int          `json:"tier"`
	Copay                   *float64      `json:"copay"`
	PriorAuthRequired       bool          `json:"prior_auth_required"`
	PriorAuthDetails        string        `json:"prior_auth_details,omitempty"`
	QuantityLimits          bool          `json:"quantity_limits"`
	QuantityLimitDetails    string        `json:"quantity_limit_details,omitempty"`
	StepTherapyRequired     bool          `json:"step_therapy_required"`
	StepTherapyAlternatives []string      `json:"step_therapy_alternatives,omitempty"`
	SuggestedAlternatives   []Alternative `json:"suggested_alternatives,omitempty"`
	Explanation             string        `json:"explanation"`
	DataSource              string        `json:"data_source"`
}

// Usable reports whether the result can win arbitration: both nullable
// coverage fields present and not a synthetic timeout/error result.
func (c Coverage) Usable() bool {
	return c.IsCovered != nil && c.Tier != nil &&
		c.DataSource != DataSourceTimeout && c.DataSource != DataSourceError
}

// Resolver is the HTTP client for the remote coverage agent.
type Resolver struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// New creates a Resolver. The timeout bounds the whole call including body
// read.
func New(url, apiKey string, timeout time.Duration) *Resolver {
	return &Resolver{
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

type agentRequest struct {
	MedicationName string `json:"medication_name"`
	PlanID         string `json:"plan_id"`
	PatientZip     string `json:"patient_zip"`
	PharmacyZip    string `json:"pharmacy_zip,omitempty"`
}

// Resolve queries the agent for coverage of drugName under planID. It never
// returns an error: timeouts and transport failures yield a synthetic
// Coverage whose DataSource marks it untrustworthy.
func (r *Resolver) Resolve(ctx context.Context, drugName, planID, patientZip, pharmacyZip string) Coverage {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(agentRequest{
		MedicationName: drugName,
		PlanID:         planID,
		PatientZip:     patientZip,
		PharmacyZip:    pharmacyZip,
	})
	if err != nil {
		return r.failure(DataSourceError, start, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return r.failure(DataSourceError, start, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			metrics.ResolverTimeoutsTotal.Inc()
			return r.failure(DataSourceTimeout, start, err)
		}
		return r.failure(DataSourceError, start, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			metrics.ResolverTimeoutsTotal.Inc()
			return r.failure(DataSourceTimeout, start, err)
		}
		return r.failure(DataSourceError, start, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return r.failure(DataSourceError, start,
			fmt.Errorf("agent returned status %d", resp.StatusCode))
	}

	coverage, err := parseAgentReply(raw)
	if err != nil {
		return r.failure(DataSourceError, start, err)
	}
	if coverage.DataSource == "" {
		coverage.DataSource = "toolhouse_rag"
	}
	return coverage
}

// parseAgentReply extracts the coverage object from a reply that may be raw
// JSON, JSON inside a fenced code block, or prose containing a JSON object.
// It fails explicitly when nothing parseable is found; a silent empty object
// would be indistinguishable from a real negative.
func parseAgentReply(raw []byte) (Coverage, error) {
	var coverage Coverage
	if err := llm.ExtractJSON(string(raw), &coverage); err != nil {
		return Coverage{}, fmt.Errorf("unparseable agent reply: %w", err)
	}
	return coverage, nil
}

func (r *Resolver) failure(source string, start time.Time, err error) Coverage {
	elapsed := time.Since(start)
	logging.Warn("Remote coverage resolution failed",
		"source", source, "elapsed_ms", elapsed.Milliseconds(), "error", err)

	covered := false
	return Coverage{
		IsCovered:   &covered,
		DataSource:  source,
		Explanation: fmt.Sprintf("Remote coverage lookup failed after %dms", elapsed.Milliseconds()),
	}
}
