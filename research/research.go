// Package research provides best-effort open-web enrichment: cash price
// comparisons, alternative drugs, and prior-authorization strategies. Every
// operation degrades to an explanatory empty result; none of them return
// errors. Results are cached per (operation, drug name) with a fixed TTL.
package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rxcheck/coverage-api/llm"
	"github.com/rxcheck/coverage-api/logging"
)

// Operation identifies one research kind; it is part of the cache key.
type Operation string

const (
	OpAlternatives Operation = "alternatives"
	OpPricing      Operation = "pricing"
	OpPAStrategies Operation = "pa-strategies"
)

// PriceQuote is one flattened cash-price observation.
type PriceQuote struct {
	Pharmacy string  `json:"pharmacy"`
	Price    float64 `json:"price"`
	Dosage   string  `json:"dosage,omitempty"`
	Notes    string  `json:"notes,omitempty"`
}

// DrugSuggestion is one alternative drug surfaced by research.
type DrugSuggestion struct {
	Name   string `json:"name"`
	Reason string `json:"reason,omitempty"`
}

// Result is the outcome of one research operation.
type Result struct {
	Query            string           `json:"query"`
	SearchTimeMs     int64            `json:"searchTime"`
	Timestamp        time.Time        `json:"timestamp"`
	Alternatives     []DrugSuggestion `json:"alternatives"`
	PriceComparisons []PriceQuote     `json:"priceComparisons"`
	PAStrategies     []string         `json:"paStrategies"`
	PatientPrograms  []string         `json:"patientPrograms"`
	Summary          string           `json:"summary"`
	Sources          []string         `json:"sources"`
}

const researchMaxTokens = 1024

// Researcher issues web research calls through the text-generation backend
// and caches the normalized results.
type Researcher struct {
	provider llm.Provider
	timeout  time.Duration
	cache    *cache
}

// New creates a Researcher with the given backend and per-call budget.
func New(provider llm.Provider, timeout time.Duration) *Researcher {
	return NewWithClock(provider, timeout, time.Now)
}

// NewWithClock creates a Researcher with an injected clock for cache tests.
func NewWithClock(provider llm.Provider, timeout time.Duration, now func() time.Time) *Researcher {
	return &Researcher{
		provider: provider,
		timeout:  timeout,
		cache:    newCache(now),
	}
}

// FindAlternatives researches alternative drugs for drugName.
func (r *Researcher) FindAlternatives(ctx context.Context, drugName string) Result {
	return r.run(ctx, OpAlternatives, drugName, fmt.Sprintf(
		"Search the web for therapeutic alternatives to %s. Respond with strict JSON: "+
			`{"alternatives":[{"name":"...","reason":"..."}],"patientPrograms":["..."],`+
			`"summary":"...","sources":["..."]}`, drugName))
}

// FindPriceComparison researches cash prices for drugName across pharmacies.
func (r *Researcher) FindPriceComparison(ctx context.Context, drugName string) Result {
	return r.run(ctx, OpPricing, drugName, fmt.Sprintf(
		"Search the web for current cash prices of %s at major pharmacies. Respond with strict JSON: "+
			`{"priceComparisons":[{"pharmacy":"...","price":12.50,"dosage":"..."}],`+
			`"summary":"...","sources":["..."]}`, drugName))
}

// ResearchPAStrategies researches prior-authorization appeal strategies for
// drugName.
func (r *Researcher) ResearchPAStrategies(ctx context.Context, drugName string) Result {
	return r.run(ctx, OpPAStrategies, drugName, fmt.Sprintf(
		"Search the web for prior authorization approval and appeal strategies for %s. "+
			"Respond with strict JSON: "+
			`{"paStrategies":["..."],"patientPrograms":["..."],"summary":"...","sources":["..."]}`,
		drugName))
}

// Run dispatches by operation; used by the research HTTP endpoint.
func (r *Researcher) Run(ctx context.Context, op Operation, drugName string) Result {
	switch op {
	case OpAlternatives:
		return r.FindAlternatives(ctx, drugName)
	case OpPAStrategies:
		return r.ResearchPAStrategies(ctx, drugName)
	default:
		return r.FindPriceComparison(ctx, drugName)
	}
}

func (r *Researcher) run(ctx context.Context, op Operation, drugName, prompt string) Result {
	if cached, ok := r.cache.get(op, drugName); ok {
		return cached
	}

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: "You are a pharmacy cost research assistant with web search. Reply with strict JSON only."},
		{Role: "user", Content: prompt},
	}, researchMaxTokens)
	if err != nil {
		logging.Warn("Web research call failed", "operation", op, "drug", drugName, "error", err)
		return r.failureResult(op, drugName, start, "research backend unavailable: "+err.Error())
	}

	result, err := parseResearchReply(raw)
	if err != nil {
		logging.Warn("Web research reply unparseable", "operation", op, "drug", drugName, "error", err)
		return r.failureResult(op, drugName, start, "research reply could not be parsed")
	}

	result.Query = drugName
	result.SearchTimeMs = time.Since(start).Milliseconds()
	result.Timestamp = time.Now()
	ensureCollections(&result)

	r.cache.put(op, drugName, result)
	return result
}

// failureResult builds the degraded answer shared by every failure mode:
// empty collections plus a human-readable summary. Failures are not cached
// so the next request retries the backend.
func (r *Researcher) failureResult(op Operation, drugName string, start time.Time, reason string) Result {
	result := Result{
		Query:        drugName,
		SearchTimeMs: time.Since(start).Milliseconds(),
		Timestamp:    time.Now(),
		Summary:      fmt.Sprintf("Web research (%s) unavailable for %s: %s", op, drugName, reason),
	}
	ensureCollections(&result)
	return result
}

func ensureCollections(result *Result) {
	if result.Alternatives == nil {
		result.Alternatives = []DrugSuggestion{}
	}
	if result.PriceComparisons == nil {
		result.PriceComparisons = []PriceQuote{}
	}
	if result.PAStrategies == nil {
		result.PAStrategies = []string{}
	}
	if result.PatientPrograms == nil {
		result.PatientPrograms = []string{}
	}
	if result.Sources == nil {
		result.Sources = []string{}
	}
}

// ParseOperation maps a request string to an Operation, defaulting to
// pricing.
func ParseOperation(s string) Operation {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(OpAlternatives):
		return OpAlternatives
	case string(OpPAStrategies):
		return OpPAStrategies
	default:
		return OpPricing
	}
}
