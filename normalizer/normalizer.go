// Package normalizer turns free-text medication input into a structured
// medication record with a confidence score. Every failure mode degrades to
// a result object; Normalize never returns an error.
package normalizer

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rxcheck/coverage-api/llm"
	"github.com/rxcheck/coverage-api/logging"
	"github.com/rxcheck/coverage-api/metrics"
)

// Medication is the canonical drug identity produced from free text.
// Immutable once constructed.
type Medication struct {
	Name             string `json:"name"`
	GenericName      string `json:"genericName"`
	BrandName        string `json:"brandName,omitempty"`
	Strength         string `json:"strength,omitempty"`
	DosageForm       string `json:"dosageForm,omitempty"`
	NationalDrugCode string `json:"nationalDrugCode,omitempty"`
}

// Result carries the normalized medication and the confidence that the
// input named a real drug. Confidence below 0.3 means the input should be
// treated as not recognized.
type Result struct {
	Medication    Medication `json:"medication"`
	Confidence    float64    `json:"confidence"`
	SearchResults string     `json:"searchResults,omitempty"`
}

// commonGenerics is the fixed allow-list of well-known generic names. It
// backs two behaviors: the fast-path eligibility check and the safety net
// that keeps obviously valid drugs from being rejected when the backend is
// down.
var commonGenerics = []string{
	"acetaminophen", "ibuprofen", "amoxicillin", "lisinopril", "metformin",
	"atorvastatin", "omeprazole", "amlodipine", "metoprolol", "albuterol",
	"gabapentin", "sertraline", "levothyroxine", "losartan", "simvastatin",
}

// ContainsCommonGeneric reports whether s case-insensitively contains a
// member of the common-generics allow-list.
func ContainsCommonGeneric(s string) bool {
	lower := strings.ToLower(s)
	for _, generic := range commonGenerics {
		if strings.Contains(lower, generic) {
			return true
		}
	}
	return false
}

const (
	// minParsedConfidence is the floor applied to any structurally valid
	// parse. Benign low-confidence-but-correct answers must not trip the
	// "invalid medication" path.
	minParsedConfidence = 0.5

	normalizeMaxTokens = 512
)

var nameFieldRe = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)

// Normalizer resolves raw drug-name input via the text-generation backend.
type Normalizer struct {
	provider llm.Provider
	timeout  time.Duration
}

// New creates a Normalizer with the given backend and per-call budget.
func New(provider llm.Provider, timeout time.Duration) *Normalizer {
	return &Normalizer{provider: provider, timeout: timeout}
}

const systemPrompt = `You are a pharmacology assistant. Given a possible medication name, ` +
	`respond with strict JSON only, no prose and no markdown fences:
{"name": "<canonical name>", "genericName": "...", "brandName": "...", ` +
	`"strength": "...", "dosageForm": "...", "nationalDrugCode": "...", "confidence": <0..1>}
If the input is not a real medication name (nonsense, random characters), respond with:
{"invalid": true, "confidence": 0}`

// modelReply is the shape expected back from the backend.
type modelReply struct {
	Medication
	Invalid    bool    `json:"invalid"`
	Confidence float64 `json:"confidence"`
}

// Normalize resolves rawInput into a medication record plus confidence.
// All transport and parse failures degrade to fallback results.
func (n *Normalizer) Normalize(ctx context.Context, rawInput string) Result {
	rawInput = strings.TrimSpace(rawInput)

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	raw, err := n.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: rawInput},
	}, normalizeMaxTokens)
	if err != nil {
		return n.transportFallback(rawInput, err)
	}

	var reply modelReply
	if err := llm.ExtractJSON(raw, &reply); err != nil {
		return n.parseFallback(rawInput, raw)
	}

	// The model explicitly declined, or has almost no confidence. Never
	// claim a match the model doesn't support.
	if reply.Invalid || reply.Confidence < 0.2 {
		return Result{
			Medication: echoMedication(rawInput),
			Confidence: 0.1,
		}
	}

	med := reply.Medication
	if med.Name == "" {
		med.Name = rawInput
	}
	if med.GenericName == "" {
		med.GenericName = med.Name
	}

	confidence := reply.Confidence
	if confidence < minParsedConfidence {
		confidence = minParsedConfidence
	}

	return Result{Medication: med, Confidence: confidence}
}

// parseFallback runs when no JSON could be extracted: first a last-resort
// regex pull of the name field, then echoing the raw input.
func (n *Normalizer) parseFallback(rawInput, raw string) Result {
	metrics.NormalizerFallbacksTotal.Inc()

	if m := nameFieldRe.FindStringSubmatch(raw); m != nil {
		name := m[1]
		logging.Warn("Normalizer recovered name via regex fallback", "name", name)
		return Result{
			Medication: Medication{Name: name, GenericName: name},
			Confidence: 0.8,
		}
	}

	logging.Warn("Normalizer could not parse backend reply, echoing input")
	return Result{
		Medication: echoMedication(rawInput),
		Confidence: 0.2,
	}
}

// transportFallback runs when the backend call itself failed. Inputs
// containing a well-known generic keep a usable confidence so transient
// backend failures don't reject obviously valid drugs.
func (n *Normalizer) transportFallback(rawInput string, err error) Result {
	metrics.NormalizerFallbacksTotal.Inc()
	logging.Warn("Normalizer backend call failed", "error", err)

	confidence := 0.1
	if ContainsCommonGeneric(rawInput) {
		confidence = 0.7
	}

	return Result{
		Medication: echoMedication(rawInput),
		Confidence: confidence,
	}
}

func echoMedication(rawInput string) Medication {
	return Medication{Name: rawInput, GenericName: rawInput}
}
