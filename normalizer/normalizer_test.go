package normalizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rxcheck/coverage-api/llm"
)

// mockProvider returns a canned reply or error.
type mockProvider struct {
	reply string
	err   error
	calls int
}

func (m *mockProvider) Complete(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func newTestNormalizer(p llm.Provider) *Normalizer {
	return New(p, 5*time.Second)
}

func TestNormalizeValidReply(t *testing.T) {
	provider := &mockProvider{
		reply: `{"name":"Ibuprofen","genericName":"ibuprofen","brandName":"Advil","confidence":0.97}`,
	}

	res := newTestNormalizer(provider).Normalize(context.Background(), "advil")

	if res.Medication.Name != "Ibuprofen" {
		t.Errorf("Expected canonical name Ibuprofen, got %q", res.Medication.Name)
	}
	if res.Medication.BrandName != "Advil" {
		t.Errorf("Expected brand Advil, got %q", res.Medication.BrandName)
	}
	if res.Confidence != 0.97 {
		t.Errorf("Expected confidence 0.97, got %v", res.Confidence)
	}
}

func TestNormalizeFencedReply(t *testing.T) {
	provider := &mockProvider{
		reply: "```json\n{\"name\":\"Metformin\",\"genericName\":\"metformin\",\"confidence\":0.9}\n```",
	}

	res := newTestNormalizer(provider).Normalize(context.Background(), "metformin")

	if res.Medication.Name != "Metformin" {
		t.Errorf("Expected Metformin, got %q", res.Medication.Name)
	}
}

// A structurally valid parse may never report confidence below 0.5, even
// when the backend reports lower.
func TestNormalizeClampsConfidence(t *testing.T) {
	provider := &mockProvider{
		reply: `{"name":"Losartan","genericName":"losartan","confidence":0.35}`,
	}

	res := newTestNormalizer(provider).Normalize(context.Background(), "losartan")

	if res.Confidence != 0.5 {
		t.Errorf("Expected clamped confidence 0.5, got %v", res.Confidence)
	}
	if res.Medication.Name != "Losartan" {
		t.Errorf("Clamp should keep the parsed medication, got %q", res.Medication.Name)
	}
}

func TestNormalizeInvalidMarker(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"explicit invalid", `{"invalid":true,"confidence":0}`},
		{"near-zero confidence", `{"name":"???","confidence":0.05}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{reply: tt.reply}
			res := newTestNormalizer(provider).Normalize(context.Background(), "xk29qzrandom")

			if res.Confidence != 0.1 {
				t.Errorf("Expected confidence 0.1, got %v", res.Confidence)
			}
			if res.Medication.Name != "xk29qzrandom" {
				t.Errorf("Expected raw input echoed, got %q", res.Medication.Name)
			}
		})
	}
}

func TestNormalizeRegexFallback(t *testing.T) {
	// Truncated JSON that defeats every extraction stage but still carries
	// a name field.
	provider := &mockProvider{
		reply: `{"name": "lisinopril", "genericName": "lisino`,
	}

	res := newTestNormalizer(provider).Normalize(context.Background(), "lisinopril 10mg")

	if res.Medication.Name != "lisinopril" {
		t.Errorf("Expected regex-recovered name, got %q", res.Medication.Name)
	}
	if res.Confidence != 0.8 {
		t.Errorf("Expected confidence 0.8, got %v", res.Confidence)
	}
}

func TestNormalizeEchoFallback(t *testing.T) {
	provider := &mockProvider{reply: "I'm sorry, I can't help with that."}

	res := newTestNormalizer(provider).Normalize(context.Background(), "mystery pill")

	if res.Medication.Name != "mystery pill" {
		t.Errorf("Expected raw input echoed, got %q", res.Medication.Name)
	}
	if res.Confidence > 0.2 {
		t.Errorf("Echo fallback confidence must be <= 0.2, got %v", res.Confidence)
	}
}

func TestNormalizeTransportError(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		wantConfidence float64
	}{
		{"common generic keeps usable confidence", "metformin 500mg", 0.7},
		{"unknown input degrades", "some drug", 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{err: errors.New("connection refused")}
			res := newTestNormalizer(provider).Normalize(context.Background(), tt.input)

			if res.Confidence != tt.wantConfidence {
				t.Errorf("Expected confidence %v, got %v", tt.wantConfidence, res.Confidence)
			}
			if res.Medication.Name != tt.input {
				t.Errorf("Expected raw input echoed, got %q", res.Medication.Name)
			}
		})
	}
}

func TestNormalizeFillsMissingGeneric(t *testing.T) {
	provider := &mockProvider{
		reply: `{"name":"Eliquis","confidence":0.9}`,
	}

	res := newTestNormalizer(provider).Normalize(context.Background(), "eliquis")

	if res.Medication.GenericName != "Eliquis" {
		t.Errorf("Missing genericName should default to name, got %q", res.Medication.GenericName)
	}
}

func TestContainsCommonGeneric(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"Metformin", true},
		{"metformin 500mg tablets", true},
		{"ACETAMINOPHEN", true},
		{"adalimumab", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ContainsCommonGeneric(tt.input); got != tt.expected {
			t.Errorf("ContainsCommonGeneric(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
