// Package validation provides request validation for the coverage API
// endpoints: required-field checks, ZIP code patterns, and research type
// enums, with field-level error details.
package validation

import (
	"regexp"
	"strings"

	"github.com/rxcheck/coverage-api/coverage"
)

var zipRe = regexp.MustCompile(`^\d{5}$`)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateCheckRequest validates a coverage check request body. An empty
// slice means the request is valid.
func ValidateCheckRequest(req *coverage.CheckRequest) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(req.Medication.Name) == "" {
		errs = append(errs, FieldError{
			Field:   "medication.name",
			Message: "medication name is required",
		})
	}

	if strings.TrimSpace(req.InsurancePlan.ID) == "" {
		errs = append(errs, FieldError{
			Field:   "insurancePlan.id",
			Message: "insurance plan id is required",
		})
	}

	if !zipRe.MatchString(req.PatientZipCode) {
		errs = append(errs, FieldError{
			Field:   "patientZipCode",
			Message: "patient ZIP code must be exactly 5 digits",
		})
	}

	if req.PharmacyZipCode != "" && !zipRe.MatchString(req.PharmacyZipCode) {
		errs = append(errs, FieldError{
			Field:   "pharmacyZipCode",
			Message: "pharmacy ZIP code must be exactly 5 digits",
		})
	}

	if req.Quantity < 0 {
		errs = append(errs, FieldError{
			Field:   "quantity",
			Message: "quantity cannot be negative",
		})
	}

	if req.DaySupply < 0 {
		errs = append(errs, FieldError{
			Field:   "daySupply",
			Message: "daySupply cannot be negative",
		})
	}

	return errs
}

// validResearchTypes are the accepted researchType values; empty defaults
// to pricing.
var validResearchTypes = map[string]bool{
	"":              true,
	"alternatives":  true,
	"pricing":       true,
	"pa-strategies": true,
}

// ValidateResearchRequest validates a research request body.
func ValidateResearchRequest(medicationName, researchType string) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(medicationName) == "" {
		errs = append(errs, FieldError{
			Field:   "medicationName",
			Message: "medication name is required",
		})
	}

	if !validResearchTypes[strings.ToLower(strings.TrimSpace(researchType))] {
		errs = append(errs, FieldError{
			Field:   "researchType",
			Message: "researchType must be one of: alternatives, pricing, pa-strategies",
		})
	}

	return errs
}
