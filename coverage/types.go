// Package coverage implements the coverage-resolution orchestrator: it
// normalizes uncertain user input, races the local formulary index against
// the remote coverage agent under a timeout budget, arbitrates between the
// two sources, optionally augments with web research, and assembles a
// single consistent response. Every failure mode degrades; CheckCoverage
// never returns an error or panics to its caller.
package coverage

import (
	"time"

	"github.com/rxcheck/coverage-api/normalizer"
	"github.com/rxcheck/coverage-api/research"
)

// MedicationInput is the raw drug name supplied by the caller.
type MedicationInput struct {
	Name string `json:"name"`
}

// PlanInput identifies the caller's insurance plan.
type PlanInput struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Carrier string `json:"carrier,omitempty"`
	Type    string `json:"type,omitempty"`
}

// CheckRequest is one coverage check. Requests are independent; nothing is
// persisted between them.
type CheckRequest struct {
	Medication         MedicationInput `json:"medication"`
	InsurancePlan      PlanInput       `json:"insurancePlan"`
	PatientZipCode     string          `json:"patientZipCode"`
	PharmacyZipCode    string          `json:"pharmacyZipCode,omitempty"`
	Quantity           int             `json:"quantity,omitempty"`
	DaySupply          int             `json:"daySupply,omitempty"`
	IncludeWebResearch bool            `json:"includeWebResearch,omitempty"`
}

// CopayRange is an estimated out-of-pocket cost.
type CopayRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
}

// PriorAuthInfo describes any prior-authorization requirement.
type PriorAuthInfo struct {
	Required              bool   `json:"required"`
	Reason                string `json:"reason,omitempty"`
	EstimatedApprovalTime string `json:"estimatedApprovalTime,omitempty"`
}

// AlternativeMedication is one suggested alternative drug.
type AlternativeMedication struct {
	Name      string   `json:"name"`
	Tier      *int     `json:"tier,omitempty"`
	Copay     *float64 `json:"copay,omitempty"`
	PriorAuth bool     `json:"priorAuth"`
	Reason    string   `json:"reason,omitempty"`
}

// Response is the public coverage answer. Constructed once per request,
// never mutated after return. Disclaimer is always non-empty: it names the
// winning source, the normalization confidence, and the elapsed time, so a
// degraded answer is never presented as a fully resolved one.
type Response struct {
	Medication             normalizer.Medication   `json:"medication"`
	InsurancePlan          PlanInput               `json:"insurancePlan"`
	IsCovered              bool                    `json:"isCovered"`
	Tier                   *int                    `json:"tier"`
	EstimatedCopay         *CopayRange             `json:"estimatedCopay"`
	PriorAuth              PriorAuthInfo           `json:"priorAuth"`
	AlternativeMedications []AlternativeMedication `json:"alternativeMedications,omitempty"`
	WebResearch            *research.Result        `json:"webResearch,omitempty"`
	LastUpdated            time.Time               `json:"lastUpdated"`
	Disclaimer             string                  `json:"disclaimer"`
}

// Winning data source labels used in disclaimers and metrics.
const (
	sourceLocal    = "local_formulary"
	sourceRemote   = "remote_agent"
	sourceNone     = "none"
	sourceRejected = "rejected"
)

// arbitrated is the internal result of source arbitration, whichever source
// won.
type arbitrated struct {
	isCovered    bool
	tier         *int
	copay        *CopayRange
	priorAuth    PriorAuthInfo
	alternatives []AlternativeMedication
	explanation  string
	source       string
}
