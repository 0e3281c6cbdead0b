// Package formulary provides the in-memory formulary index: per-plan drug
// coverage entries loaded once from static plan files, with fuzzy name
// resolution and alternative suggestions. The index is read-only after load;
// reloads swap the whole plan set atomically.
package formulary

// Entry describes coverage of one drug under one insurance plan.
type Entry struct {
	GenericName             string   `json:"generic_name"`
	BrandNames              []string `json:"brand_names,omitempty"`
	Tier                    int      `json:"tier"`
	Copay                   float64  `json:"copay"`
	PriorAuth               bool     `json:"prior_auth"`
	PriorAuthCriteria       string   `json:"prior_auth_criteria,omitempty"`
	QuantityLimits          bool     `json:"quantity_limits"`
	QuantityLimitDetails    string   `json:"quantity_limit_details,omitempty"`
	StepTherapy             bool     `json:"step_therapy"`
	StepTherapyAlternatives []string `json:"step_therapy_alternatives,omitempty"`
	Alternatives            []string `json:"alternatives,omitempty"`
}

// Plan is one insurance plan's formulary file as loaded from disk.
// The formulary map is keyed by drug name; keys are matched
// case-insensitively.
type Plan struct {
	PlanID           string            `json:"plan_id"`
	PlanName         string            `json:"plan_name"`
	Carrier          string            `json:"carrier"`
	Type             string            `json:"type"`
	TierStructure    map[string]string `json:"tier_structure,omitempty"`
	Formulary        map[string]Entry  `json:"formulary"`
	CoveragePolicies map[string]string `json:"coverage_policies,omitempty"`
}

// LookupResult is the outcome of a formulary lookup. MatchedKey is the
// formulary key the query ultimately resolved to, which may differ from the
// query when a brand alias or substring match was used.
type LookupResult struct {
	Found      bool
	Entry      *Entry
	MatchedKey string
}

// brandAliases maps well-known brand names to their generic equivalents.
// A lookup that misses the plan formulary directly retries once with the
// aliased generic name.
var brandAliases = map[string]string{
	"tylenol":   "acetaminophen",
	"advil":     "ibuprofen",
	"motrin":    "ibuprofen",
	"lipitor":   "atorvastatin",
	"glucophage": "metformin",
	"prinivil":  "lisinopril",
	"zestril":   "lisinopril",
	"synthroid": "levothyroxine",
	"prilosec":  "omeprazole",
	"zoloft":    "sertraline",
	"norvasc":   "amlodipine",
	"neurontin": "gabapentin",
	"lopressor": "metoprolol",
	"ventolin":  "albuterol",
	"proventil": "albuterol",
	"cozaar":    "losartan",
	"zocor":     "simvastatin",
}
