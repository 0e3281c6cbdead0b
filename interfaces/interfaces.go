// Package interfaces defines core abstractions for the coverage API
// to improve testability and separation of concerns.
package interfaces

import (
	"context"
	"time"

	"github.com/rxcheck/coverage-api/formulary"
	"github.com/rxcheck/coverage-api/normalizer"
	"github.com/rxcheck/coverage-api/research"
	"github.com/rxcheck/coverage-api/resolver"
)

// Compile-time checks that the concrete implementations satisfy their
// contracts.
var (
	_ FormularyReloader    = (*formulary.Index)(nil)
	_ MedicationNormalizer = (*normalizer.Normalizer)(nil)
	_ RemoteResolver       = (*resolver.Resolver)(nil)
	_ Researcher           = (*research.Researcher)(nil)
)

// FormularyStore is the read-only contract over the loaded formulary index.
type FormularyStore interface {
	Lookup(planID, drugName string) formulary.LookupResult
	SuggestAlternatives(planID, drugName string, entry *formulary.Entry) []formulary.Entry
	Plan(planID string) *formulary.Plan
	PlanCount() int
	DrugCount() int
	LastLoaded() time.Time
}

// FormularyReloader extends FormularyStore with the reload operation the
// scheduler drives.
type FormularyReloader interface {
	FormularyStore
	Load(dir string) error
}

// MedicationNormalizer resolves free-text drug input into a structured
// record plus confidence. Implementations never return errors; failures
// degrade inside the result.
type MedicationNormalizer interface {
	Normalize(ctx context.Context, rawInput string) normalizer.Result
}

// RemoteResolver queries the remote coverage agent. Implementations never
// return errors; failures surface through the result's data source marker.
type RemoteResolver interface {
	Resolve(ctx context.Context, drugName, planID, patientZip, pharmacyZip string) resolver.Coverage
}

// Researcher runs best-effort web research operations.
type Researcher interface {
	FindAlternatives(ctx context.Context, drugName string) research.Result
	FindPriceComparison(ctx context.Context, drugName string) research.Result
	ResearchPAStrategies(ctx context.Context, drugName string) research.Result
	Run(ctx context.Context, op research.Operation, drugName string) research.Result
}

// Scheduler manages background jobs and health monitoring.
type Scheduler interface {
	Start() error
	Stop()
}
