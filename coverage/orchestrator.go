package coverage

import (
	"context"
	"fmt"
	"time"

	"github.com/rxcheck/coverage-api/formulary"
	"github.com/rxcheck/coverage-api/interfaces"
	"github.com/rxcheck/coverage-api/logging"
	"github.com/rxcheck/coverage-api/metrics"
	"github.com/rxcheck/coverage-api/normalizer"
	"github.com/rxcheck/coverage-api/research"
	"github.com/rxcheck/coverage-api/resolver"
)

const (
	// rejectConfidence is the normalization gate: below it the input is
	// treated as not a medication.
	rejectConfidence = 0.3

	// fastPathConfidence gates the local-first fast path for common drugs.
	fastPathConfidence = 0.9

	// alternativesCopayThreshold triggers alternative research when the
	// winning copay exceeds it. One threshold on both paths.
	alternativesCopayThreshold = 100.0

	paApprovalEstimate = "1-3 business days"
)

// Orchestrator sequences normalization, dual-source resolution, arbitration,
// optional augmentation, and response assembly for one request at a time.
type Orchestrator struct {
	normalizer interfaces.MedicationNormalizer
	store      interfaces.FormularyStore
	remote     interfaces.RemoteResolver
	researcher interfaces.Researcher
}

// New creates an Orchestrator. researcher may be nil; web research is then
// skipped even when requested.
func New(
	norm interfaces.MedicationNormalizer,
	store interfaces.FormularyStore,
	remote interfaces.RemoteResolver,
	researcher interfaces.Researcher,
) *Orchestrator {
	return &Orchestrator{
		normalizer: norm,
		store:      store,
		remote:     remote,
		researcher: researcher,
	}
}

// CheckCoverage resolves one coverage request. It never returns an error or
// panics: every failure mode folds into the response and its disclaimer.
func (o *Orchestrator) CheckCoverage(ctx context.Context, req CheckRequest) (resp Response) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Coverage pipeline panic", "panic", r, "drug", req.Medication.Name)
			metrics.CoverageChecksTotal.WithLabelValues("error", sourceNone).Inc()
			resp = o.fallbackResponse(req, start, r)
		}
	}()

	norm := o.normalizer.Normalize(ctx, req.Medication.Name)
	med := norm.Medication

	if norm.Confidence < rejectConfidence {
		metrics.CoverageChecksTotal.WithLabelValues("rejected", sourceRejected).Inc()
		return o.assemble(req, med, norm.Confidence, start, nil, arbitrated{
			source: sourceRejected,
			explanation: fmt.Sprintf(
				"The term %q was not recognized as a medication. Check the spelling or ask your pharmacist for the exact drug name.",
				req.Medication.Name),
		})
	}

	isCommon := normalizer.ContainsCommonGeneric(med.Name) ||
		normalizer.ContainsCommonGeneric(med.GenericName) ||
		normalizer.ContainsCommonGeneric(med.BrandName)

	planID := req.InsurancePlan.ID

	// Fast path: trusted local data for well-known drugs skips the slower,
	// less reliable remote call. Deliberately sequential.
	if isCommon && norm.Confidence > fastPathConfidence {
		local := o.lookupLocal(planID, med)
		if local.Found {
			win := o.fromLocal(planID, med, local)
			webRes := o.augment(ctx, req, med, win)
			metrics.CoverageChecksTotal.WithLabelValues(outcomeLabel(win), win.source).Inc()
			return o.assemble(req, med, norm.Confidence, start, webRes, win)
		}
	}

	// Arbitration path: both sources settle independently. The local branch
	// is cheap; the remote branch is bounded by the resolver's own timeout.
	localCh := settle(func() formulary.LookupResult {
		return o.lookupLocal(planID, med)
	})
	remoteCh := settle(func() resolver.Coverage {
		return o.remote.Resolve(ctx, med.Name, planID, req.PatientZipCode, req.PharmacyZipCode)
	})

	localRes := <-localCh
	remoteRes := <-remoteCh

	if localRes.panicked {
		logging.Error("Local formulary lookup panicked", "panic", localRes.panicVal)
	}
	if remoteRes.panicked {
		logging.Error("Remote resolution panicked", "panic", remoteRes.panicVal)
	}

	win := o.arbitrate(planID, med, localRes, remoteRes)
	webRes := o.augment(ctx, req, med, win)

	metrics.CoverageChecksTotal.WithLabelValues(outcomeLabel(win), win.source).Inc()
	return o.assemble(req, med, norm.Confidence, start, webRes, win)
}

// lookupLocal tries the normalized name first, then the generic name.
func (o *Orchestrator) lookupLocal(planID string, med normalizer.Medication) formulary.LookupResult {
	if res := o.store.Lookup(planID, med.Name); res.Found {
		return res
	}
	if med.GenericName != "" && med.GenericName != med.Name {
		return o.store.Lookup(planID, med.GenericName)
	}
	return formulary.LookupResult{}
}

// arbitrate applies source precedence: a definitive remote answer wins, then
// a found local entry, then a synthesized "not found in any source".
func (o *Orchestrator) arbitrate(
	planID string,
	med normalizer.Medication,
	local settled[formulary.LookupResult],
	remote settled[resolver.Coverage],
) arbitrated {
	if !remote.panicked && remote.value.Usable() {
		return o.fromRemote(remote.value)
	}

	if !local.panicked && local.value.Found {
		return o.fromLocal(planID, med, local.value)
	}

	return arbitrated{
		source: sourceNone,
		explanation: fmt.Sprintf(
			"%s was not found in the %s formulary or any remote source. Contact your insurer to confirm coverage.",
			med.Name, planID),
	}
}

// fromLocal maps a formulary entry into the arbitrated shape.
func (o *Orchestrator) fromLocal(planID string, med normalizer.Medication, local formulary.LookupResult) arbitrated {
	entry := local.Entry
	tier := entry.Tier

	win := arbitrated{
		isCovered: true,
		tier:      &tier,
		copay:     &CopayRange{Min: entry.Copay, Max: entry.Copay, Currency: "USD"},
		priorAuth: PriorAuthInfo{
			Required: entry.PriorAuth,
			Reason:   entry.PriorAuthCriteria,
		},
		source: sourceLocal,
		explanation: fmt.Sprintf("Found %q in the %s formulary as %q.",
			med.Name, planID, local.MatchedKey),
	}

	for _, alt := range o.store.SuggestAlternatives(planID, local.MatchedKey, entry) {
		altTier := alt.Tier
		altCopay := alt.Copay
		win.alternatives = append(win.alternatives, AlternativeMedication{
			Name:      alt.GenericName,
			Tier:      &altTier,
			Copay:     &altCopay,
			PriorAuth: alt.PriorAuth,
			Reason:    fmt.Sprintf("Covered at tier %d", alt.Tier),
		})
	}

	return win
}

// fromRemote maps a definitive remote answer into the arbitrated shape.
func (o *Orchestrator) fromRemote(cov resolver.Coverage) arbitrated {
	win := arbitrated{
		isCovered: *cov.IsCovered,
		tier:      cov.Tier,
		priorAuth: PriorAuthInfo{
			Required: cov.PriorAuthRequired,
			Reason:   cov.PriorAuthDetails,
		},
		source:      sourceRemote,
		explanation: cov.Explanation,
	}
	if win.explanation == "" {
		win.explanation = fmt.Sprintf("Coverage reported by %s.", cov.DataSource)
	}
	if cov.Copay != nil {
		win.copay = &CopayRange{Min: *cov.Copay, Max: *cov.Copay, Currency: "USD"}
	}

	for _, alt := range cov.SuggestedAlternatives {
		win.alternatives = append(win.alternatives, AlternativeMedication{
			Name:      alt.Name,
			Tier:      alt.Tier,
			Copay:     alt.Copay,
			PriorAuth: alt.PriorAuth,
			Reason:    alt.Reason,
		})
	}

	return win
}

// augment runs exactly one research operation when the caller asked for web
// research: alternatives when not covered or costly, PA strategies when
// prior auth is required, price comparison otherwise. Augmentation can never
// fail the request.
func (o *Orchestrator) augment(ctx context.Context, req CheckRequest, med normalizer.Medication, win arbitrated) *research.Result {
	if !req.IncludeWebResearch || o.researcher == nil || win.source == sourceRejected {
		return nil
	}

	var result research.Result
	switch {
	case !win.isCovered || (win.copay != nil && win.copay.Max > alternativesCopayThreshold):
		result = o.researcher.FindAlternatives(ctx, med.Name)
	case win.priorAuth.Required:
		result = o.researcher.ResearchPAStrategies(ctx, med.Name)
	default:
		result = o.researcher.FindPriceComparison(ctx, med.Name)
	}

	return &result
}

// assemble builds the public response. The disclaimer always records the
// elapsed time, the normalization confidence, and the winning source's
// explanation.
func (o *Orchestrator) assemble(
	req CheckRequest,
	med normalizer.Medication,
	confidence float64,
	start time.Time,
	webRes *research.Result,
	win arbitrated,
) Response {
	priorAuth := win.priorAuth
	if priorAuth.Required {
		priorAuth.EstimatedApprovalTime = paApprovalEstimate
	}

	return Response{
		Medication:             med,
		InsurancePlan:          req.InsurancePlan,
		IsCovered:              win.isCovered,
		Tier:                   win.tier,
		EstimatedCopay:         win.copay,
		PriorAuth:              priorAuth,
		AlternativeMedications: win.alternatives,
		WebResearch:            webRes,
		LastUpdated:            time.Now(),
		Disclaimer: fmt.Sprintf("Processed in %dms. Normalization confidence: %.0f%%. %s",
			time.Since(start).Milliseconds(), confidence*100, win.explanation),
	}
}

// fallbackResponse is the terminal answer for an uncaught pipeline failure.
func (o *Orchestrator) fallbackResponse(req CheckRequest, start time.Time, cause any) Response {
	return Response{
		Medication: normalizer.Medication{
			Name:        req.Medication.Name,
			GenericName: req.Medication.Name,
		},
		InsurancePlan: req.InsurancePlan,
		IsCovered:     false,
		LastUpdated:   time.Now(),
		Disclaimer: fmt.Sprintf(
			"Coverage check failed after %dms due to an internal error (%v). Contact your insurer to confirm coverage.",
			time.Since(start).Milliseconds(), cause),
	}
}

func outcomeLabel(win arbitrated) string {
	if win.isCovered {
		return "covered"
	}
	return "not_covered"
}
