package formulary

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rxcheck/coverage-api/logging"
)

// foldTransformer strips diacritics so accented brand spellings still match
// their formulary keys.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldName lowercases, trims, and removes diacritics from a drug name.
func foldName(name string) string {
	folded, _, err := transform.String(foldTransformer, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

func sortedKeys(formulary map[string]Entry) []string {
	keys := make([]string, 0, len(formulary))
	for key := range formulary {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Index holds the loaded plan set behind an atomic pointer so reloads swap
// the whole set without blocking readers.
type Index struct {
	plans      atomic.Value // map[string]*Plan
	lastLoaded atomic.Value // time.Time
}

// NewIndex creates an empty index. Load or Reload populates it.
func NewIndex() *Index {
	idx := &Index{}
	idx.plans.Store(make(map[string]*Plan))
	idx.lastLoaded.Store(time.Time{})
	return idx
}

// Load reads the plan directory into the index. On error the current plan
// set is kept (an empty one for a fresh index) so a load failure degrades to
// lookups missing rather than a crash.
func (idx *Index) Load(dir string) error {
	plans, err := LoadPlans(dir)
	if err != nil {
		logging.Error("Formulary load failed, keeping current plan set", "error", err)
		return err
	}

	idx.plans.Store(plans)
	idx.lastLoaded.Store(time.Now())
	logging.Info("Formulary loaded", "plans", len(plans), "drugs", idx.DrugCount())
	return nil
}

func (idx *Index) planSet() map[string]*Plan {
	if v := idx.plans.Load(); v != nil {
		if plans, ok := v.(map[string]*Plan); ok {
			return plans
		}
	}
	return make(map[string]*Plan)
}

// Plan returns the plan for the given id, or nil.
func (idx *Index) Plan(planID string) *Plan {
	return idx.planSet()[planID]
}

// PlanCount returns the number of loaded plans.
func (idx *Index) PlanCount() int {
	return len(idx.planSet())
}

// DrugCount returns the total number of formulary entries across all plans.
func (idx *Index) DrugCount() int {
	total := 0
	for _, plan := range idx.planSet() {
		total += len(plan.Formulary)
	}
	return total
}

// LastLoaded returns the time of the last successful load.
func (idx *Index) LastLoaded() time.Time {
	if v := idx.lastLoaded.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// Lookup resolves drugName within the given plan. Matching order, first hit
// wins: exact key, generic name, brand name, brand alias (one recursion),
// then loose substring containment in either direction.
func (idx *Index) Lookup(planID, drugName string) LookupResult {
	plan := idx.Plan(planID)
	if plan == nil {
		return LookupResult{}
	}
	return idx.lookupInPlan(plan, foldName(drugName), true)
}

func (idx *Index) lookupInPlan(plan *Plan, query string, allowAlias bool) LookupResult {
	if query == "" {
		return LookupResult{}
	}

	// 1. Exact key match
	if entry, ok := plan.Formulary[query]; ok {
		return LookupResult{Found: true, Entry: &entry, MatchedKey: query}
	}

	// Sorted keys keep fuzzy matches deterministic when more than one entry
	// could satisfy a stage.
	keys := sortedKeys(plan.Formulary)

	// 2. Generic name match
	for _, key := range keys {
		entry := plan.Formulary[key]
		if foldName(entry.GenericName) == query {
			return LookupResult{Found: true, Entry: &entry, MatchedKey: key}
		}
	}

	// 3. Brand name match
	for _, key := range keys {
		entry := plan.Formulary[key]
		for _, brand := range entry.BrandNames {
			if foldName(brand) == query {
				return LookupResult{Found: true, Entry: &entry, MatchedKey: key}
			}
		}
	}

	// 4. Brand alias map, one recursion with the aliased generic
	if allowAlias {
		if generic, ok := brandAliases[query]; ok {
			if res := idx.lookupInPlan(plan, generic, false); res.Found {
				return res
			}
		}
	}

	// 5. Loose substring match
	for _, key := range keys {
		entry := plan.Formulary[key]
		if strings.Contains(key, query) || strings.Contains(query, key) ||
			(entry.GenericName != "" && strings.Contains(foldName(entry.GenericName), query)) {
			return LookupResult{Found: true, Entry: &entry, MatchedKey: key}
		}
	}

	return LookupResult{}
}

// SuggestAlternatives returns covered alternatives for a drug under a plan.
// The entry's own alternatives list is preferred, resolved through Lookup;
// when that yields nothing, entries in the same plan with a strictly lower
// tier and no prior auth are suggested, capped at 3.
func (idx *Index) SuggestAlternatives(planID, drugName string, entry *Entry) []Entry {
	plan := idx.Plan(planID)
	if plan == nil {
		return nil
	}

	var out []Entry
	if entry != nil {
		for _, alt := range entry.Alternatives {
			if res := idx.lookupInPlan(plan, foldName(alt), true); res.Found {
				out = append(out, *res.Entry)
			}
		}
	}
	if len(out) > 0 {
		return out
	}

	if entry == nil {
		return nil
	}

	// Fallback: cheaper entries without prior auth, deterministic order.
	self := foldName(drugName)
	for _, key := range sortedKeys(plan.Formulary) {
		if key == self {
			continue
		}
		candidate := plan.Formulary[key]
		if candidate.Tier < entry.Tier && !candidate.PriorAuth {
			out = append(out, candidate)
			if len(out) == 3 {
				break
			}
		}
	}
	return out
}
