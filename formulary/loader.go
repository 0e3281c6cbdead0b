package formulary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rxcheck/coverage-api/logging"
)

// LoadPlans reads every *.json file under dir and parses it as a Plan.
// Files that fail to parse or lack a plan_id are skipped with a warning so a
// single bad file never takes down the whole plan set. An unreadable
// directory returns an error; callers degrade to an empty index.
func LoadPlans(dir string) (map[string]*Plan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading formulary directory %s: %w", dir, err)
	}

	plans := make(map[string]*Plan)
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, de.Name())
		plan, err := loadPlanFile(path)
		if err != nil {
			logging.Warn("Skipping unparseable plan file", "file", path, "error", err)
			continue
		}

		if _, dup := plans[plan.PlanID]; dup {
			logging.Warn("Duplicate plan_id, keeping first occurrence",
				"plan_id", plan.PlanID, "file", path)
			continue
		}
		plans[plan.PlanID] = plan
	}

	if len(plans) == 0 {
		logging.Warn("No usable plan files found", "dir", dir)
	}

	return plans, nil
}

func loadPlanFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	if plan.PlanID == "" {
		return nil, fmt.Errorf("%s: missing plan_id", filepath.Base(path))
	}
	if plan.Formulary == nil {
		plan.Formulary = make(map[string]Entry)
	}

	// Normalize formulary keys once at load so lookups can compare folded
	// strings directly.
	folded := make(map[string]Entry, len(plan.Formulary))
	for key, entry := range plan.Formulary {
		folded[foldName(key)] = entry
	}
	plan.Formulary = folded

	return &plan, nil
}
