// Package scheduler provides automated formulary reloads and staleness
// monitoring for the coverage API. Plan files change when carriers publish
// updates, so the index is re-read from disk on a daily schedule and swapped
// in without downtime.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/rxcheck/coverage-api/interfaces"
	"github.com/rxcheck/coverage-api/logging"
)

// reloadTime is when the daily formulary reload runs.
const reloadTime = "03:00"

// staleAfter is how old the index may get before the monitor warns.
const staleAfter = 25 * time.Hour

// Compile-time check to ensure Scheduler implements the Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles formulary reloads and staleness monitoring using
// dependency injection.
type Scheduler struct {
	store        interfaces.FormularyReloader
	formularyDir string
	scheduler    *gocron.Scheduler
	done         chan struct{}
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(store interfaces.FormularyReloader, formularyDir string) *Scheduler {
	return &Scheduler{
		store:        store,
		formularyDir: formularyDir,
		scheduler:    gocron.NewScheduler(time.Local),
		done:         make(chan struct{}),
	}
}

// Start schedules the daily reload and starts the staleness monitor. The
// initial load is the caller's responsibility; Start never reloads eagerly so
// a restart during a carrier outage keeps whatever the caller loaded.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Days().At(reloadTime).Do(func() {
		s.reload()
	})
	if err != nil {
		logging.Error("Failed to schedule formulary reloads", "error", err)
		return fmt.Errorf("failed to schedule formulary reloads: %w", err)
	}

	s.scheduler.StartAsync()
	s.startStalenessMonitor()

	return nil
}

// Stop stops the scheduler and the staleness monitor.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	close(s.done)
}

// reload re-reads the plan files. A failed reload keeps the current index.
func (s *Scheduler) reload() {
	logging.Info("Starting formulary reload", "dir", s.formularyDir)
	start := time.Now()

	if err := s.store.Load(s.formularyDir); err != nil {
		logging.Error("Formulary reload failed, keeping current index", "error", err)
		return
	}

	logging.Info("Formulary reload completed",
		"duration", time.Since(start).String(),
		"plan_count", s.store.PlanCount(),
		"drug_count", s.store.DrugCount())
}

// startStalenessMonitor warns hourly when the index has not been refreshed
// within the expected window.
func (s *Scheduler) startStalenessMonitor() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				last := s.store.LastLoaded()
				if last.IsZero() {
					logging.Warn("Formulary index has never been loaded")
					continue
				}
				if time.Since(last) > staleAfter {
					logging.Warn("Formulary index is stale",
						"last_loaded", last.Format(time.RFC3339),
						"age", time.Since(last).Round(time.Minute).String())
				}
			}
		}
	}()
}
