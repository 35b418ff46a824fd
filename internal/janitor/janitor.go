// Package janitor runs periodic cleanup: terminal task records past their
// grace period and stale files under each workspace's temp directory.
package janitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/tasks"
)

const defaultSchedule = "*/10 * * * *"

// Janitor sweeps on a cron schedule.
type Janitor struct {
	schedule      string
	grace         time.Duration
	tempMaxAge    time.Duration
	super         *tasks.Supervisor
	workspacesDir string
}

func New(cfg config.JanitorConfig, super *tasks.Supervisor, workspacesDir string) *Janitor {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}
	if !gronx.New().IsValid(schedule) {
		slog.Warn("invalid janitor schedule, using default", "schedule", schedule)
		schedule = defaultSchedule
	}
	grace := time.Duration(cfg.GraceMin) * time.Minute
	if grace <= 0 {
		grace = 30 * time.Minute
	}
	tempMaxAge := time.Duration(cfg.TempMaxAgeH) * time.Hour
	if tempMaxAge <= 0 {
		tempMaxAge = 24 * time.Hour
	}
	return &Janitor{
		schedule:      schedule,
		grace:         grace,
		tempMaxAge:    tempMaxAge,
		super:         super,
		workspacesDir: workspacesDir,
	}
}

// Run blocks until ctx is cancelled, sweeping at each schedule tick.
func (j *Janitor) Run(ctx context.Context) {
	slog.Info("janitor started", "schedule", j.schedule,
		"grace", j.grace, "temp_max_age", j.tempMaxAge)
	for {
		next, err := gronx.NextTick(j.schedule, false)
		if err != nil {
			slog.Error("janitor schedule error", "error", err)
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.Sweep()
		}
	}
}

// Sweep performs one cleanup pass.
func (j *Janitor) Sweep() {
	removed := j.super.GC(j.grace)
	files := j.sweepTemp()
	if removed > 0 || files > 0 {
		slog.Info("janitor sweep", "tasks_removed", removed, "temp_files_removed", files)
	}
}

// sweepTemp deletes entries under every workspace's temp/ dir older than
// the configured age. Returns the number of entries removed.
func (j *Janitor) sweepTemp() int {
	works, err := os.ReadDir(j.workspacesDir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-j.tempMaxAge)
	removed := 0
	for _, w := range works {
		if !w.IsDir() {
			continue
		}
		tempDir := filepath.Join(j.workspacesDir, w.Name(), "temp")
		entries, err := os.ReadDir(tempDir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(tempDir, e.Name())
			if err := os.RemoveAll(path); err != nil {
				slog.Warn("janitor temp removal failed", "path", path, "error", err)
				continue
			}
			removed++
		}
	}
	return removed
}
