package janitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/tasks"
)

func TestNewDefaults(t *testing.T) {
	super := tasks.NewSupervisor(time.Minute)

	j := New(config.JanitorConfig{}, super, t.TempDir())
	if j.schedule != defaultSchedule {
		t.Errorf("schedule = %q", j.schedule)
	}
	if j.grace != 30*time.Minute {
		t.Errorf("grace = %v", j.grace)
	}
	if j.tempMaxAge != 24*time.Hour {
		t.Errorf("tempMaxAge = %v", j.tempMaxAge)
	}

	j = New(config.JanitorConfig{Schedule: "not a cron"}, super, t.TempDir())
	if j.schedule != defaultSchedule {
		t.Errorf("invalid schedule kept: %q", j.schedule)
	}

	j = New(config.JanitorConfig{Schedule: "0 3 * * *", GraceMin: 5, TempMaxAgeH: 1}, super, t.TempDir())
	if j.schedule != "0 3 * * *" || j.grace != 5*time.Minute || j.tempMaxAge != time.Hour {
		t.Errorf("janitor = %+v", j)
	}
}

func TestSweepRemovesTerminalTasksAndStaleTemp(t *testing.T) {
	super := tasks.NewSupervisor(time.Minute)
	done, _ := super.Create("w1", "u1", "q")
	done.Start(context.Background(), time.Minute)
	done.Complete()
	live, _ := super.Create("w2", "u1", "q")
	live.Start(context.Background(), time.Minute)

	dir := t.TempDir()
	tempDir := filepath.Join(dir, "w1", "temp")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(tempDir, "old.csv")
	fresh := filepath.Join(tempDir, "new.csv")
	os.WriteFile(stale, []byte("x"), 0644)
	os.WriteFile(fresh, []byte("x"), 0644)
	past := time.Now().Add(-48 * time.Hour)
	os.Chtimes(stale, past, past)

	j := New(config.JanitorConfig{}, super, dir)
	j.grace = 0
	j.Sweep()

	if _, ok := super.Get("w1"); ok {
		t.Error("terminal task survived sweep")
	}
	if _, ok := super.Get("w2"); !ok {
		t.Error("running task was collected")
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp file survived")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh temp file removed")
	}
}

func TestSweepTempMissingDirs(t *testing.T) {
	super := tasks.NewSupervisor(time.Minute)

	j := New(config.JanitorConfig{}, super, filepath.Join(t.TempDir(), "missing"))
	if n := j.sweepTemp(); n != 0 {
		t.Errorf("sweepTemp on missing root = %d", n)
	}

	// workspace without a temp dir is skipped
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "w1"), 0755)
	j = New(config.JanitorConfig{}, super, dir)
	if n := j.sweepTemp(); n != 0 {
		t.Errorf("sweepTemp = %d", n)
	}
}
