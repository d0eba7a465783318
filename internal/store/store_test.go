package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spinlock99/bootleg/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "history.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	run, err := s.BeginRun("deploy")
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if run.Status != models.RunStatusRunning {
		t.Errorf("status = %s, want running", run.Status)
	}

	if err := s.FinishRun(run.ID, nil); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != models.RunStatusSucceeded {
		t.Errorf("status = %s, want succeeded", got.Status)
	}
	if got.EndedAt == nil {
		t.Error("EndedAt should be set after FinishRun")
	}
}

func TestFinishRunFailed(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	run, _ := s.BeginRun("deploy")
	if err := s.FinishRun(run.ID, errors.New("host h1 exploded")); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, _ := s.GetRun(run.ID)
	if got.Status != models.RunStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Error != "host h1 exploded" {
		t.Errorf("error = %q, want host h1 exploded", got.Error)
	}
}

func TestRecordCommandAttribution(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	run, _ := s.BeginRun("deploy")
	if err := s.RecordCommand("build", "h1", "make", 0, "ok\n", ""); err != nil {
		t.Fatalf("RecordCommand failed: %v", err)
	}
	if err := s.RecordCommand("build", "h2", "make", 1, "", "boom\n"); err != nil {
		t.Fatalf("RecordCommand failed: %v", err)
	}
	s.FinishRun(run.ID, nil)

	records, err := s.CommandsForRun(run.ID)
	if err != nil {
		t.Fatalf("CommandsForRun failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// Execution order is preserved via seq.
	if records[0].Host != "h1" || records[1].Host != "h2" {
		t.Errorf("order = [%s %s], want [h1 h2]", records[0].Host, records[1].Host)
	}
	if records[1].ExitStatus != 1 || records[1].Stderr != "boom\n" {
		t.Errorf("record = %+v, want exit 1 with stderr", records[1])
	}

	// Records after FinishRun are not attributed to the closed run.
	s.RecordCommand("build", "h3", "make", 0, "", "")
	records, _ = s.CommandsForRun(run.ID)
	if len(records) != 2 {
		t.Errorf("closed run gained records: got %d, want 2", len(records))
	}
}

func TestRecordTransfer(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	run, _ := s.BeginRun("deploy")
	if err := s.RecordTransfer("app", "h1", "upload", "dist.tar", "/var/www/dist.tar", nil); err != nil {
		t.Fatalf("RecordTransfer failed: %v", err)
	}
	if err := s.RecordTransfer("app", "h2", "upload", "dist.tar", "/var/www/dist.tar", errors.New("no space")); err != nil {
		t.Fatalf("RecordTransfer failed: %v", err)
	}

	records, err := s.TransfersForRun(run.ID)
	if err != nil {
		t.Fatalf("TransfersForRun failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d transfers, want 2", len(records))
	}
	if records[0].Error != "" {
		t.Errorf("first transfer error = %q, want empty", records[0].Error)
	}
	if records[1].Error != "no space" {
		t.Errorf("second transfer error = %q, want no space", records[1].Error)
	}
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	r1, _ := s.BeginRun("build")
	s.FinishRun(r1.ID, nil)
	r2, _ := s.BeginRun("deploy")
	s.FinishRun(r2.ID, nil)

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
}
