package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spinlock99/bootleg/internal/dispatch"
	"github.com/spinlock99/bootleg/internal/models"
	"github.com/spinlock99/bootleg/internal/role"
	"github.com/spinlock99/bootleg/internal/store"
	"github.com/spinlock99/bootleg/internal/task"
	"github.com/spinlock99/bootleg/internal/transport/local"
)

func TestInvokeRunsTaskAgainstHosts(t *testing.T) {
	eng := New(Options{Transport: local.New()})

	ws := t.TempDir()
	if err := eng.Roles().Define("app", []string{"alpha", "beta"}, role.Attributes{"workspace": ws}); err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	eng.Tasks().Define("touch", func(ctx context.Context) error {
		_, err := eng.Remote(ctx, role.NewSpec("app"), dispatch.Options{}, "touch marker-$$")
		return err
	}, false)

	if err := eng.Invoke(context.Background(), "touch"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	entries, err := os.ReadDir(ws)
	if err != nil || len(entries) == 0 {
		t.Errorf("task left no marker in workspace: %v", err)
	}
}

func TestInvokeRecordsHistory(t *testing.T) {
	hist, err := store.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	defer hist.Close()

	eng := New(Options{Transport: local.New(), History: hist})
	eng.Roles().Define("app", []string{"localhost"}, nil)
	eng.Tasks().Define("greet", func(ctx context.Context) error {
		_, err := eng.Remote(ctx, role.NewSpec("app"), dispatch.Options{Dir: "/"}, "echo hi")
		return err
	}, false)

	if err := eng.Invoke(context.Background(), "greet"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	runs, err := hist.ListRuns(5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %v (%v), want 1", runs, err)
	}
	if runs[0].Task != "greet" || runs[0].Status != models.RunStatusSucceeded {
		t.Errorf("run = %+v", runs[0])
	}

	records, err := hist.CommandsForRun(runs[0].ID)
	if err != nil || len(records) != 1 {
		t.Fatalf("records = %v (%v), want 1", records, err)
	}
	if records[0].Command != "echo hi" || records[0].Stdout != "hi\n" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestInvokeFailurePropagatesAndIsRecorded(t *testing.T) {
	hist, err := store.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer hist.Close()

	eng := New(Options{Transport: local.New(), History: hist})
	eng.Roles().Define("app", []string{"localhost"}, nil)
	eng.Tasks().Define("explode", func(ctx context.Context) error {
		_, err := eng.Remote(ctx, role.NewSpec("app"), dispatch.Options{Dir: "/"}, "exit 7")
		return err
	}, false)

	err = eng.Invoke(context.Background(), "explode")
	if err == nil {
		t.Fatal("expected error")
	}

	runs, _ := hist.ListRuns(5)
	if len(runs) != 1 || runs[0].Status != models.RunStatusFailed {
		t.Errorf("runs = %+v, want one failed run", runs)
	}
}

func TestHooksComposeWithDispatch(t *testing.T) {
	eng := New(Options{Transport: local.New()})
	eng.Roles().Define("app", []string{"localhost"}, nil)

	var order []string
	appendStep := func(label string) task.Body {
		return func(ctx context.Context) error {
			order = append(order, label)
			return nil
		}
	}

	eng.Tasks().Define("migrate", appendStep("migrate"), false)
	eng.Tasks().Define("deploy", appendStep("deploy"), false)
	eng.Tasks().BeforeTask("deploy", "migrate")
	eng.Tasks().After("deploy", appendStep("notify"))

	if err := eng.Invoke(context.Background(), "deploy"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	want := []string{"migrate", "deploy", "notify"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestIndependentEngines(t *testing.T) {
	a := New(Options{Transport: local.New()})
	b := New(Options{Transport: local.New()})

	a.Roles().Define("app", []string{"h1"}, nil)
	if _, ok := b.Roles().Get("app"); ok {
		t.Error("role leaked between engines")
	}
}
