package task

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
)

func newTestRegistry() (*Registry, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewRegistry(log.New(&buf, "", 0)), &buf
}

// step returns a body that appends label to got when run.
func step(got *[]string, label string) Body {
	return func(ctx context.Context) error {
		*got = append(*got, label)
		return nil
	}
}

func TestInvokeOrder(t *testing.T) {
	reg, _ := newTestRegistry()
	inv := NewInvoker(reg)

	var got []string
	reg.Before("deploy", step(&got, "h1"))
	reg.Before("deploy", step(&got, "h2"))
	reg.After("deploy", step(&got, "h3"))
	reg.Define("deploy", step(&got, "body"), false)

	if err := inv.Invoke(context.Background(), "deploy"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	want := []string{"h1", "h2", "body", "h3"}
	assertSequence(t, got, want)
}

func TestInvokeUndefinedBody(t *testing.T) {
	reg, _ := newTestRegistry()
	inv := NewInvoker(reg)

	var got []string
	reg.Before("event", step(&got, "h1"))
	reg.Before("event", step(&got, "h2"))
	reg.After("event", step(&got, "h3"))

	// No body for "event": hooks still run, the missing body is silent.
	if err := inv.Invoke(context.Background(), "event"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	assertSequence(t, got, []string{"h1", "h2", "h3"})
}

func TestInvokeNoHooksNoBody(t *testing.T) {
	reg, _ := newTestRegistry()
	inv := NewInvoker(reg)

	if err := inv.Invoke(context.Background(), "nothing"); err != nil {
		t.Fatalf("Invoke of fully undefined task should be a no-op, got %v", err)
	}
}

func TestHookReferenceInvokesFullChain(t *testing.T) {
	reg, _ := newTestRegistry()
	inv := NewInvoker(reg)

	var got []string
	reg.Define("build", step(&got, "build"), false)
	reg.Before("build", step(&got, "build-before"))
	reg.After("build", step(&got, "build-after"))

	reg.Define("deploy", step(&got, "deploy"), false)
	reg.BeforeTask("deploy", "build")

	if err := inv.Invoke(context.Background(), "deploy"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	// The referenced task runs as a full Invoke, its own hooks included.
	assertSequence(t, got, []string{"build-before", "build", "build-after", "deploy"})
}

func TestInvokeAbortsOnError(t *testing.T) {
	reg, _ := newTestRegistry()
	inv := NewInvoker(reg)

	boom := errors.New("boom")
	var got []string
	reg.Before("deploy", step(&got, "h1"))
	reg.Before("deploy", func(ctx context.Context) error { return boom })
	reg.Define("deploy", step(&got, "body"), false)
	reg.After("deploy", step(&got, "h3"))

	err := inv.Invoke(context.Background(), "deploy")
	if !errors.Is(err, boom) {
		t.Fatalf("Invoke = %v, want boom", err)
	}
	// Body and after-hooks never ran.
	assertSequence(t, got, []string{"h1"})
}

func TestRedefinitionWarning(t *testing.T) {
	reg, buf := newTestRegistry()
	inv := NewInvoker(reg)

	var got []string
	reg.Define("deploy", step(&got, "old"), false)
	reg.Define("deploy", step(&got, "new"), false)

	out := buf.String()
	if !strings.Contains(out, `task "deploy" redefined`) {
		t.Errorf("expected redefinition warning, got %q", out)
	}
	if !strings.Contains(out, "task_test.go") {
		t.Errorf("warning should name the previous definition's origin, got %q", out)
	}

	// Last registration wins.
	if err := inv.Invoke(context.Background(), "deploy"); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	assertSequence(t, got, []string{"new"})
}

func TestRedefinitionWithOverrideIsSilent(t *testing.T) {
	reg, buf := newTestRegistry()

	reg.Define("deploy", func(ctx context.Context) error { return nil }, false)
	reg.Define("deploy", func(ctx context.Context) error { return nil }, true)

	if out := buf.String(); out != "" {
		t.Errorf("override redefinition should not warn, got %q", out)
	}
}

func TestNeedlessOverrideWarning(t *testing.T) {
	reg, buf := newTestRegistry()

	reg.Define("fresh", func(ctx context.Context) error { return nil }, true)

	out := buf.String()
	if !strings.Contains(out, "no previous definition") {
		t.Errorf("expected needless-override warning, got %q", out)
	}
	// The task is still defined normally.
	if _, ok := reg.Lookup("fresh"); !ok {
		t.Error("task should be defined despite the warning")
	}
}

func TestDefineAtOrigin(t *testing.T) {
	reg, buf := newTestRegistry()

	reg.DefineAt("deploy", func(ctx context.Context) error { return nil }, false, "deploy.yml#deploy")
	reg.Define("deploy", func(ctx context.Context) error { return nil }, false)

	if out := buf.String(); !strings.Contains(out, "deploy.yml#deploy") {
		t.Errorf("warning should carry the explicit origin, got %q", out)
	}
}

func TestDefinedListsInOrder(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.Define("b", func(ctx context.Context) error { return nil }, false)
	reg.Define("a", func(ctx context.Context) error { return nil }, false)
	reg.Define("b", func(ctx context.Context) error { return nil }, false) // redefinition keeps slot

	infos := reg.Defined()
	if len(infos) != 2 || infos[0].Name != "b" || infos[1].Name != "a" {
		t.Errorf("Defined = %+v, want [b a]", infos)
	}
}

func assertSequence(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("sequence = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("sequence = %v, want %v", got, want)
		}
	}
}
