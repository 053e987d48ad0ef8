package shutdown

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCleanupRegistry_Order(t *testing.T) {
	r := NewCleanupRegistry()
	var order []string
	record := func(name string) CleanupFunc {
		return func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	r.Register("logger", PriorityLogger, record("logger"))
	r.Register("pipeline", PriorityPipeline, record("pipeline"))
	r.Register("summary", PriorityMetrics, record("summary"))
	r.Register("pipeline-2", PriorityPipeline, record("pipeline-2"))

	want := []string{"pipeline", "pipeline-2", "summary", "logger"}
	if got := r.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	if errs := r.Run(context.Background()); len(errs) != 0 {
		t.Fatalf("Run() errors: %v", errs)
	}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("execution order = %v, want %v", order, want)
	}
}

func TestCleanupRegistry_CollectsErrors(t *testing.T) {
	r := NewCleanupRegistry()
	boom := errors.New("boom")
	ran := 0

	r.Register("first", 1, func(ctx context.Context) error { ran++; return boom })
	r.Register("second", 2, func(ctx context.Context) error { ran++; return nil })
	r.Register("third", 3, func(ctx context.Context) error { ran++; return errors.New("bang") })

	errs := r.Run(context.Background())
	if ran != 3 {
		t.Errorf("ran %d handlers, want 3", ran)
	}
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2", len(errs))
	}
	if !errors.Is(errs[0], boom) || !strings.HasPrefix(errs[0].Error(), "first:") {
		t.Errorf("first error = %v", errs[0])
	}
}

func TestCleanupRegistry_RunOnce(t *testing.T) {
	r := NewCleanupRegistry()
	calls := 0
	r.Register("only", 0, func(ctx context.Context) error { calls++; return nil })

	r.Run(context.Background())
	r.Run(context.Background())
	r.Register("late", 0, func(ctx context.Context) error { calls++; return nil })
	r.Run(context.Background())

	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1 after late registration", r.Count())
	}
}
