package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type trace struct {
	ran []string
}

func recordStep(name string, err error) Step[*trace] {
	return NewStep(name, func(_ context.Context, tr *trace) error {
		tr.ran = append(tr.ran, name)
		return err
	})
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New[*trace]()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.continueOnError {
			t.Error("expected continueOnError to default to false")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New[*trace](WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New[*trace]()
	p.AddStep(recordStep("crawl", nil))
	p.AddSteps(recordStep("download", nil), recordStep("rewrite", nil))

	if got := p.StepNames(); !slices.Equal(got, []string{"crawl", "download", "rewrite"}) {
		t.Errorf("StepNames() = %v", got)
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	t.Run("runs every step in order", func(t *testing.T) {
		t.Parallel()

		p := New[*trace]()
		p.AddSteps(recordStep("a", nil), recordStep("b", nil), recordStep("c", nil))

		tr := &trace{}
		if err := p.Execute(context.Background(), tr); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(tr.ran, []string{"a", "b", "c"}) {
			t.Errorf("ran %v", tr.ran)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		p := New[*trace]()
		p.AddSteps(recordStep("a", errBoom), recordStep("b", nil))

		tr := &trace{}
		if err := p.Execute(context.Background(), tr); !errors.Is(err, errBoom) {
			t.Fatalf("expected errBoom, got %v", err)
		}
		if !slices.Equal(tr.ran, []string{"a"}) {
			t.Errorf("ran %v", tr.ran)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		p := New[*trace](WithContinueOnError(true))
		p.AddSteps(recordStep("a", errBoom), recordStep("b", errors.New("second")))

		tr := &trace{}
		if err := p.Execute(context.Background(), tr); !errors.Is(err, errBoom) {
			t.Fatalf("expected the first error, got %v", err)
		}
		if !slices.Equal(tr.ran, []string{"a", "b"}) {
			t.Errorf("ran %v", tr.ran)
		}
	})

	t.Run("always steps run after a failure", func(t *testing.T) {
		t.Parallel()

		p := New[*trace](WithAlways("persist"))
		p.AddSteps(recordStep("crawl", errBoom), recordStep("download", nil), recordStep("persist", nil))

		tr := &trace{}
		if err := p.Execute(context.Background(), tr); !errors.Is(err, errBoom) {
			t.Fatalf("expected errBoom, got %v", err)
		}
		if !slices.Equal(tr.ran, []string{"crawl", "persist"}) {
			t.Errorf("ran %v", tr.ran)
		}
	})

	t.Run("cancellation skips all but always steps", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		p := New[*trace](WithAlways("persist"))
		p.AddSteps(
			NewStep("crawl", func(_ context.Context, tr *trace) error {
				tr.ran = append(tr.ran, "crawl")
				cancel()
				return nil
			}),
			recordStep("download", nil),
			recordStep("persist", nil),
		)

		tr := &trace{}
		if err := p.Execute(ctx, tr); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !slices.Equal(tr.ran, []string{"crawl", "persist"}) {
			t.Errorf("ran %v", tr.ran)
		}
	})
}
