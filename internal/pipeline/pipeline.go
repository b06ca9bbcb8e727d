package pipeline

import (
	"context"
	"log/slog"
)

// Step is one phase of a pipeline operating on state T.
type Step[T any] interface {
	// Do executes the step. A returned error is critical; contained
	// failures are recorded in state and reported as nil.
	Do(ctx context.Context, state T) error

	// Name returns the step's name for logging.
	Name() string
}

// StepFunc adapts a function to Step.
type StepFunc[T any] struct {
	name string
	fn   func(ctx context.Context, state T) error
}

// NewStep returns a Step named name that calls fn.
func NewStep[T any](name string, fn func(ctx context.Context, state T) error) StepFunc[T] {
	return StepFunc[T]{name: name, fn: fn}
}

// Do implements Step.
func (s StepFunc[T]) Do(ctx context.Context, state T) error {
	return s.fn(ctx, state)
}

// Name implements Step.
func (s StepFunc[T]) Name() string {
	return s.name
}

// Pipeline runs steps in order against one state value.
type Pipeline[T any] struct {
	steps []Step[T]

	logger *slog.Logger

	// continueOnError keeps running later steps after a failure.
	continueOnError bool

	// always names steps that still run after cancellation or a failed
	// step, such as persisting what was collected so far.
	always map[string]bool
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	continueOnError bool
	always          []string
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithContinueOnError keeps executing steps after one fails. The first
// error is still returned.
func WithContinueOnError(continueOnError bool) Option {
	return func(o *options) {
		o.continueOnError = continueOnError
	}
}

// WithAlways marks steps that run even after the pipeline was cancelled or
// stopped on an error.
func WithAlways(names ...string) Option {
	return func(o *options) {
		o.always = append(o.always, names...)
	}
}

// New creates an empty Pipeline.
func New[T any](opts ...Option) *Pipeline[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	always := make(map[string]bool, len(o.always))
	for _, name := range o.always {
		always[name] = true
	}
	return &Pipeline[T]{
		logger:          o.logger,
		continueOnError: o.continueOnError,
		always:          always,
	}
}

// AddStep appends a step.
func (p *Pipeline[T]) AddStep(step Step[T]) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline[T]) AddSteps(steps ...Step[T]) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order. Cancellation is checked before each
// step; once cancelled, or after a failure without continue-on-error, only
// steps marked with WithAlways still run. The first error is returned.
func (p *Pipeline[T]) Execute(ctx context.Context, state T) error {
	var firstErr error
	halted := false

	for _, step := range p.steps {
		if !halted && ctx.Err() != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "reason", ctx.Err())
			halted = true
			if firstErr == nil {
				firstErr = ctx.Err()
			}
		}
		if halted && !p.always[step.Name()] {
			continue
		}

		p.logger.Debug("executing step", "step", step.Name())
		if err := step.Do(ctx, state); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				halted = true
			}
			continue
		}
		p.logger.Debug("step completed", "step", step.Name())
	}
	return firstErr
}

// StepCount returns the number of steps.
func (p *Pipeline[T]) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline[T]) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
