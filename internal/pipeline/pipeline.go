package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/politecrawler/internal/log"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the Job as left by the
// previous steps.
type Step interface {
	// Do executes the step. Non-fatal problems are recorded on the Job and
	// nil is returned; an error ends the run.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline running steps in the given order.
func New(steps []Step, opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: append([]Step(nil), steps...),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Execute runs the steps on job until one skips the job, fails, or the
// context is canceled. The returned error names the failing step.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	url := log.RedactURL(job.URL.String())

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Debug("pipeline cancelled", "step", step.Name(), "url", url)
			return err
		}

		if err := step.Do(ctx, job); err != nil {
			p.logger.Debug("step failed",
				"step", step.Name(),
				"url", url,
				"error", err,
			)
			return fmt.Errorf("%s: %w", step.Name(), err)
		}

		if reason := job.Skipped(); reason != SkipNone {
			p.logger.Debug("page skipped",
				"step", step.Name(),
				"url", url,
				"reason", reason.String(),
			)
			return nil
		}
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
