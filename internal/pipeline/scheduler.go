package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"twmarket/internal/infrastructure"
)

// RunRequest selects what a run executes
type RunRequest struct {
	Date string
	// Steps limits the run to these IDs; empty runs every step
	Steps []string
}

// RunResult is the outcome of one run
type RunResult struct {
	Pipeline string        `json:"pipeline"`
	Date     string        `json:"date"`
	TraceID  string        `json:"trace_id,omitempty"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Steps    []*StepState  `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Step returns the state of id, or nil
func (r *RunResult) Step(id string) *StepState {
	for _, s := range r.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Count returns how many steps ended with status
func (r *RunResult) Count(status StepStatus) int {
	n := 0
	for _, s := range r.Steps {
		if s.GetStatus() == status {
			n++
		}
	}
	return n
}

// Scheduler executes a registry's steps sequentially
type Scheduler struct {
	name     string
	registry *Registry
	spacing  time.Duration
	metrics  *infrastructure.Metrics
	logger   *slog.Logger
	observer Observer
}

// Observer is told about every step state change of a run
type Observer func(ctx context.Context, pipeline, date string, st *StepState)

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithSpacing sets the pause between two executed steps
func WithSpacing(d time.Duration) Option {
	return func(s *Scheduler) { s.spacing = d }
}

// WithMetrics records step outcomes on m
func WithMetrics(m *infrastructure.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithObserver reports step transitions to o
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithLogger sets the scheduler logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a scheduler named name over registry
func NewScheduler(name string, registry *Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		name:     name,
		registry: registry,
		logger:   infrastructure.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "pipeline"), slog.String("pipeline", name))
	return s
}

// Name returns the pipeline name
func (s *Scheduler) Name() string { return s.name }

// Run executes the requested steps for req.Date. Step failures are recorded
// in the result; the returned error is set only when the run could not be
// planned or ctx was cancelled.
func (s *Scheduler) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, span := infrastructure.StartSpan(ctx, "pipeline.run",
		attribute.String("pipeline", s.name),
		attribute.String("date", req.Date))
	defer span.End()

	steps, err := s.plan(req.Steps)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	result := &RunResult{
		Pipeline: s.name,
		Date:     req.Date,
		TraceID:  infrastructure.GetTraceID(ctx),
		Started:  time.Now(),
	}
	states := make(map[string]*StepState, len(steps))
	for _, step := range steps {
		st := NewStepState(step.ID(), step.Name())
		states[step.ID()] = st
		result.Steps = append(result.Steps, st)
	}

	s.logger.InfoContext(ctx, "pipeline_start",
		slog.String("date", req.Date),
		slog.Int("step_count", len(steps)))

	run := NewRunState(s.name, req.Date)
	executed := 0
	var runErr error
	for i, step := range steps {
		st := states[step.ID()]

		if runErr != nil {
			st.Skip("cancelled")
			continue
		}
		if blocked := s.blockedBy(step, states); blocked != "" {
			st.Skip(fmt.Sprintf("dependency %s did not run", blocked))
			s.notify(ctx, req.Date, st)
			s.logger.WarnContext(ctx, "step_skipped",
				slog.String("step", step.ID()),
				slog.String("dependency", blocked))
			s.metrics.PipelineStep(ctx, s.name, step.ID(), string(StepStatusSkipped))
			continue
		}

		if executed > 0 {
			if err := wait(ctx, s.spacing); err != nil {
				runErr = err
				st.Skip("cancelled")
				s.notify(ctx, req.Date, st)
				continue
			}
		}
		executed++

		s.logger.InfoContext(ctx, "step_start",
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))
		s.execute(ctx, step, run, st)
	}

	result.Finished = time.Now()
	result.Duration = result.Finished.Sub(result.Started)
	s.logger.InfoContext(ctx, "pipeline_complete",
		slog.String("date", req.Date),
		slog.Int("completed", result.Count(StepStatusCompleted)),
		slog.Int("no_data", result.Count(StepStatusNoData)),
		slog.Int("failed", result.Count(StepStatusFailed)),
		slog.Int("skipped", result.Count(StepStatusSkipped)),
		slog.Duration("duration", result.Duration))
	return result, runErr
}

func (s *Scheduler) plan(only []string) ([]Step, error) {
	ordered, err := s.registry.DependencyOrder()
	if err != nil {
		return nil, err
	}
	if len(only) == 0 {
		return ordered, nil
	}

	want := make(map[string]bool, len(only))
	for _, id := range only {
		if _, err := s.registry.Get(id); err != nil {
			return nil, err
		}
		want[id] = true
	}
	selected := make([]Step, 0, len(only))
	for _, step := range ordered {
		if want[step.ID()] {
			selected = append(selected, step)
		}
	}
	return selected, nil
}

// blockedBy returns the first dependency that failed or was skipped.
// Dependencies outside the run are not checked.
func (s *Scheduler) blockedBy(step Step, states map[string]*StepState) string {
	for _, dep := range step.Dependencies() {
		st, ok := states[dep]
		if !ok {
			continue
		}
		switch st.GetStatus() {
		case StepStatusFailed, StepStatusSkipped:
			return dep
		}
	}
	return ""
}

func (s *Scheduler) execute(ctx context.Context, step Step, run *RunState, st *StepState) {
	ctx, span := infrastructure.StartSpan(ctx, "pipeline.step", attribute.String("step", step.ID()))
	defer span.End()

	st.Start()
	s.notify(ctx, run.Date, st)
	outcome, err := safeExecute(ctx, step, run)
	switch {
	case err != nil:
		st.Fail(err)
		infrastructure.RecordError(ctx, err)
		s.logger.ErrorContext(ctx, "step_error",
			slog.String("step", step.ID()),
			slog.String("error", err.Error()))
	case outcome == NoData:
		st.NoData()
		s.logger.InfoContext(ctx, "step_no_data",
			slog.String("step", step.ID()),
			slog.String("message", "no data or non-trading day"))
	default:
		st.Complete()
		s.logger.InfoContext(ctx, "step_complete",
			slog.String("step", step.ID()),
			slog.Duration("duration", st.Duration()))
	}
	s.metrics.PipelineStep(ctx, s.name, step.ID(), string(st.GetStatus()))
	s.notify(ctx, run.Date, st)
}

func (s *Scheduler) notify(ctx context.Context, date string, st *StepState) {
	if s.observer != nil {
		s.observer(ctx, s.name, date, st)
	}
}

func safeExecute(ctx context.Context, step Step, run *RunState) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", step.ID(), r)
		}
	}()
	return step.Execute(ctx, run)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
