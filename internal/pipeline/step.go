package pipeline

import (
	"context"
	"sync"
	"time"
)

// Outcome is what a step reports when it returns without error
type Outcome string

const (
	// Completed means the step wrote at least one record
	Completed Outcome = "completed"
	// NoData means every source of the step had nothing for the date
	NoData Outcome = "no_data"
)

// Step is one unit of a pipeline run
type Step interface {
	// ID returns the unique identifier for this step
	ID() string

	// Name returns the human-readable name for this step
	Name() string

	// Dependencies returns the IDs of steps that must run first
	Dependencies() []string

	// Execute runs the step for state.Date
	Execute(ctx context.Context, state *RunState) (Outcome, error)
}

// StepStatus represents the final status of a step in a run
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusNoData    StepStatus = "no_data"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState represents the runtime state of a step
type StepState struct {
	mu        sync.RWMutex
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    StepStatus `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Message   string     `json:"message,omitempty"`
	Error     error      `json:"-"`
}

// NewStepState creates a pending step state
func NewStepState(id, name string) *StepState {
	return &StepState{ID: id, Name: name, Status: StepStatusPending}
}

// Start marks the step as active
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

func (s *StepState) finish(status StepStatus, message string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = status
	s.Message = message
	s.Error = err
}

// Complete marks the step as completed
func (s *StepState) Complete() { s.finish(StepStatusCompleted, "", nil) }

// NoData marks the step as finished without data for the date
func (s *StepState) NoData() { s.finish(StepStatusNoData, "no data or non-trading day", nil) }

// Fail marks the step as failed with the given error
func (s *StepState) Fail(err error) { s.finish(StepStatusFailed, err.Error(), err) }

// Skip marks the step as skipped with the given reason
func (s *StepState) Skip(reason string) { s.finish(StepStatusSkipped, reason, nil) }

// GetStatus returns the current status
func (s *StepState) GetStatus() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// GetMessage returns the status message
func (s *StepState) GetMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Message
}

// Duration returns how long the step ran
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.StartTime == nil || s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(*s.StartTime)
}

// RunState is shared by the steps of one run
type RunState struct {
	Pipeline string
	Date     string

	mu     sync.RWMutex
	values map[string]interface{}
}

// NewRunState creates the state for a run on date
func NewRunState(pipeline, date string) *RunState {
	return &RunState{Pipeline: pipeline, Date: date, values: make(map[string]interface{})}
}

// Set stores a value for later steps
func (s *RunState) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns a value stored by an earlier step
func (s *RunState) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// FuncStep adapts a function to Step
type FuncStep struct {
	StepID   string
	StepName string
	Deps     []string
	Fn       func(ctx context.Context, state *RunState) (Outcome, error)
}

func (f *FuncStep) ID() string             { return f.StepID }
func (f *FuncStep) Name() string           { return f.StepName }
func (f *FuncStep) Dependencies() []string { return f.Deps }

func (f *FuncStep) Execute(ctx context.Context, state *RunState) (Outcome, error) {
	return f.Fn(ctx, state)
}
