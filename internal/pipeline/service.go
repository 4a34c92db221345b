// Package pipeline orchestrates one upload → poll → post-process → handoff
// analysis run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"lv0/internal/api"
	"lv0/internal/handoff"
	"lv0/internal/model"
	"lv0/internal/poller"
	"lv0/internal/progress"
	"lv0/internal/tracker"
	"lv0/internal/util/format"
)

// RunState guards a Service against overlapping runs.
type RunState int

const (
	Idle RunState = iota
	Running
	Done
)

func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Done:
		return "done"
	}
	return "unknown"
}

var (
	// ErrAlreadyRunning is returned when a run is started while another is in flight.
	ErrAlreadyRunning = errors.New("analysis already running")
	// ErrNothingToRetry is returned by Retry before any run was started.
	ErrNothingToRetry = errors.New("no previous analysis to retry")
)

// Backend is the remote analysis service.
type Backend interface {
	Upload(ctx context.Context, job model.UploadJob, onProgress func(percent int)) (api.UploadResult, error)
	Status(ctx context.Context, jobID string) (model.StatusReport, error)
}

// Service runs analyses for one view. At most one run is in flight at a time.
type Service struct {
	backend      Backend
	sink         handoff.Sink
	policy       poller.Policy
	stepDelay    time.Duration
	reporter     progress.Reporter
	logger       *slog.Logger
	runID        string
	analysisType string
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time

	mu      sync.Mutex
	state   RunState
	lastJob *model.UploadJob
	tracker *tracker.Tracker
}

// Option configures a Service.
type Option func(*Service)

// WithBackend sets the remote analysis backend.
func WithBackend(b Backend) Option {
	return func(s *Service) {
		s.backend = b
	}
}

// WithSink sets where finished reports are delivered.
func WithSink(sink handoff.Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithPolicy sets the status polling budget.
func WithPolicy(p poller.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithStepDelay sets the wait before each post-processing step.
func WithStepDelay(d time.Duration) Option {
	return func(s *Service) {
		s.stepDelay = d
	}
}

// WithReporter attaches a progress reporter (used by TUI).
func WithReporter(rp progress.Reporter) Option {
	return func(s *Service) {
		s.reporter = rp
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithRunID sets the id attached to reporter events.
func WithRunID(id string) Option {
	return func(s *Service) {
		s.runID = id
	}
}

// WithAnalysisType sets the label written in the run header.
func WithAnalysisType(t string) Option {
	return func(s *Service) {
		s.analysisType = t
	}
}

// WithClock replaces the wait and time source (useful for testing).
func WithClock(sleep func(ctx context.Context, d time.Duration) error, now func() time.Time) Option {
	return func(s *Service) {
		s.sleep = sleep
		s.now = now
	}
}

// NewService constructs a new Service with the provided options.
// It applies sensible defaults for missing components.
func NewService(opts ...Option) *Service {
	s := &Service{
		policy:    poller.DefaultPolicy(),
		stepDelay: time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	if s.sink == nil {
		s.sink = handoff.DirSink{Dir: "."}
	}
	if s.reporter == nil {
		s.reporter = progress.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	if s.sleep == nil {
		s.sleep = sleepCtx
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.tracker = tracker.New(s.runID, s.reporter)
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns the current run state.
func (s *Service) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current display state.
func (s *Service) Snapshot() tracker.PhaseState {
	return s.tracker.Snapshot()
}

// Run executes the full workflow for job. It never prints; progress goes to
// the Reporter, which also receives exactly one Result per run.
// Cancelling ctx stops polling and timers and releases the report payload.
func (s *Service) Run(ctx context.Context, job model.UploadJob) (model.Report, error) {
	if s.backend == nil {
		return model.Report{}, fmt.Errorf("no backend configured")
	}
	s.mu.Lock()
	if s.state == Running {
		s.mu.Unlock()
		return model.Report{}, ErrAlreadyRunning
	}
	s.state = Running
	j := job
	s.lastJob = &j
	s.mu.Unlock()

	rep, err := s.run(ctx, job)

	s.mu.Lock()
	s.state = Done
	s.mu.Unlock()

	s.reporter.Result(progress.Result{
		RunID:      s.runID,
		JobID:      rep.JobID,
		OutputPath: rep.Location,
		Bytes:      rep.Bytes,
		Err:        err,
	})
	return rep, err
}

// Retry re-runs the last job from the beginning with a fresh state.
func (s *Service) Retry(ctx context.Context) (model.Report, error) {
	s.mu.Lock()
	last := s.lastJob
	s.mu.Unlock()
	if last == nil {
		return model.Report{}, ErrNothingToRetry
	}
	s.logger.Info("pipeline.retry", "run_id", s.runID, "file", last.DisplayName)
	return s.Run(ctx, *last)
}

func (s *Service) run(ctx context.Context, job model.UploadJob) (model.Report, error) {
	t := s.tracker
	t.Reset()
	start := s.now()
	s.logger.Info("pipeline.run.start",
		"run_id", s.runID,
		"file", job.DisplayName,
		"size", format.HumanizeBytes(job.SizeBytes),
	)
	t.Start(job, s.analysisType)

	if err := ctx.Err(); err != nil {
		return model.Report{}, s.fail(err)
	}

	// Step 1: Upload
	up, err := s.backend.Upload(ctx, job, t.Upload)
	if err != nil {
		return model.Report{}, s.fail(err)
	}
	// Released on every path; Deliver releases it too.
	defer up.Artifact.Release()
	t.Uploaded(up.JobID)
	s.logger.Info("pipeline.uploaded", "run_id", s.runID, "job_id", up.JobID, "payload", up.Artifact.Size())

	// Step 2: Poll until the remote analysis finishes
	p := poller.New(s.backend,
		poller.WithPolicy(s.policy),
		poller.WithObserver(t),
		poller.WithLogger(s.logger),
		poller.WithClock(s.sleep, s.now),
	)
	out, err := p.Run(ctx, up.JobID)
	if err != nil {
		return model.Report{}, s.fail(err)
	}
	s.logger.Info("pipeline.analysis.done", "run_id", s.runID, "job_id", up.JobID, "polls", out.Polls)

	// Step 3: Post-processing sequence
	if err := t.PostProcess(ctx, s.stepDelay, s.sleep); err != nil {
		return model.Report{}, s.fail(err)
	}

	// Step 4: Handoff
	rep, err := handoff.Deliver(ctx, s.sink, handoff.Bundle{
		Artifact:    up.Artifact,
		DisplayName: handoff.DisplayName(job.DisplayName),
		JobID:       up.JobID,
	})
	if err != nil {
		return model.Report{}, s.fail(err)
	}
	t.Logf("Saved: %s (%s)", rep.DisplayName, format.HumanizeBytes(rep.Bytes))
	t.Complete(rep.Location)
	s.logger.Info("pipeline.run.done",
		"run_id", s.runID,
		"job_id", rep.JobID,
		"location", rep.Location,
		"elapsed_ms", s.now().Sub(start).Milliseconds(),
	)
	return rep, nil
}

func (s *Service) fail(err error) error {
	s.tracker.Fail(err)
	if errors.Is(err, context.Canceled) {
		s.logger.Info("pipeline.run.cancelled", "run_id", s.runID)
	} else {
		s.logger.Error("pipeline.run.failed", "run_id", s.runID, "error", err)
	}
	return err
}
