// Package tracker maps workflow events onto display phases, a 0-100
// progress value and an append-only log.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lv0/internal/model"
	"lv0/internal/poller"
	"lv0/internal/progress"
	"lv0/internal/util/format"
)

// Progress bands.
const (
	uploadStart   = 5
	uploadEnd     = 20
	staticStart   = 25
	staticEnd     = 45
	llmStart      = 50
	llmEnd        = 70
	postStart     = 70
	completeValue = 100
)

// DefaultAnalysisType is shown in the run header.
const DefaultAnalysisType = "Static Code Analysis + LLM Analysis"

// Step is one stage of the fixed post-processing sequence.
type Step struct {
	Percent int
	Line    string
}

// PostProcessing is the simulated report generation sequence run after the
// remote analysis finished.
var PostProcessing = []Step{
	{75, "Organizing Analysis Results..."},
	{80, "Converting to Markdown..."},
	{85, "Rendering PDF..."},
	{90, "Final Validation..."},
	{100, "PDF Generation Completed"},
}

// PhaseState is a snapshot of the tracked display state.
type PhaseState struct {
	Phase    progress.Phase
	Progress int
	Message  string
	Log      []string
}

// Tracker owns the PhaseState of one run and forwards every change to a
// progress.Reporter. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	runID   string
	jobID   string
	st      PhaseState
	lastMsg string
	decile  int // last upload decile written to the log
	rep     progress.Reporter
}

// New returns a tracker in the preparing phase.
func New(runID string, rep progress.Reporter) *Tracker {
	if rep == nil {
		rep = progress.Nop{}
	}
	return &Tracker{runID: runID, rep: rep, decile: -1, st: PhaseState{Phase: progress.PhasePreparing}}
}

// UploadPercent maps an upload percent onto the upload band.
func UploadPercent(p int) int {
	return clamp(uploadStart+int(float64(p)*0.15), uploadStart, uploadEnd)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() PhaseState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.st
	s.Log = append([]string(nil), t.st.Log...)
	return s
}

// Reset returns to preparing with progress 0 and an empty log.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.st = PhaseState{Phase: progress.PhasePreparing}
	t.jobID = ""
	t.lastMsg = ""
	t.decile = -1
	t.mu.Unlock()
	t.emit()
}

// SetJobID attaches the server-issued job id to later events.
func (t *Tracker) SetJobID(id string) {
	t.mu.Lock()
	t.jobID = id
	t.mu.Unlock()
}

// Logf appends one line to the log.
func (t *Tracker) Logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	t.mu.Lock()
	t.st.Log = append(t.st.Log, line)
	t.mu.Unlock()
	t.rep.Log(progress.Log{RunID: t.runID, Line: line})
}

// advance moves to phase (forward only) and raises progress to percent.
// Nothing moves once the run is in the error phase.
func (t *Tracker) advance(phase progress.Phase, percent int, msg string) {
	t.mu.Lock()
	if t.st.Phase == progress.PhaseError {
		t.mu.Unlock()
		return
	}
	if phase.Rank() > t.st.Phase.Rank() {
		t.st.Phase = phase
	}
	percent = clamp(percent, 0, 100)
	if percent > t.st.Progress {
		t.st.Progress = percent
	}
	if msg != "" {
		t.st.Message = msg
	}
	t.mu.Unlock()
	t.emit()
}

func (t *Tracker) emit() {
	t.mu.Lock()
	u := progress.Update{
		JobID:   t.jobID,
		RunID:   t.runID,
		Phase:   t.st.Phase,
		Percent: t.st.Progress,
		Message: t.st.Message,
	}
	t.mu.Unlock()
	t.rep.Update(u)
}

// Start writes the run header and enters the uploading phase.
func (t *Tracker) Start(job model.UploadJob, analysisType string) {
	if analysisType == "" {
		analysisType = DefaultAnalysisType
	}
	t.Logf("File: %s", job.DisplayName)
	t.Logf("File Size: %s MB", format.Megabytes(job.SizeBytes))
	t.Logf("Analysis Type: %s", analysisType)
	t.Logf("")
	t.Logf("File Upload Started...")
	t.advance(progress.PhaseUploading, uploadStart, "Uploading "+job.DisplayName)
}

// Upload records upload progress p (0-100). The log gets one line per ten
// percent.
func (t *Tracker) Upload(p int) {
	p = clamp(p, 0, 100)
	t.mu.Lock()
	write := p/10 > t.decile
	if write {
		t.decile = p / 10
	}
	t.mu.Unlock()
	if write {
		t.Logf("Upload Progress: %d%%", p)
	}
	t.advance(progress.PhaseUploading, UploadPercent(p), "")
}

// Uploaded records the end of the upload and the start of static analysis.
func (t *Tracker) Uploaded(jobID string) {
	t.SetJobID(jobID)
	t.Logf("File Upload Completed")
	t.advance(progress.PhaseUploading, uploadEnd, "Upload complete")
	t.Logf("Job ID: %s", jobID)
	t.Logf("Static Analysis Started...")
	t.Logf("Waiting for static analysis to complete...")
	t.advance(progress.PhaseStaticAnalysis, staticStart, "Static analysis running")
}

// OnReport implements poller.Observer. Processing reports move progress
// within the band of the current poller state.
func (t *Tracker) OnReport(state poller.State, r model.StatusReport) {
	if r.Status != model.StatusProcessing {
		return
	}
	msg := r.Message
	if msg == "" {
		msg = "Processing..."
	}
	t.mu.Lock()
	repeat := msg == t.lastMsg
	t.lastMsg = msg
	t.mu.Unlock()
	if !repeat {
		t.Logf("%s", msg)
	}

	switch state {
	case poller.StaticPending:
		t.advance(progress.PhaseStaticAnalysis, clamp(r.ProgressOr(staticStart), uploadEnd, staticEnd), msg)
	case poller.LLMPending, poller.StaticDone:
		t.advance(progress.PhaseLLMAnalysis, clamp(r.ProgressOr(llmStart), staticEnd, llmEnd), msg)
	}
}

// OnTransition implements poller.Observer.
func (t *Tracker) OnTransition(from, to poller.State, r model.StatusReport) {
	switch to {
	case poller.StaticDone:
		t.Logf("Static Analysis Completed")
		t.advance(progress.PhaseStaticAnalysis, staticEnd, "Static analysis completed")
	case poller.LLMPending:
		t.Logf("LLM Analysis Started...")
		t.Logf("Waiting for LLM analysis to complete...")
		t.mu.Lock()
		t.lastMsg = ""
		t.mu.Unlock()
		t.advance(progress.PhaseLLMAnalysis, llmStart, "LLM analysis running")
	case poller.LLMDone:
		if from == poller.StaticPending {
			t.Logf("LLM Analysis Already Completed")
		} else {
			t.Logf("LLM Analysis Completed")
		}
		t.advance(progress.PhaseLLMAnalysis, llmEnd, "LLM analysis completed")
	case poller.Error:
		msg := r.Message
		if msg == "" {
			msg = "analysis failed"
		}
		t.Logf("Analysis Error - %s", msg)
	}
}

// PostProcess runs the fixed post-processing sequence, waiting delay before
// each step. It stops early when ctx is cancelled.
func (t *Tracker) PostProcess(ctx context.Context, delay time.Duration, sleep func(context.Context, time.Duration) error) error {
	t.Logf("PDF Generation Started...")
	t.advance(progress.PhasePDFGeneration, postStart, "Generating report")
	for _, s := range PostProcessing {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		t.Logf("%s", s.Line)
		t.advance(progress.PhasePDFGeneration, s.Percent, s.Line)
	}
	return nil
}

// Complete marks the run finished.
func (t *Tracker) Complete(location string) {
	t.Logf("Analysis Complete! Report saved to %s", location)
	t.advance(progress.PhaseCompleted, completeValue, "Analysis complete")
}

// Fail moves to the error phase. The error text is surfaced verbatim.
func (t *Tracker) Fail(err error) {
	t.Logf("Error occurred: %v", err)
	t.Logf("Analysis has been interrupted. Retry or quit.")
	t.mu.Lock()
	t.st.Phase = progress.PhaseError
	t.st.Message = err.Error()
	t.mu.Unlock()
	t.emit()
}
