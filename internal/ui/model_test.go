package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"lv0/internal/api"
	"lv0/internal/handoff"
	"lv0/internal/model"
	"lv0/internal/pipeline"
	"lv0/internal/progress"
)

type okBackend struct{}

func (okBackend) Upload(ctx context.Context, job model.UploadJob, onProgress func(int)) (api.UploadResult, error) {
	onProgress(100)
	art, err := handoff.Spool(strings.NewReader("pdf"), "application/pdf")
	if err != nil {
		return api.UploadResult{}, err
	}
	return api.UploadResult{JobID: "job-1", Artifact: art}, nil
}

func (okBackend) Status(context.Context, string) (model.StatusReport, error) {
	return model.StatusReport{Status: model.StatusLLMCompleted}, nil
}

func testFactory(t *testing.T) ServiceFactory {
	out := t.TempDir()
	return func(runID string, rep progress.Reporter) *pipeline.Service {
		return pipeline.NewService(
			pipeline.WithBackend(okBackend{}),
			pipeline.WithSink(handoff.DirSink{Dir: out}),
			pipeline.WithReporter(rep),
			pipeline.WithRunID(runID),
			pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			pipeline.WithStepDelay(0),
		)
	}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	nm, _ := m.Update(msg)
	return nm.(Model)
}

// drain feeds reporter events into the model until a result arrives.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-m.eventCh:
			m = update(t, m, msg)
			if _, ok := msg.(jobResultMsg); ok {
				return m
			}
		case <-timeout:
			t.Fatal("no result event")
		}
	}
}

func TestModelRunsAndRetries(t *testing.T) {
	jobs := []model.UploadJob{{SourcePath: "/tmp/a.zip", DisplayName: "a.zip", SizeBytes: 10}}
	m := NewModel(context.Background(), jobs, model.CLIOptions{Jobs: 1}, testFactory(t))
	defer m.cancel()

	m = update(t, m, startMsg{})
	js := m.jobs["run-1"]
	if !js.started || js.svc == nil {
		t.Fatalf("job not started")
	}
	m = drain(t, m)
	js = m.jobs["run-1"]
	if !js.done || js.err != nil || js.phase != progress.PhaseCompleted {
		t.Fatalf("job state = done:%v err:%v phase:%s", js.done, js.err, js.phase)
	}
	if !strings.Contains(m.View(), "a.pdf") {
		t.Fatalf("view lacks report path:\n%s", m.View())
	}

	// pretend it failed, then retry with r
	js.err = errors.New("disk full")
	js.phase = progress.PhaseError
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if js.done || js.err != nil || js.retries != 1 || len(js.logsRing) != 0 {
		t.Fatalf("retry did not reset view state: %+v", js)
	}
	m = drain(t, m)
	if js.err != nil || js.phase != progress.PhaseCompleted {
		t.Fatalf("retry failed: %v", js.err)
	}
	if !strings.Contains(m.View(), "retry 1") {
		t.Fatalf("view lacks retry count:\n%s", m.View())
	}
}

func TestModelIgnoresRetryWhileRunning(t *testing.T) {
	jobs := []model.UploadJob{{DisplayName: "a.zip"}}
	m := NewModel(context.Background(), jobs, model.CLIOptions{}, testFactory(t))
	defer m.cancel()
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if m.running != 0 || m.jobs["run-1"].retries != 0 {
		t.Fatalf("retry must not start a job that never failed")
	}
}

func TestModelQuitCancels(t *testing.T) {
	m := NewModel(context.Background(), nil, model.CLIOptions{}, testFactory(t))
	nm, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if nm.(Model).ctx.Err() == nil {
		t.Fatal("context not cancelled on quit")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Fatalf("truncate = %q", got)
	}
}
