package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lv0/internal/api"
	"lv0/internal/model"
)

func pct(v int) *int { return &v }

func report(s model.Status, progress int) model.StatusReport {
	r := model.StatusReport{Status: s}
	if progress >= 0 {
		r.Progress = pct(progress)
	}
	return r
}

// scripted returns the queued reports in order and repeats the last one.
type scripted struct {
	reports []model.StatusReport
	errs    []error
	calls   int
}

func (s *scripted) Status(ctx context.Context, jobID string) (model.StatusReport, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return model.StatusReport{}, s.errs[i]
	}
	if i >= len(s.reports) {
		i = len(s.reports) - 1
	}
	return s.reports[i], nil
}

type transition struct{ from, to State }

type recorder struct {
	transitions []transition
	reports     int
}

func (r *recorder) OnReport(State, model.StatusReport) { r.reports++ }
func (r *recorder) OnTransition(from, to State, _ model.StatusReport) {
	r.transitions = append(r.transitions, transition{from, to})
}

type fakeClock struct {
	now    time.Time
	waits  []time.Duration
	cancel func()
	after  int // cancel after this many waits when > 0
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	if c.after > 0 && len(c.waits) >= c.after && c.cancel != nil {
		c.cancel()
	}
	return ctx.Err()
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestPoller(f Fetcher, rec *recorder, clk *fakeClock, pol Policy) *Poller {
	return New(f,
		WithPolicy(pol),
		WithObserver(rec),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(clk.sleep, clk.Now),
	)
}

func TestNext(t *testing.T) {
	tests := []struct {
		from State
		st   model.Status
		want State
	}{
		{StaticPending, model.StatusProcessing, StaticPending},
		{StaticPending, model.StatusCompleted, StaticDone},
		{StaticPending, model.StatusLLMCompleted, LLMDone},
		{StaticPending, model.StatusError, Error},
		{StaticDone, model.StatusProcessing, LLMPending},
		{LLMPending, model.StatusProcessing, LLMPending},
		{LLMPending, model.StatusCompleted, LLMPending},
		{LLMPending, model.StatusLLMCompleted, LLMDone},
		{LLMPending, model.StatusError, Error},
		{LLMDone, model.StatusError, LLMDone},
		{Error, model.StatusLLMCompleted, Error},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.st), func(t *testing.T) {
			if got := Next(tt.from, model.StatusReport{Status: tt.st}); got != tt.want {
				t.Fatalf("Next(%s, %s) = %s, want %s", tt.from, tt.st, got, tt.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []State{StaticPending, StaticDone, LLMPending} {
		assert.False(t, s.Terminal(), s)
	}
	for _, s := range []State{LLMDone, Error} {
		assert.True(t, s.Terminal(), s)
	}
}

func TestRunStaticThenLLM(t *testing.T) {
	f := &scripted{reports: []model.StatusReport{
		report(model.StatusProcessing, 10),
		report(model.StatusProcessing, 40),
		report(model.StatusCompleted, -1),
		report(model.StatusProcessing, 60),
		report(model.StatusLLMCompleted, 100),
	}}
	rec := &recorder{}
	clk := &fakeClock{now: time.Unix(0, 0)}
	out, err := newTestPoller(f, rec, clk, DefaultPolicy()).Run(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, LLMDone, out.State)
	assert.Equal(t, 5, out.Polls)
	assert.Equal(t, []transition{
		{StaticPending, StaticDone},
		{StaticDone, LLMPending},
		{LLMPending, LLMDone},
	}, rec.transitions)
	// no wait between static completion and the first LLM check
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, clk.waits)
}

func TestRunSkipsToLLMDone(t *testing.T) {
	f := &scripted{reports: []model.StatusReport{
		report(model.StatusProcessing, 10),
		report(model.StatusLLMCompleted, -1),
	}}
	rec := &recorder{}
	out, err := newTestPoller(f, rec, &fakeClock{}, DefaultPolicy()).Run(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, LLMDone, out.State)
	assert.Equal(t, []transition{{StaticPending, LLMDone}}, rec.transitions)
}

func TestRunRemoteError(t *testing.T) {
	f := &scripted{reports: []model.StatusReport{
		report(model.StatusProcessing, 10),
		{Status: model.StatusError, Message: "disk full"},
	}}
	rec := &recorder{}
	out, err := newTestPoller(f, rec, &fakeClock{}, DefaultPolicy()).Run(context.Background(), "job-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrRemoteAnalysis)
	assert.Equal(t, "disk full", err.Error())
	assert.Equal(t, Error, out.State)
	assert.Equal(t, []transition{{StaticPending, Error}}, rec.transitions)
}

func TestRunFetchErrorIsNotRetried(t *testing.T) {
	boom := errors.New("boom")
	f := &scripted{errs: []error{boom}, reports: []model.StatusReport{report(model.StatusProcessing, 1)}}
	out, err := newTestPoller(f, &recorder{}, &fakeClock{}, DefaultPolicy()).Run(context.Background(), "job-1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, 1, out.Polls)
}

func TestRunMaxPolls(t *testing.T) {
	f := &scripted{reports: []model.StatusReport{report(model.StatusProcessing, 10)}}
	pol := DefaultPolicy()
	pol.MaxPolls = 3
	pol.Timeout = 0
	_, err := newTestPoller(f, &recorder{}, &fakeClock{}, pol).Run(context.Background(), "job-1")
	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.Equal(t, 3, f.calls)
}

func TestRunTimeout(t *testing.T) {
	f := &scripted{reports: []model.StatusReport{report(model.StatusProcessing, 10)}}
	pol := Policy{Interval: 2 * time.Second, Timeout: 5 * time.Second}
	clk := &fakeClock{now: time.Unix(100, 0)}
	_, err := newTestPoller(f, &recorder{}, clk, pol).Run(context.Background(), "job-1")
	assert.ErrorIs(t, err, api.ErrTimeout)
	// the last wait is shortened to the remaining budget
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, time.Second}, clk.waits)
	assert.Equal(t, 3, f.calls)
}

func TestRunBackoff(t *testing.T) {
	f := &scripted{reports: []model.StatusReport{report(model.StatusProcessing, 10)}}
	pol := Policy{Interval: time.Second, Backoff: 2, MaxInterval: 5 * time.Second, MaxPolls: 5}
	clk := &fakeClock{}
	_, err := newTestPoller(f, &recorder{}, clk, pol).Run(context.Background(), "job-1")
	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}, clk.waits)
}

func TestRunCancelStopsPolling(t *testing.T) {
	f := &scripted{reports: []model.StatusReport{report(model.StatusProcessing, 10)}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := &fakeClock{cancel: cancel, after: 2}
	_, err := newTestPoller(f, &recorder{}, clk, DefaultPolicy()).Run(ctx, "job-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, f.calls)
}
