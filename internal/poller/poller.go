package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lv0/internal/api"
	"lv0/internal/model"
)

// Fetcher returns one status observation for a job.
type Fetcher interface {
	Status(ctx context.Context, jobID string) (model.StatusReport, error)
}

// Observer is notified of every report and every state change.
type Observer interface {
	OnReport(state State, r model.StatusReport)
	OnTransition(from, to State, r model.StatusReport)
}

type nopObserver struct{}

func (nopObserver) OnReport(State, model.StatusReport)            {}
func (nopObserver) OnTransition(State, State, model.StatusReport) {}

// Policy bounds the polling loop.
type Policy struct {
	Interval    time.Duration // wait between polls
	Backoff     float64       // interval multiplier per poll; <= 1 keeps it fixed
	MaxInterval time.Duration // cap for the grown interval; 0 means no cap
	MaxPolls    int           // 0 means unlimited
	Timeout     time.Duration // 0 means unlimited
}

// DefaultPolicy polls once a second for up to fifteen minutes.
func DefaultPolicy() Policy {
	return Policy{
		Interval: time.Second,
		Backoff:  1,
		MaxPolls: 900,
		Timeout:  15 * time.Minute,
	}
}

func (p Policy) grow(d time.Duration) time.Duration {
	if p.Backoff <= 1 {
		return d
	}
	next := time.Duration(float64(d) * p.Backoff)
	if p.MaxInterval > 0 && next > p.MaxInterval {
		next = p.MaxInterval
	}
	return next
}

// Outcome summarizes a finished loop.
type Outcome struct {
	State State
	Polls int
	Last  model.StatusReport
}

// Poller runs the status loop for one job.
type Poller struct {
	fetch  Fetcher
	policy Policy
	obs    Observer
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// Option configures a Poller.
type Option func(*Poller)

// WithPolicy sets the polling cadence and budget. The default is DefaultPolicy.
func WithPolicy(p Policy) Option { return func(pl *Poller) { pl.policy = p } }

// WithObserver receives every report and state transition.
func WithObserver(o Observer) Option { return func(pl *Poller) { pl.obs = o } }

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option { return func(pl *Poller) { pl.logger = l } }

// WithClock replaces the wait and time source, for tests.
func WithClock(sleep func(ctx context.Context, d time.Duration) error, now func() time.Time) Option {
	return func(pl *Poller) {
		if sleep != nil {
			pl.sleep = sleep
		}
		if now != nil {
			pl.now = now
		}
	}
}

// New returns a Poller reading status from f.
func New(f Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetch:  f,
		policy: DefaultPolicy(),
		obs:    nopObserver{},
		logger: slog.Default(),
		sleep:  sleepCtx,
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
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

// Run polls jobID until LLMDone, a remote error, a transport or protocol
// failure, budget exhaustion, or cancellation of ctx. Errors are never retried.
func (p *Poller) Run(ctx context.Context, jobID string) (Outcome, error) {
	out := Outcome{State: StaticPending}
	var deadline time.Time
	if p.policy.Timeout > 0 {
		deadline = p.now().Add(p.policy.Timeout)
	}
	interval := p.policy.Interval

	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if p.policy.MaxPolls > 0 && out.Polls >= p.policy.MaxPolls {
			return out, fmt.Errorf("%w: job %s unfinished after %d status checks", api.ErrTimeout, jobID, out.Polls)
		}
		if !deadline.IsZero() && !p.now().Before(deadline) {
			return out, fmt.Errorf("%w: job %s unfinished after %s", api.ErrTimeout, jobID, p.policy.Timeout)
		}

		rep, err := p.fetch.Status(ctx, jobID)
		out.Polls++
		if err != nil {
			p.logger.Warn("poller.status_error", "job_id", jobID, "poll", out.Polls, "error", err)
			return out, err
		}
		out.Last = rep
		p.logger.Debug("poller.report",
			"job_id", jobID,
			"poll", out.Polls,
			"state", string(out.State),
			"status", string(rep.Status),
			"progress", rep.ProgressOr(-1),
		)
		p.obs.OnReport(out.State, rep)

		next := Next(out.State, rep)
		if next != out.State {
			p.obs.OnTransition(out.State, next, rep)
			if next == StaticDone {
				p.obs.OnTransition(StaticDone, LLMPending, rep)
				out.State = LLMPending
				// The LLM stage is checked right away.
				continue
			}
			out.State = next
		}

		if out.State.Terminal() {
			if out.State == Error {
				p.logger.Info("poller.remote_error", "job_id", jobID, "message", rep.Message)
				return out, &api.RemoteAnalysisError{Message: rep.Message}
			}
			p.logger.Info("poller.done", "job_id", jobID, "polls", out.Polls)
			return out, nil
		}

		wait := interval
		if !deadline.IsZero() {
			if left := deadline.Sub(p.now()); left < wait {
				wait = left
			}
		}
		if err := p.sleep(ctx, wait); err != nil {
			return out, err
		}
		interval = p.policy.grow(interval)
	}
}
