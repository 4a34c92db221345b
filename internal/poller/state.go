// Package poller drives the remote job status loop.
package poller

import "lv0/internal/model"

// State is the poller's view of the remote job.
type State string

const (
	StaticPending State = "static-pending"
	StaticDone    State = "static-done"
	LLMPending    State = "llm-pending"
	LLMDone       State = "llm-done"
	Error         State = "error"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == LLMDone || s == Error
}

// Next returns the state reached from s after observing r. It is pure; the
// loop in Run is the only caller that acts on the result.
//
// StaticDone has no report-driven transitions of its own: it is always
// followed by LLMPending, so it is evaluated as LLMPending here.
func Next(s State, r model.StatusReport) State {
	switch s {
	case StaticPending:
		switch r.Status {
		case model.StatusCompleted:
			return StaticDone
		case model.StatusLLMCompleted:
			return LLMDone
		case model.StatusError:
			return Error
		}
		return StaticPending
	case StaticDone, LLMPending:
		switch r.Status {
		case model.StatusLLMCompleted:
			return LLMDone
		case model.StatusError:
			return Error
		}
		return LLMPending
	}
	return s
}
