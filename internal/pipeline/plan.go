package pipeline

import (
	"context"
	"fmt"

	"lv0/internal/archive"
	"lv0/internal/handoff"
	"lv0/internal/model"
)

// Plan describes what a run would do for an archive, without uploading it.
type Plan struct {
	Job          model.UploadJob
	Entries      int
	ReportName   string
	Destinations []string
	Policy       string
}

// PlanArchive validates path and reports the run that would follow.
func (s *Service) PlanArchive(ctx context.Context, path string) (Plan, error) {
	info, err := archive.Inspect(ctx, path)
	if err != nil {
		return Plan{}, err
	}
	name := handoff.DisplayName(info.Job.DisplayName)
	return Plan{
		Job:        info.Job,
		Entries:    info.Entries,
		ReportName: name,
		Destinations: handoff.Locations(s.sink, handoff.Bundle{
			DisplayName: name,
			JobID:       "<job-id>",
		}),
		Policy: describePolicy(s),
	}, nil
}

func describePolicy(s *Service) string {
	p := s.policy
	out := fmt.Sprintf("poll every %s", p.Interval)
	if p.Backoff > 1 {
		out += fmt.Sprintf(" (backoff x%g)", p.Backoff)
	}
	if p.MaxPolls > 0 {
		out += fmt.Sprintf(", up to %d checks", p.MaxPolls)
	}
	if p.Timeout > 0 {
		out += fmt.Sprintf(", timeout %s", p.Timeout)
	}
	return out
}
