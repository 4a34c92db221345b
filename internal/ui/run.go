package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"lv0/internal/model"
)

// Run launches the TUI for the given archives. Each archive is analyzed by
// its own service from newService.
func Run(ctx context.Context, jobs []model.UploadJob, opts model.CLIOptions, newService ServiceFactory) error {
	m := NewModel(ctx, jobs, opts, newService)
	defer m.cancel()
	prog := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok {
		var failed []string
		var firstErr error
		for _, id := range fm.jobOrder {
			js := fm.jobs[id]
			if js != nil && js.err != nil {
				if firstErr == nil {
					firstErr = js.err
				}
				failed = append(failed, fmt.Sprintf("- %s: %s", js.job.DisplayName, js.err.Error()))
			} else if js != nil && !js.done {
				failed = append(failed, fmt.Sprintf("- %s: interrupted", js.job.DisplayName))
				if firstErr == nil {
					firstErr = context.Canceled
				}
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d job(s) failed (first: %w):\n%s", len(failed), firstErr, strings.Join(failed, "\n"))
		}
	}
	return nil
}
