package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lv0/internal/pipeline"
	"lv0/internal/util/format"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "plan [archives...]",
		Short:         "Validate archives and show what a run would do, without uploading",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, pol, err := runOptions(cmd)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			svc := pipeline.NewService(
				pipeline.WithSink(planSink(opts)),
				pipeline.WithPolicy(pol),
			)
			out := cmd.OutOrStdout()
			for i, path := range args {
				p, err := svc.PlanArchive(cmd.Context(), path)
				if err != nil {
					return &ExitError{Code: ExitCLIError, Err: err}
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				printPlan(out, opts.BaseURL, p)
			}
			return nil
		},
	}
	// Reuse same flags; plan never uploads
	bindRunFlags(cmd.Flags())
	return cmd
}

// printPlan outputs a dry-run plan of actions without executing them.
func printPlan(w io.Writer, baseURL string, p pipeline.Plan) {
	fmt.Fprintln(w, "Dry-run plan:")
	fmt.Fprintf(w, "- Archive:        %s\n", p.Job.SourcePath)
	fmt.Fprintf(w, "- Size:           %s\n", format.HumanizeBytes(p.Job.SizeBytes))
	fmt.Fprintf(w, "- Files:          %d\n", p.Entries)
	fmt.Fprintf(w, "- Upload to:      %s/analyze\n", baseURL)
	fmt.Fprintf(w, "- Polling:        %s\n", p.Policy)
	fmt.Fprintf(w, "- Report name:    %s\n", p.ReportName)
	for _, d := range p.Destinations {
		fmt.Fprintf(w, "- Destination:    %s\n", d)
	}
}
