package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"lv0/internal/archive"
	"lv0/internal/dirs"
	"lv0/internal/watch"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "watch <dir>",
		Short:         "Analyze every .zip archive dropped into a directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, pol, err := runOptions(cmd)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			if err := dirs.Ensure(opts.OutDir); err != nil {
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("failed to create output dir: %v", err)}
			}
			settle, _ := cmd.Flags().GetDuration("settle")
			existing, _ := cmd.Flags().GetBool("existing")

			logger := slog.Default()
			w, err := watch.New(args[0],
				watch.WithSettle(settle),
				watch.WithExisting(existing),
				watch.WithLogger(logger),
			)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			factory, err := serviceFactory(cmd.Context(), runInputs{Options: opts, Policy: pol}, logger)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			n := 0
			fmt.Fprintf(out, "Watching %s for .zip archives (Ctrl+C to stop)\n", args[0])
			err = w.Run(cmd.Context(), func(ctx context.Context, path string) {
				job, err := archive.Prepare(ctx, path)
				if err != nil {
					mu.Lock()
					fmt.Fprintf(out, "Skipping %s: %v\n", path, err)
					mu.Unlock()
					return
				}
				n++
				rep := &plainReporter{w: out, mu: &mu, prefix: "[" + job.DisplayName + "] "}
				_, _ = factory(fmt.Sprintf("watch-%d", n), rep).Run(ctx, job)
			})
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			return nil
		},
	}
	bindRunFlags(cmd.Flags())
	cmd.Flags().Duration("settle", watch.DefaultSettle, "Quiet period before a new archive is picked up")
	cmd.Flags().Bool("existing", false, "Also analyze archives already in the directory")
	if f := cmd.Flags().Lookup("no-ui"); f != nil {
		f.Hidden = true
	}
	return cmd
}
