package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lv0/internal/api"
	"lv0/internal/poller"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "status <job-id>",
		Short:         "Query the backend once for a job's status",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := api.New(viper.GetString("base_url"))
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			r, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return withExit(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:      %s\n", args[0])
			fmt.Fprintf(out, "Status:   %s\n", r.Status)
			fmt.Fprintf(out, "Phase:    %s\n", poller.Next(poller.StaticPending, r))
			if r.Progress != nil {
				fmt.Fprintf(out, "Progress: %d%%\n", *r.Progress)
			}
			if r.Message != "" {
				fmt.Fprintf(out, "Message:  %s\n", r.Message)
			}
			return nil
		},
	}
}
