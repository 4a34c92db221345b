package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lv0/internal/api"
	"lv0/internal/dirs"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Check configuration and backend health",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			cfgFile := viper.ConfigFileUsed()
			if cfgFile == "" {
				cfgFile = "(none)"
			}
			fmt.Fprintf(out, "Config:   %s\n", cfgFile)
			if lf, err := dirs.LogFile(); err == nil {
				fmt.Fprintf(out, "Log file: %s\n", lf)
			}

			client, err := api.New(viper.GetString("base_url"))
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			fmt.Fprintf(out, "Backend:  %s\n", client.BaseURL())
			hi, err := client.Health(cmd.Context())
			if err != nil {
				return withExit(err)
			}
			if !hi.OK {
				return &ExitError{Code: ExitTransport, Err: fmt.Errorf("backend %s reports unhealthy", client.BaseURL())}
			}
			fmt.Fprintf(out, "Health:   ok (%s)\n", hi.Service)
			return nil
		},
	}
}
