package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lv0/internal/api"
	"lv0/internal/config"
	"lv0/internal/logging"
)

const (
	ExitOK             = 0
	ExitCLIError       = 1
	ExitTransport      = 2
	ExitProtocol       = 3
	ExitRemoteAnalysis = 4
	ExitTimeout        = 5
	ExitInterrupted    = 130
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitFor maps an analysis error to its exit code.
func exitFor(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, api.ErrTransport):
		return ExitTransport
	case errors.Is(err, api.ErrProtocol):
		return ExitProtocol
	case errors.Is(err, api.ErrRemoteAnalysis):
		return ExitRemoteAnalysis
	case errors.Is(err, api.ErrTimeout):
		return ExitTimeout
	}
	return ExitCLIError
}

// withExit wraps err in an ExitError carrying its mapped code.
func withExit(err error) error {
	if err == nil {
		return nil
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee
	}
	return &ExitError{Code: exitFor(err), Err: err}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lv0 [archives...]",
		Short:         "Vulnerability analysis for zipped source trees",
		Long:          "lv0 uploads a ZIP archive of source code to an lv0 analysis backend, follows the static and LLM analysis phases as they run, and saves the generated PDF vulnerability report.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		PreRunE:       runPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args, runMode{})
		},
	}

	// Persistent flags available to all subcommands
	root.PersistentFlags().String("base-url", api.DefaultBaseURL, "Analysis backend URL")
	root.PersistentFlags().StringP("out-dir", "o", ".", "Directory reports are saved to")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log requests and state changes to stderr")
	root.PersistentFlags().Int("jobs", 1, "Max archives analyzed concurrently")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := config.Init(root); err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		slog.SetDefault(logging.New(cmd.ErrOrStderr(), viper.GetBool("verbose")))
		return nil
	}

	// `lv0 app.zip` behaves like `lv0 analyze app.zip`.
	bindRunFlags(root.Flags())

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newTuiCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

func bindRunFlags(fs *pflag.FlagSet) {
	fs.Duration("poll-interval", 0, "Wait between status checks (default 1s)")
	fs.Int("max-polls", 0, "Give up after this many status checks (default 900)")
	fs.Duration("timeout", 0, "Give up polling after this long (default 15m)")
	fs.Duration("step-delay", 0, "Wait before each report finishing step (default 1s)")
	fs.String("s3-bucket", "", "Also store reports in this S3 bucket")
	fs.Bool("no-ui", false, "Disable TUI; use plain textual output")
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	return root.ExecuteContext(ctx)
}
