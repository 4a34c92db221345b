package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"lv0/internal/api"
	"lv0/internal/archive"
	"lv0/internal/config"
	"lv0/internal/dirs"
	"lv0/internal/handoff"
	"lv0/internal/logging"
	"lv0/internal/model"
	"lv0/internal/pipeline"
	"lv0/internal/poller"
	"lv0/internal/progress"
	"lv0/internal/ui"
)

type runMode struct {
	ForceTUI bool
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "analyze [archives...]",
		Aliases:       []string{"run"},
		Short:         "Upload archives and save their vulnerability reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		PreRunE:       runPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args, runMode{})
		},
	}
	bindRunFlags(cmd.Flags())
	return cmd
}

type ctxKey string

const runInputsKey ctxKey = "runInputs"

type runInputs struct {
	Jobs    []model.UploadJob
	Options model.CLIOptions
	Policy  poller.Policy
}

func runPreRun(cmd *cobra.Command, args []string) error {
	in, err := assembleRunInputs(cmd, args)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	ctx := context.WithValue(cmd.Context(), runInputsKey, in)
	cmd.SetContext(ctx)
	return nil
}

// bindRunConfig binds the run flags of cmd to their Viper keys so that
// flag > env > config file > default holds for each of them.
func bindRunConfig(cmd *cobra.Command) {
	fs := cmd.Flags()
	_ = viper.BindPFlag("poll_interval", fs.Lookup("poll-interval"))
	_ = viper.BindPFlag("max_polls", fs.Lookup("max-polls"))
	_ = viper.BindPFlag("timeout", fs.Lookup("timeout"))
	_ = viper.BindPFlag("step_delay", fs.Lookup("step-delay"))
	_ = viper.BindPFlag("s3.bucket", fs.Lookup("s3-bucket"))
	_ = viper.BindPFlag("no_ui", fs.Lookup("no-ui"))
}

// runOptions resolves options and polling policy from flags and config.
func runOptions(cmd *cobra.Command) (model.CLIOptions, poller.Policy, error) {
	bindRunConfig(cmd)

	jobs := viper.GetInt("jobs")
	if jobs <= 0 {
		jobs = 1
	}
	opts := model.CLIOptions{
		BaseURL:   viper.GetString("base_url"),
		OutDir:    filepath.Clean(viper.GetString("out_dir")),
		Verbose:   viper.GetBool("verbose"),
		StepDelay: viper.GetDuration("step_delay"),
		S3Bucket:  viper.GetString("s3.bucket"),
		NoUI:      viper.GetBool("no_ui"),
		Jobs:      jobs,
	}
	if opts.OutDir == "" {
		opts.OutDir = "."
	}
	if opts.StepDelay < 0 {
		return opts, poller.Policy{}, fmt.Errorf("invalid --step-delay: %s", opts.StepDelay)
	}
	pol := config.Policy()
	if pol.Interval < 0 || pol.Timeout < 0 || pol.MaxPolls < 0 {
		return opts, poller.Policy{}, errors.New("polling interval, timeout and max polls must not be negative")
	}
	return opts, pol, nil
}

func assembleRunInputs(cmd *cobra.Command, args []string) (runInputs, error) {
	opts, pol, err := runOptions(cmd)
	if err != nil {
		return runInputs{}, err
	}
	var jobs []model.UploadJob
	for _, path := range args {
		job, err := archive.Prepare(cmd.Context(), path)
		if err != nil {
			return runInputs{}, err
		}
		jobs = append(jobs, job)
	}
	return runInputs{Jobs: jobs, Options: opts, Policy: pol}, nil
}

func inputsFrom(cmd *cobra.Command, args []string) (runInputs, error) {
	// Grab inputs from context; if not present (PreRunE skipped), assemble now.
	if v := cmd.Context().Value(runInputsKey); v != nil {
		return v.(runInputs), nil
	}
	in, err := assembleRunInputs(cmd, args)
	if err != nil {
		return runInputs{}, &ExitError{Code: ExitCLIError, Err: err}
	}
	return in, nil
}

func runExecute(cmd *cobra.Command, args []string, mode runMode) error {
	in, err := inputsFrom(cmd, args)
	if err != nil {
		return err
	}

	if err := dirs.Ensure(in.Options.OutDir); err != nil {
		return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("failed to create output dir: %v", err)}
	}

	// TUI path (forced or auto if TTY and not disabled)
	useTUI := mode.ForceTUI || (!in.Options.NoUI && isTerminal())
	if useTUI {
		logger, closeLog, err := tuiLogger(in.Options.Verbose)
		if err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		defer closeLog()
		factory, err := serviceFactory(cmd.Context(), in, logger)
		if err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		return withExit(ui.Run(cmd.Context(), in.Jobs, in.Options, factory))
	}

	factory, err := serviceFactory(cmd.Context(), in, slog.Default())
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	return withExit(runPlain(cmd.Context(), cmd.OutOrStdout(), in.Jobs, in.Options.Jobs, factory))
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// tuiLogger sends logs to the state-dir log file so they do not tear the TUI.
func tuiLogger(verbose bool) (*slog.Logger, func(), error) {
	path, err := dirs.LogFile()
	if err != nil {
		return logging.Discard(), func() {}, nil
	}
	l, closeFn, err := logging.NewFile(path, verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return l, func() { _ = closeFn() }, nil
}

// buildSink returns the local directory sink, fanned out to S3 when a
// bucket is configured.
func buildSink(ctx context.Context, opts model.CLIOptions) (handoff.Sink, error) {
	local := handoff.DirSink{Dir: opts.OutDir}
	s3cfg, ok := config.S3()
	if !ok {
		return local, nil
	}
	s3, err := handoff.NewS3Sink(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return handoff.MultiSink{local, s3}, nil
}

// planSink mirrors buildSink without connecting anywhere.
func planSink(opts model.CLIOptions) handoff.Sink {
	local := handoff.DirSink{Dir: opts.OutDir}
	s3cfg, ok := config.S3()
	if !ok {
		return local
	}
	return handoff.MultiSink{local, s3Preview(s3cfg)}
}

// s3Preview locates S3 objects for a plan; it never delivers.
type s3Preview handoff.S3Config

func (p s3Preview) Deliver(context.Context, handoff.Bundle) (string, error) {
	return "", errors.New("preview sink cannot deliver")
}

func (p s3Preview) Locate(b handoff.Bundle) string {
	return handoff.S3Config(p).Locate(b)
}

func serviceFactory(ctx context.Context, in runInputs, logger *slog.Logger) (ui.ServiceFactory, error) {
	client, err := api.New(in.Options.BaseURL, api.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	sink, err := buildSink(ctx, in.Options)
	if err != nil {
		return nil, err
	}
	return func(runID string, rep progress.Reporter) *pipeline.Service {
		return pipeline.NewService(
			pipeline.WithBackend(client),
			pipeline.WithSink(sink),
			pipeline.WithPolicy(in.Policy),
			pipeline.WithStepDelay(in.Options.StepDelay),
			pipeline.WithReporter(rep),
			pipeline.WithLogger(logger),
			pipeline.WithRunID(runID),
		)
	}, nil
}

// runPlain analyzes jobs with at most limit in flight, printing each run's
// log lines to w. Every job runs to the end; the first failure in argument
// order is returned.
func runPlain(ctx context.Context, w io.Writer, jobs []model.UploadJob, limit int, newService ui.ServiceFactory) error {
	if limit <= 0 {
		limit = 1
	}
	var mu sync.Mutex
	errs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, job := range jobs {
		prefix := ""
		if len(jobs) > 1 {
			prefix = "[" + job.DisplayName + "] "
		}
		rep := &plainReporter{w: w, mu: &mu, prefix: prefix}
		svc := newService(fmt.Sprintf("run-%d", i+1), rep)
		g.Go(func() error {
			_, errs[i] = svc.Run(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	var first error
	for _, err := range errs {
		if err != nil {
			failed++
			if first == nil {
				first = err
			}
		}
	}
	if failed > 1 {
		return fmt.Errorf("%d of %d archives failed (first: %w)", failed, len(jobs), first)
	}
	return first
}

// plainReporter prints run log lines as they are produced.
type plainReporter struct {
	w      io.Writer
	mu     *sync.Mutex
	prefix string
}

func (r *plainReporter) Update(progress.Update) {}

func (r *plainReporter) Log(l progress.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.Line == "" {
		fmt.Fprintln(r.w)
		return
	}
	fmt.Fprintf(r.w, "%s%s\n", r.prefix, l.Line)
}

// Result is a no-op; the run log already ends with the outcome.
func (r *plainReporter) Result(progress.Result) {}
