// Package cmd defines the CLI commands of the harvester executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/config"
	"github.com/JakeFAU/review-harvester/internal/id/uuid"
	"github.com/JakeFAU/review-harvester/internal/logging"
	"github.com/JakeFAU/review-harvester/internal/metrics"
)

// envKeyType is the key for storing the Env in the context.
type envKeyType string

const envKey envKeyType = "env"

// Env carries what every subcommand shares.
type Env struct {
	Config config.Config
	Logger *zap.Logger
	RunID  string
	Out    io.Writer

	stopMetrics context.CancelFunc
	metricsDone chan error
}

// Close stops the metrics endpoint and flushes the logger.
func (e *Env) Close() {
	if e.stopMetrics != nil {
		e.stopMetrics()
		if err := <-e.metricsDone; err != nil {
			e.Logger.Warn("metrics endpoint stopped with error", zap.Error(err))
		}
	}
	_ = e.Logger.Sync()
}

// newEnv is the environment factory. It's a variable so tests can swap
// in one with a nop logger and temp-dir files.
var newEnv = func(ctx context.Context, cfgPath string, out io.Writer) (*Env, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.Build(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, err
	}
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, err
	}
	env := &Env{Config: cfg, Logger: logger, RunID: runID, Out: out}
	if cfg.Metrics.Addr != "" {
		mctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		env.stopMetrics = cancel
		env.metricsDone = make(chan error, 1)
		go func() { env.metricsDone <- metrics.Serve(mctx, cfg.Metrics.Addr, logger) }()
	}
	return env, nil
}

type root struct {
	cfgFile string
	env     *Env
}

// newRootCmd creates the root command. The returned func releases whatever
// PersistentPreRunE set up, whether or not the subcommand succeeded.
func newRootCmd() (*cobra.Command, func()) {
	r := &root{}
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Collects keyword-matching book reviews in resumable stages.",
		Long: `harvester discovers book URLs, collapses them to one URL per work,
checks each work's reviews for a keyword and scrapes the matching reviews.
Every stage reads and writes flat URL files, so an interrupted run resumes
where it stopped.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv(cmd.Context(), r.cfgFile, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			env.Logger = logging.ForRun(env.Logger, env.RunID, cmd.Name())
			r.env = env
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, env))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&r.cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(
		newDiscoverCmd(),
		newDedupCmd(),
		newVerifyCmd(),
		newScrapeCmd(),
		newFixNamesCmd(),
		newStatusCmd(),
	)

	return cmd, func() {
		if r.env != nil {
			r.env.Close()
		}
	}
}

func resolveEnv(ctx context.Context) (*Env, error) {
	env, ok := ctx.Value(envKey).(*Env)
	if !ok || env == nil {
		return nil, errors.New("environment not initialized")
	}
	return env, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cmd, cleanup := newRootCmd()
	err := cmd.ExecuteContext(ctx)
	cleanup()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
