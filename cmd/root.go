// Package cmd defines and implements the CLI commands for the jobcrawler executable.
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

	"github.com/JakeFAU/jobmarket-crawler/internal/api"
	"github.com/JakeFAU/jobmarket-crawler/internal/app"
	"github.com/JakeFAU/jobmarket-crawler/internal/config"
	"github.com/JakeFAU/jobmarket-crawler/internal/logging"
)

// envKeyType is the key for storing the command environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	api.Analyzer
	Close() error
}

// newApp is the application factory. It's a variable so tests can
// replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// env is what PersistentPreRunE hands to subcommands.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	app    App
}

type rootOptions struct {
	cfgFile  string
	logLevel string
	env      *env
}

// close releases the app and flushes the logger. It is safe to call twice.
func (o *rootOptions) close() {
	if o.env == nil {
		return
	}
	if err := o.env.app.Close(); err != nil {
		o.env.logger.Warn("failed to close application services", zap.Error(err))
	}
	_ = o.env.logger.Sync() //nolint:errcheck // stderr sync fails on some platforms
	o.env = nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "jobcrawler",
		Short: "Crawls a job board and reports on roles, skills and locations.",
		Long: `jobcrawler walks the paginated search results of a job board, extracts
every listing, fetches descriptions for the leading ones and ranks titles,
skill keywords and locations. Results can be printed, written to a file or
served over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Builds the application before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opts.env = &env{cfg: cfg, logger: logger, app: appInstance}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, opts.env))
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			opts.close()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "",
		"config file (default searches ./config.yaml, /etc/jobcrawler, $HOME/.jobcrawler)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newServeCmd())
	return cmd, opts
}

// run executes the CLI with args. Services are closed even when the
// subcommand fails.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, opts := newRootCmd()
	defer opts.close()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobcrawler: %v\n", err)
		os.Exit(1)
	}
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil || e.app == nil {
		return nil, errors.New("application services not initialized")
	}
	return e, nil
}
