// Package cli is the command-line driving adapter. Every command except serve
// runs one operation in-process against the local session database.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/profitpilot/internal/config"
)

// rootOptions carries state shared by every command. cfg and logger are set
// by the root PersistentPreRunE.
type rootOptions struct {
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// NewRootCommand builds the profitpilot command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "profitpilot",
		Short: "Control a remote automated forex trading session",
		Long: `ProfitPilot starts and stops an automated trading session that runs on a
remote trading service, using your MT5 broker account.

A session is started only after the service confirms an active subscription.
The session state survives restarts: a session left running is reported as
in progress until it is stopped.

Configuration is read from PROFITPILOT_ environment variables, optionally
loaded from a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file read before the environment (missing file is ignored)")

	root.AddCommand(
		newServeCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newStatusCmd(opts),
		newBrokersCmd(opts),
		newStartCmd(opts),
		newStopCmd(opts),
	)

	return root
}

// Execute runs the command tree with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

// load reads configuration and installs the default logger.
func (o *rootOptions) load(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	o.cfg = cfg

	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(o.logger)
	return nil
}

// withApp bootstraps the application, runs fn, and releases resources.
func (o *rootOptions) withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := bootstrap(ctx, o.cfg, o.logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.close()

	return fn(a)
}
