package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/profitpilot/internal/adapter/driving/form"
	"github.com/ericfisherdev/profitpilot/internal/domain/model"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the trading session status",
		Long:  `Status prints the locally recorded session state. It makes no network call.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(a *app) error {
				a.session.Restore(cmd.Context())

				loggedIn, err := a.auth.LoggedIn(cmd.Context())
				signedIn := "no"
				switch {
				case err != nil:
					signedIn = "unknown (" + err.Error() + ")"
				case loggedIn:
					signedIn = "yes"
				}

				out := cmd.OutOrStdout()
				printSnapshot(out, a.session.CurrentState())
				fmt.Fprintf(out, "Signed in: %s\n", signedIn)
				return nil
			})
		},
	}
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	var (
		paramsFile string
		flagForm   form.TradingForm
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a trading session",
		Long: `Start checks the subscription and starts a trading session with the given
MT5 account. Parameters come from flags, a YAML file, or both; flags win.

Example parameters file:

  broker: Exness
  server: Exness-MT5Trial7
  login: "12345678"
  password: secret
  profit: "50"
  pair: EUR/USD`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tf := form.TradingForm{}
			if paramsFile != "" {
				loaded, err := loadParamsFile(paramsFile)
				if err != nil {
					return err
				}
				tf = loaded
			}
			overrideFromFlags(cmd, &tf, flagForm)

			return opts.withApp(cmd.Context(), func(a *app) error {
				ctx := cmd.Context()
				a.session.Restore(ctx)

				// The catalog is only used to validate the server; a fetch
				// failure leaves it empty and skips that check.
				catalog, _ := a.session.RefreshCatalog(ctx)

				params, err := tf.Parameters(catalog)
				if err != nil {
					return err
				}

				state, err := a.session.RequestStart(ctx, params)
				if err != nil {
					return err
				}

				printSnapshot(cmd.OutOrStdout(), state)
				return failure(state)
			})
		},
	}

	cmd.Flags().StringVarP(&paramsFile, "params", "f", "", "YAML file with trading parameters")
	cmd.Flags().StringVar(&flagForm.Broker, "broker", "", "broker name")
	cmd.Flags().StringVar(&flagForm.Server, "server", "", "broker server name")
	cmd.Flags().StringVar(&flagForm.Login, "login", "", "MT5 account login")
	cmd.Flags().StringVar(&flagForm.Password, "password", "", "MT5 account password")
	cmd.Flags().StringVar(&flagForm.Profit, "profit", "", "profit target, a positive number")
	cmd.Flags().StringVar(&flagForm.Pair, "pair", "", "currency pair, e.g. EUR/USD (optional)")
	return cmd
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the trading session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(a *app) error {
				a.session.Restore(cmd.Context())

				state, err := a.session.RequestStop(cmd.Context())
				if err != nil {
					return err
				}

				printSnapshot(cmd.OutOrStdout(), state)
				return failure(state)
			})
		},
	}
}

// overrideFromFlags copies every explicitly set flag over the file values.
func overrideFromFlags(cmd *cobra.Command, dst *form.TradingForm, flags form.TradingForm) {
	set := func(name string, dstField *string, value string) {
		if cmd.Flags().Changed(name) {
			*dstField = value
		}
	}
	set("broker", &dst.Broker, flags.Broker)
	set("server", &dst.Server, flags.Server)
	set("login", &dst.Login, flags.Login)
	set("password", &dst.Password, flags.Password)
	set("profit", &dst.Profit, flags.Profit)
	set("pair", &dst.Pair, flags.Pair)
}

func printSnapshot(w io.Writer, s model.SessionSnapshot) {
	fmt.Fprintf(w, "Status: %s\n", s.Label)
	if s.Message != "" {
		fmt.Fprintf(w, "Message: %s\n", s.Message)
	}
	switch s.Action {
	case model.ActionSubscribe:
		fmt.Fprintln(w, "Action: subscribe to the trading service, then start again")
	case model.ActionLogin:
		fmt.Fprintln(w, "Action: run 'profitpilot login', then try again")
	}
	if s.StopUnconfirmed {
		fmt.Fprintln(w, "Warning: the last stop was not confirmed, run 'profitpilot stop' again")
	}
}

// failure turns a settled Failed state into a command error so the process
// exits non-zero.
func failure(s model.SessionSnapshot) error {
	if s.Status != model.SessionFailed {
		return nil
	}
	return fmt.Errorf("%s: %s", s.ErrorKind, s.Message)
}
