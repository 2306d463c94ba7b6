package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newBrokersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "brokers [broker]",
		Short: "List brokers and their servers",
		Long:  `Brokers fetches the broker catalog. With a broker name, only its servers are printed.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app) error {
				catalog, err := a.session.RefreshCatalog(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(args) == 1 {
					servers := catalog.Servers(args[0])
					if servers == nil {
						return fmt.Errorf("unknown broker %q", args[0])
					}
					for _, s := range servers {
						fmt.Fprintln(out, s)
					}
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "BROKER\tSERVERS")
				for _, broker := range catalog.Brokers() {
					fmt.Fprintf(tw, "%s\t%s\n", broker, strings.Join(catalog.Servers(broker), ", "))
				}
				return tw.Flush()
			})
		},
	}
}
