package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/cartkeeper/internal/cli"
	"github.com/aretw0/cartkeeper/internal/logging"
	"github.com/aretw0/cartkeeper/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk through cart recovery against a simulated provider",
	Long: `Runs the recovery scenarios in-process: adding after expiry, removing with a
stale item id, and a failed recovery followed by a successful one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		every, _ := cmd.Flags().GetInt("expire-every")
		verbose, _ := cmd.Flags().GetBool("verbose")

		opts := cli.DemoOptions{
			Out:         os.Stdout,
			Render:      tui.Plain,
			Logger:      logging.NewNop(),
			ExpireEvery: every,
		}
		if verbose {
			opts.Logger = logging.New(slog.LevelDebug)
		}
		if term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(os.Stdout)
			r, err := tui.NewRenderer(100)
			if err != nil {
				return err
			}
			opts.Render = r
		}

		report, err := cli.RunDemo(cmd.Context(), opts)
		if err != nil {
			return err
		}
		fmt.Printf(">>> %d steps, %d recoveries, final total %.2f\n", report.Steps, report.Recoveries, report.Final.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().Int("expire-every", 0, "Also fill a cart from the catalog, forcing expiry before every n-th add")
	demoCmd.Flags().BoolP("verbose", "v", false, "Log recovery activity to stderr")
}
