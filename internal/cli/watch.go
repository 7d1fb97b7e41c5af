package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvoigt/decledger/internal/config"
	"github.com/mvoigt/decledger/internal/ledger"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Hold the ledger open with config hot-reload",
	Long: "Keeps the ledger open and watches the config file, reapplying\n" +
		"scoring weights, retention and alert settings on change. Storage\n" +
		"layout changes still require a restart. Runs until interrupted.",
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	l, _, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	reloader, err := ledger.NewReloader(l, path)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", path)
	return reloader.Run(ctx)
}
