// Package cli implements the decledger command tree. Each subcommand
// lives in its own file and registers itself with the root in init().
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvoigt/decledger/internal/config"
	"github.com/mvoigt/decledger/internal/ledger"
)

// Exit codes, sysexits-style.
const (
	exitTampered    = 65 // EX_DATAERR: chain verification failed
	exitUnavailable = 69 // EX_UNAVAILABLE: storage backend failure
	exitConfig      = 78 // EX_CONFIG: invalid configuration
)

var (
	flagConfig string
	flagDir    string
)

var rootCmd = &cobra.Command{
	Use:   "decledger",
	Short: "Tamper-evident audit ledger for automated decisions",
	Long: "Records decision outcomes into a hash-chained append-only ledger\n" +
		"with a queryable index, criticality scoring, compliance flagging\n" +
		"and retention management. Any alteration of stored history is\n" +
		"detectable by chain verification.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config YAML (default ~/.decledger/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Ledger data directory (overrides config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the active configuration, honoring the --dir
// override. Invalid configuration aborts the process: no subcommand can
// do anything meaningful against it.
func loadConfig() *config.Config {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(exitConfig)
	}
	if flagDir != "" {
		cfg.Dir = flagDir
	}
	return cfg
}

// openLedger opens the ledger described by the active configuration.
func openLedger() (*ledger.Ledger, *config.Config, error) {
	cfg := loadConfig()
	dir, err := cfg.EffectiveDir()
	if err != nil {
		return nil, nil, err
	}
	l, err := ledger.Open(dir, cfg)
	if err != nil {
		return nil, nil, err
	}
	return l, cfg, nil
}
