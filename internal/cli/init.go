package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mvoigt/decledger/internal/config"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Long: "Creates the config file with documented defaults. Refuses to\n" +
		"overwrite an existing file unless --force is given.",
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
		if path == "" {
			return fmt.Errorf("cannot resolve config path, pass --config")
		}
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.DefaultConfigYAML()), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Config written: %s\n", path)
	return nil
}
