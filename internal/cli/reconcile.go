package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reconcileRepair bool

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().BoolVar(&reconcileRepair, "repair", false, "Repair divergence instead of only reporting it")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare and repair the two storage backends",
	Long: "Diffs the index against the file store entry by entry. With\n" +
		"--repair, missing index rows are rebuilt from the file store and\n" +
		"unbacked index rows (partial-write residue) are removed.",
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	l, _, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	report, err := l.Reconcile(cmd.Context(), reconcileRepair)
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))

	if !report.Consistent {
		os.Exit(exitUnavailable)
	}
	return nil
}
