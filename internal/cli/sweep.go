package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepFormat string

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringVarP(&sweepFormat, "format", "f", "text", "Output format (text|json)")
}

var sweepCmd = &cobra.Command{
	Use:     "sweep",
	Aliases: []string{"archive"},
	Short:   "Apply the retention policy",
	Long: "Archives or deletes whole generations older than the retention\n" +
		"window, per the expired_generations setting. Every removal is\n" +
		"tombstoned in deletions.log.",
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	l, _, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	report, err := l.SweepRetention(cmd.Context(), time.Now())
	if err != nil {
		return err
	}

	if sweepFormat == "json" {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	if report.Swept == 0 {
		fmt.Println("Nothing to sweep: no generation is fully outside the retention window.")
		return nil
	}
	fmt.Printf("Swept %d generations (%d entries), mode %s:\n",
		report.Swept, report.Entries, report.Mode)
	for _, ts := range report.Tombstones {
		fmt.Printf("  generation %d: %s (%d entries, positions %d-%d)\n",
			ts.Seq, ts.Action, ts.Entries, ts.FirstPos, ts.LastPos)
	}
	return nil
}
