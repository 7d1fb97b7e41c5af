package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mvoigt/decledger/internal/model"
)

var statusFormat string

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "text", "Output format (text|json)")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger status",
	Long: "Prints the chain head, entry counts by criticality, compliance\n" +
		"and storage figures for the ledger.",
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	l, cfg, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	s, err := l.Summarize(cmd.Context())
	if err != nil {
		return err
	}

	if statusFormat == "json" {
		out, _ := json.MarshalIndent(s, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Ledger:       %s\n", s.Dir)
	fmt.Printf("Chain length: %s entries\n", humanize.Comma(s.ChainLength))
	fmt.Printf("Latest hash:  %s\n", s.LatestHash)
	fmt.Printf("Checkpoints:  %d\n", s.Checkpoints)
	fmt.Println()
	fmt.Printf("Entries:      %s total, %s compliant\n",
		humanize.Comma(s.TotalEntries), humanize.Comma(s.Compliant))
	for _, tier := range []model.Criticality{
		model.CriticalityCritical, model.CriticalityHigh,
		model.CriticalityMedium, model.CriticalityLow,
	} {
		if n := s.ByCriticality[tier]; n > 0 {
			fmt.Printf("  %-10s  %s\n", tier, humanize.Comma(n))
		}
	}
	fmt.Printf("Confidence:   %.3f avg\n", s.AvgConfidence)
	fmt.Printf("Processing:   %.1f ms avg\n", s.AvgProcessing)
	fmt.Println()
	fmt.Printf("Storage:      %s in %d generations\n",
		humanize.IBytes(uint64(s.StorageBytes)), s.Generations)
	fmt.Printf("Retention:    %d days (%s)\n", cfg.RetentionDays, cfg.ExpiredGenerations)
	fmt.Printf("Alerts:       %d retained\n", s.ActiveAlerts)
	return nil
}
