package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mvoigt/decledger/internal/ledger"
	"github.com/mvoigt/decledger/internal/model"
)

var alertsLimit int

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.Flags().IntVarP(&alertsLimit, "limit", "n", 50, "Maximum escalation entries to show")
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show chained alert escalations",
	Long: "Lists the escalation entries the monitor chained for critical\n" +
		"alerts, newest first. These are regular audit entries and survive\n" +
		"restarts, unlike the in-process alert buffer.",
	RunE: runAlerts,
}

func runAlerts(cmd *cobra.Command, args []string) error {
	l, _, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	res, err := l.Query(cmd.Context(), model.QueryCriteria{
		SessionID: ledger.EscalationSession,
	}, alertsLimit)
	if err != nil {
		return err
	}
	if len(res.Entries) == 0 {
		fmt.Println("[]")
		return nil
	}
	out, _ := json.MarshalIndent(res.Entries, "", "  ")
	fmt.Println(string(out))
	return nil
}
