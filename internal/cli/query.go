package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvoigt/decledger/internal/model"
)

var (
	queryFrom        string
	queryTo          string
	queryCriticality string
	queryPath        string
	querySession     string
	queryViolations  bool
	queryLimit       int
)

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryFrom, "from", "", "Earliest timestamp (RFC 3339)")
	queryCmd.Flags().StringVar(&queryTo, "to", "", "Latest timestamp (RFC 3339)")
	queryCmd.Flags().StringVar(&queryCriticality, "min-criticality", "", "Criticality floor (low|medium|high|critical)")
	queryCmd.Flags().StringVar(&queryPath, "path", "", "Exact decision path")
	queryCmd.Flags().StringVar(&querySession, "session", "", "Exact session id")
	queryCmd.Flags().BoolVar(&queryViolations, "violations", false, "Only entries carrying violation tags")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 100, "Maximum entries to return")
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit entries",
	Long: "Selects entries from the structured store, newest first. All\n" +
		"criteria are optional and combine with AND. Prints matching\n" +
		"entries as a JSON array.",
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	criteria, err := criteriaFromFlags()
	if err != nil {
		return err
	}

	l, _, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	res, err := l.Query(cmd.Context(), *criteria, queryLimit)
	if err != nil {
		return err
	}
	if res.Degraded {
		fmt.Fprintln(os.Stderr, "warning: index unavailable, served from file scan")
	}

	out, _ := json.MarshalIndent(res.Entries, "", "  ")
	fmt.Println(string(out))
	return nil
}

func criteriaFromFlags() (*model.QueryCriteria, error) {
	var c model.QueryCriteria
	if queryFrom != "" {
		t, err := time.Parse(time.RFC3339, queryFrom)
		if err != nil {
			return nil, fmt.Errorf("parse --from: %w", err)
		}
		c.From = t
	}
	if queryTo != "" {
		t, err := time.Parse(time.RFC3339, queryTo)
		if err != nil {
			return nil, fmt.Errorf("parse --to: %w", err)
		}
		c.To = t
	}
	if queryCriticality != "" {
		tier, err := model.ParseCriticality(queryCriticality)
		if err != nil {
			return nil, err
		}
		c.MinCriticality = tier
	}
	c.DecisionPath = queryPath
	c.SessionID = querySession
	c.HasViolations = queryViolations
	return &c, nil
}
